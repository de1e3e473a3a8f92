package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newIdentityRouter(secret string, requireIdentity bool) *gin.Engine {
	r := gin.New()
	r.Use(Middleware(secret))

	handler := func(c *gin.Context) {
		id, _ := From(c)
		c.JSON(http.StatusOK, gin.H{"identity": id})
	}
	if requireIdentity {
		r.GET("/whoami", Require(), handler)
	} else {
		r.GET("/whoami", handler)
	}
	return r
}

func get(r *gin.Engine, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware_NormalizesIdentity(t *testing.T) {
	r := newIdentityRouter("", false)

	w := get(r, map[string]string{EmailHeader: "  Alice@Example.COM "})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identity":"alice@example.com"`)
}

func TestMiddleware_AnonymousPassesWithoutRequire(t *testing.T) {
	r := newIdentityRouter("", false)

	w := get(r, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"identity":""`)
}

func TestRequire_RejectsAnonymous(t *testing.T) {
	r := newIdentityRouter("", true)

	w := get(r, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_RejectsNonEmail(t *testing.T) {
	r := newIdentityRouter("", false)

	w := get(r, map[string]string{EmailHeader: "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMiddleware_SignatureEnforcedWhenSecretSet(t *testing.T) {
	const secret = "identity-secret"
	r := newIdentityRouter(secret, true)

	email := "alice@example.com"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email))
	sig := hex.EncodeToString(mac.Sum(nil))

	w := get(r, map[string]string{EmailHeader: email, SignatureHeader: sig})
	assert.Equal(t, http.StatusOK, w.Code)

	w = get(r, map[string]string{EmailHeader: email, SignatureHeader: "bad"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = get(r, map[string]string{EmailHeader: email})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMiddleware_NoSecretTrustsHeader(t *testing.T) {
	r := newIdentityRouter("", true)

	w := get(r, map[string]string{EmailHeader: "bob@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}
