// Package identity resolves the calling account from request headers.
//
// The service is deliberately loginless: callers self-identify with an
// email header, optionally authenticated by an HMAC when a shared
// secret is configured. Quota and entitlement hang off this identity.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/scamcheck/scamcheck/internal/entitlement"
)

const (
	// EmailHeader names the calling account.
	EmailHeader = "X-Account-Email"
	// SignatureHeader carries hex HMAC-SHA256 of the raw email header
	// value, keyed with the configured identity secret.
	SignatureHeader = "X-Account-Signature"

	contextKey = "account_identity"
)

// Middleware extracts and verifies the caller identity when present.
// Routes that require one stack Require on top.
func Middleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader(EmailHeader)
		if raw == "" {
			c.Next()
			return
		}

		if secret != "" && !validSignature(secret, raw, c.GetHeader(SignatureHeader)) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "invalid identity signature",
			})
			return
		}

		id := entitlement.Normalize(raw)
		if id == "" || !strings.Contains(id, "@") {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"error": "identity must be an email address",
			})
			return
		}

		c.Set(contextKey, id)
		c.Next()
	}
}

// Require rejects requests that did not present an identity.
func Require() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := From(c); !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error": "identity required: set the " + EmailHeader + " header",
			})
			return
		}
		c.Next()
	}
}

// From returns the verified identity set by Middleware.
func From(c *gin.Context) (string, bool) {
	v, ok := c.Get(contextKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

func validSignature(secret, email, signature string) bool {
	if signature == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(email))
	want := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(want), []byte(strings.ToLower(strings.TrimSpace(signature))))
}
