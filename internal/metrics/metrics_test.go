package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func counterValue(t *testing.T, c interface{ Write(*dto.Metric) error }) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestChecksTotal(t *testing.T) {
	c := ChecksTotal.WithLabelValues("wallet", "Safe")
	before := counterValue(t, c)

	ChecksTotal.WithLabelValues("wallet", "Safe").Inc()

	assert.Equal(t, before+1, counterValue(t, c))
}

func TestQuotaCounters(t *testing.T) {
	consumedBefore := counterValue(t, QuotaConsumedTotal)
	deniedBefore := counterValue(t, QuotaDeniedTotal)

	QuotaConsumedTotal.Inc()
	QuotaDeniedTotal.Inc()
	QuotaDeniedTotal.Inc()

	assert.Equal(t, consumedBefore+1, counterValue(t, QuotaConsumedTotal))
	assert.Equal(t, deniedBefore+2, counterValue(t, QuotaDeniedTotal))
}

func TestMiddleware_RecordsRequests(t *testing.T) {
	r := gin.New()
	r.Use(Middleware())
	r.GET("/v1/networks", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/v1/networks", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	c := HTTPRequestsTotal.WithLabelValues("GET", "/v1/networks", "2xx")
	assert.GreaterOrEqual(t, counterValue(t, c), 1.0)
}

func TestStatusBucket(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{100, "1xx"},
		{200, "2xx"},
		{201, "2xx"},
		{301, "3xx"},
		{404, "4xx"},
		{429, "4xx"},
		{500, "5xx"},
		{503, "5xx"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, statusBucket(tt.code), "code %d", tt.code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	IPNEventsTotal.WithLabelValues("granted").Inc()

	r := gin.New()
	r.GET("/metrics", Handler())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	// Gauges always appear; counters only after first observation.
	assert.True(t, strings.Contains(body, "scamcheck_goroutines"))
	assert.True(t, strings.Contains(body, "scamcheck_ipn_events_total"))
}
