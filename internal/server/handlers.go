package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/scamcheck/scamcheck/internal/entitlement"
	"github.com/scamcheck/scamcheck/internal/explorer"
	"github.com/scamcheck/scamcheck/internal/identity"
	"github.com/scamcheck/scamcheck/internal/logging"
	"github.com/scamcheck/scamcheck/internal/metrics"
	"github.com/scamcheck/scamcheck/internal/network"
	"github.com/scamcheck/scamcheck/internal/payments"
	"github.com/scamcheck/scamcheck/internal/scoring"
	"github.com/scamcheck/scamcheck/internal/traces"
	"github.com/scamcheck/scamcheck/internal/validation"
)

func (s *Server) setupRoutes() {
	// Health & metrics endpoints
	s.router.GET("/health", s.healthHandler)
	s.router.GET("/health/live", s.livenessHandler)
	s.router.GET("/health/ready", s.readinessHandler)
	s.router.GET("/metrics", metrics.Handler())

	// API info
	s.router.GET("/api", s.infoHandler)

	// V1 API group
	v1 := s.router.Group("/v1")
	v1.Use(identity.Middleware(s.cfg.IdentitySecret))

	// PUBLIC ROUTES (no identity required)
	v1.GET("/networks", s.networksHandler)
	v1.GET("/check/link", s.checkLinkHandler)
	v1.POST("/check/link", s.checkLinkHandler)

	// Payment provider callback, authenticated by its own HMAC signature
	v1.POST("/subscription/ipn", s.ipnHandler)

	// IDENTIFIED ROUTES (metered or account-scoped)
	identified := v1.Group("")
	identified.Use(identity.Require())
	{
		identified.POST("/check/wallet", s.checkWalletHandler)
		identified.GET("/quota", s.quotaHandler)
		identified.POST("/subscription/invoice", s.invoiceHandler)
		identified.POST("/subscription/demo-activate", s.requireAdmin(), s.demoActivateHandler)
	}

	// PREMIUM ROUTES (subscription or admin)
	premium := v1.Group("")
	premium.Use(identity.Require(), s.requirePremium())
	{
		premium.GET("/token", s.tokenHandler)
		premium.GET("/contract", s.contractHandler)
	}

	// ADMIN ROUTES
	admin := v1.Group("/admin")
	admin.Use(identity.Require(), s.requireAdmin())
	{
		admin.POST("/subscription/grant", s.adminGrantHandler)
		admin.POST("/subscription/revoke", s.adminRevokeHandler)
	}
}

// requirePremium gates premium features behind an active subscription
// or allowlist membership.
func (s *Server) requirePremium() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity.From(c)
		tier, err := s.entitlements.Resolve(c.Request.Context(), id)
		if err != nil {
			logging.L(c.Request.Context()).Error("entitlement lookup failed", "error", err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to resolve entitlement",
			})
			return
		}
		if !tier.Premium() {
			c.AbortWithStatusJSON(http.StatusPaymentRequired, gin.H{
				"error":   "premium_required",
				"message": "This feature requires an active subscription.",
			})
			return
		}
		c.Next()
	}
}

func (s *Server) requireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := identity.From(c)
		if !s.entitlements.IsAdmin(id) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":   "admin_required",
				"message": "This endpoint is restricted to administrators.",
			})
			return
		}
		c.Next()
	}
}

// HealthResponse for health check endpoints
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"timestamp"`
}

func (s *Server) healthHandler(c *gin.Context) {
	checks := make(map[string]string)

	if s.db != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
		} else {
			checks["database"] = "healthy"
		}
	} else {
		checks["database"] = "memory"
	}

	status := "healthy"
	httpStatus := http.StatusOK
	for _, v := range checks {
		if v == "unhealthy" {
			status = "degraded"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, HealthResponse{
		Status:    status,
		Version:   "0.1.0",
		Checks:    checks,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) livenessHandler(c *gin.Context) {
	if !s.healthy.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "alive"})
}

func (s *Server) readinessHandler(c *gin.Context) {
	if !s.ready.Load() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not_ready"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) infoHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "ScamCheck",
		"description": "Risk scoring for wallet addresses and social links",
		"version":     "0.1.0",
	})
}

// networksHandler lists supported networks in classification order.
func (s *Server) networksHandler(c *gin.Context) {
	nets := network.Supported()
	out := make([]gin.H, 0, len(nets))
	for _, n := range nets {
		out = append(out, gin.H{
			"name": n.Name,
			"code": n.Code,
			"evm":  n.IsEVM(),
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"networks": out,
		"count":    len(out),
	})
}

type checkWalletRequest struct {
	Address string `json:"address" binding:"required"`
}

type walletCheckResponse struct {
	*scoring.Verdict
	QuotaRemaining *int `json:"quota_remaining,omitempty"`
}

// checkWalletHandler handles POST /v1/check/wallet. Free callers spend
// one quota unit per check; subscribers and admins are not metered.
func (s *Server) checkWalletHandler(c *gin.Context) {
	var req checkWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a JSON body with an \"address\" field.",
		})
		return
	}
	address := validation.SanitizeInput(req.Address)

	id, _ := identity.From(c)
	ctx := c.Request.Context()

	tier, err := s.entitlements.Resolve(ctx, id)
	if err != nil {
		logging.L(ctx).Error("entitlement lookup failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to resolve entitlement",
		})
		return
	}

	var quotaRemaining *int
	if !tier.Premium() {
		allowed, remaining, err := s.ledger.TryConsume(ctx, id)
		if err != nil {
			logging.L(ctx).Error("quota consume failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "internal_error",
				"message": "Failed to check quota",
			})
			return
		}
		if !allowed {
			metrics.QuotaDeniedTotal.Inc()
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "quota_exhausted",
				"message": fmt.Sprintf(
					"Daily free limit reached (%d/day). Upgrade to continue.", s.ledger.Limit()),
			})
			return
		}
		metrics.QuotaConsumedTotal.Inc()
		quotaRemaining = &remaining
	}

	ctx, span := traces.StartSpan(ctx, "check.wallet", traces.Identity(id))
	verdict, err := s.scorer.ScoreWallet(ctx, address)
	if err != nil {
		span.End()
		var invalid *scoring.InvalidInputError
		if errors.As(err, &invalid) {
			metrics.InvalidInputsTotal.WithLabelValues("wallet").Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_address",
				"message": invalid.Message,
			})
			return
		}
		logging.L(ctx).Error("wallet check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Check failed",
		})
		return
	}
	span.SetAttributes(traces.Network(verdict.Code), traces.Score(verdict.Score))
	span.End()

	metrics.ChecksTotal.WithLabelValues("wallet", string(verdict.Label)).Inc()
	c.JSON(http.StatusOK, walletCheckResponse{Verdict: verdict, QuotaRemaining: quotaRemaining})
}

// checkLinkHandler handles GET and POST /v1/check/link. Link checks are
// public and unmetered.
func (s *Server) checkLinkHandler(c *gin.Context) {
	rawURL := c.Query("url")
	if rawURL == "" && c.Request.Method == http.MethodPost {
		var req struct {
			URL string `json:"url"`
		}
		if err := c.ShouldBindJSON(&req); err == nil {
			rawURL = req.URL
		}
	}
	rawURL = validation.SanitizeInput(rawURL)
	if rawURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a link with ?url= or a JSON body with a \"url\" field.",
		})
		return
	}

	ctx, span := traces.StartSpan(c.Request.Context(), "check.link")
	verdict, err := s.scorer.ScoreLink(ctx, rawURL)
	if err != nil {
		span.End()
		var invalid *scoring.InvalidInputError
		if errors.As(err, &invalid) {
			metrics.InvalidInputsTotal.WithLabelValues("link").Inc()
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "invalid_link",
				"message": invalid.Message,
			})
			return
		}
		logging.L(ctx).Error("link check failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Check failed",
		})
		return
	}
	span.SetAttributes(traces.Platform(verdict.Platform), traces.Score(verdict.Score))
	span.End()

	metrics.ChecksTotal.WithLabelValues("link", string(verdict.Label)).Inc()
	c.JSON(http.StatusOK, verdict)
}

// quotaHandler returns the caller's quota badge without consuming.
func (s *Server) quotaHandler(c *gin.Context) {
	id, _ := identity.From(c)
	ctx := c.Request.Context()

	badge, err := s.ledger.Badge(ctx, id)
	if err != nil {
		logging.L(ctx).Error("quota badge failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to load quota",
		})
		return
	}
	if s.entitlements.IsAdmin(id) {
		badge.Premium = true
		badge.Remaining = -1
	}
	c.JSON(http.StatusOK, badge)
}

// tokenHandler handles GET /v1/token?address=&chain= (premium).
func (s *Server) tokenHandler(c *gin.Context) {
	address := validation.SanitizeInput(c.Query("address"))
	if address == "" {
		address = validation.SanitizeInput(c.Query("token"))
	}
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a token contract with ?address=",
		})
		return
	}
	chain := validation.SanitizeInput(c.DefaultQuery("chain", "ethereum"))

	report := s.screener.Screen(c.Request.Context(), chain, address)
	c.JSON(http.StatusOK, report)
}

// contractHandler handles GET /v1/contract?address=&chain= (premium).
// Explorer failures degrade into the report instead of erroring.
func (s *Server) contractHandler(c *gin.Context) {
	address := validation.SanitizeInput(c.Query("address"))
	if address == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a contract with ?address=",
		})
		return
	}
	chainHint := c.Query("chain")
	if chainHint == "" {
		chainHint = c.Query("chain_code")
	}
	chain := explorer.NormalizeChain(chainHint)

	info := s.explorer.ContractSource(c.Request.Context(), chain, address)
	c.JSON(http.StatusOK, info)
}

// invoiceHandler opens a hosted checkout for the caller.
func (s *Server) invoiceHandler(c *gin.Context) {
	id, _ := identity.From(c)
	ctx := c.Request.Context()

	invoice, err := s.payments.CreateInvoice(ctx, id)
	if err != nil {
		if errors.Is(err, payments.ErrNotConfigured) {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":   "payments_unavailable",
				"message": "Subscription purchases are not configured.",
			})
			return
		}
		logging.L(ctx).Error("invoice creation failed", "error", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "payment_provider_error",
			"message": "Failed to create invoice. Try again later.",
		})
		return
	}
	c.JSON(http.StatusOK, invoice)
}

// ipnHandler receives payment provider callbacks. The body is verified
// against the shared IPN secret before anything else happens.
func (s *Server) ipnHandler(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, validation.MaxRequestSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	signature := c.GetHeader(payments.SignatureHeader)

	ctx, span := traces.StartSpan(c.Request.Context(), "subscription.ipn")
	defer span.End()

	result, err := s.payments.HandleIPN(ctx, body, signature)
	if err != nil {
		switch {
		case errors.Is(err, payments.ErrBadSignature):
			metrics.IPNEventsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_signature"})
		case errors.Is(err, payments.ErrBadOrderID):
			metrics.IPNEventsTotal.WithLabelValues("rejected").Inc()
			c.JSON(http.StatusBadRequest, gin.H{"error": "unrecognized_order"})
		default:
			logging.L(ctx).Error("ipn processing failed", "error", err)
			metrics.IPNEventsTotal.WithLabelValues("error").Inc()
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}
	span.SetAttributes(traces.PaymentID(result.PaymentID))

	switch {
	case result.Granted:
		metrics.IPNEventsTotal.WithLabelValues("granted").Inc()
		metrics.SubscriptionGrantsTotal.Inc()
	case result.Duplicate:
		metrics.IPNEventsTotal.WithLabelValues("duplicate").Inc()
	default:
		metrics.IPNEventsTotal.WithLabelValues("ignored").Inc()
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// demoActivateHandler lets an allowlisted identity activate a
// subscription without payment, for itself by default.
func (s *Server) demoActivateHandler(c *gin.Context) {
	id, _ := identity.From(c)

	target := id
	var req struct {
		Identity string `json:"identity"`
	}
	if err := c.ShouldBindJSON(&req); err == nil && req.Identity != "" {
		target = entitlement.Normalize(req.Identity)
	}

	expiresAt, err := s.ledger.Grant(c.Request.Context(), target, s.cfg.SubscriptionDays)
	if err != nil {
		logging.L(c.Request.Context()).Error("demo activation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to activate subscription",
		})
		return
	}
	metrics.SubscriptionGrantsTotal.Inc()

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"identity":   target,
		"expires_at": expiresAt,
	})
}

type adminSubscriptionRequest struct {
	Identity string `json:"identity" binding:"required"`
	Days     int    `json:"days"`
}

// adminGrantHandler activates a subscription without payment.
func (s *Server) adminGrantHandler(c *gin.Context) {
	var req adminSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a JSON body with an \"identity\" field.",
		})
		return
	}
	days := req.Days
	if days <= 0 {
		days = s.cfg.SubscriptionDays
	}

	target := entitlement.Normalize(req.Identity)
	expiresAt, err := s.ledger.Grant(c.Request.Context(), target, days)
	if err != nil {
		logging.L(c.Request.Context()).Error("admin grant failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to grant subscription",
		})
		return
	}
	metrics.SubscriptionGrantsTotal.Inc()

	c.JSON(http.StatusOK, gin.H{
		"ok":         true,
		"identity":   target,
		"expires_at": expiresAt,
	})
}

// adminRevokeHandler drops a subscription immediately.
func (s *Server) adminRevokeHandler(c *gin.Context) {
	var req adminSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid_request",
			"message": "Provide a JSON body with an \"identity\" field.",
		})
		return
	}

	target := entitlement.Normalize(req.Identity)
	if err := s.ledger.Revoke(c.Request.Context(), target); err != nil {
		logging.L(c.Request.Context()).Error("admin revoke failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "internal_error",
			"message": "Failed to revoke subscription",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "identity": target})
}
