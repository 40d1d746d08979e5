// Package api is the Gin HTTP transport layer described in spec.md §6.1.
// It depends on internal/compare (the orchestrator) and internal/ledger
// (billing reads + webhook intake) but is never imported by either, per
// spec.md's cyclic-dependency-avoidance design note.
package api

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/auctioncompare/api/internal/auth"
	"github.com/auctioncompare/api/internal/cachestore"
	"github.com/auctioncompare/api/internal/compare"
	"github.com/auctioncompare/api/internal/config"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/gin-gonic/gin"
)

// Handler wires the compare orchestrator, credit ledger, history store,
// and auth gate into HTTP endpoints.
type Handler struct {
	cfg          *config.Config
	orchestrator *compare.Orchestrator
	store        *cachestore.Store
	creditLedger *ledger.Ledger
	registry     *ledger.Registry
	webhook      *ledger.WebhookIntake
	authGate     *auth.Gate
}

// NewHandler builds the HTTP handler.
func NewHandler(cfg *config.Config, orchestrator *compare.Orchestrator, store *cachestore.Store, creditLedger *ledger.Ledger, registry *ledger.Registry, webhook *ledger.WebhookIntake, authGate *auth.Gate) *Handler {
	return &Handler{
		cfg:          cfg,
		orchestrator: orchestrator,
		store:        store,
		creditLedger: creditLedger,
		registry:     registry,
		webhook:      webhook,
		authGate:     authGate,
	}
}

// HealthCheck is the liveness endpoint.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "auctioncompare-api"})
}

func identityFrom(c *gin.Context) auth.Identity {
	v, _ := c.Get(identityGinKey)
	identity, _ := v.(auth.Identity)
	return identity
}

type compareRequestWire struct {
	Title                string `json:"title"`
	Brand                string `json:"brand"`
	Model                string `json:"model"`
	Condition            string `json:"condition"`
	Currency             string `json:"currency"`
	Locale               string `json:"locale"`
	AuctionPriceCents    int64  `json:"auctionPriceCents"`
	SiteDomain           string `json:"siteDomain"`
	LotURL               string `json:"lotUrl"`
	Category             string `json:"category"`
	ExtractionConfidence string `json:"extractionConfidence"`
	ForceRefresh         bool   `json:"forceRefresh"`
}

// Compare handles POST /api/compare.
func (h *Handler) Compare(c *gin.Context) {
	var wire compareRequestWire
	if err := c.ShouldBindJSON(&wire); err != nil {
		writeError(c, 400, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	req := compare.Request{
		Title:                wire.Title,
		Brand:                wire.Brand,
		Model:                wire.Model,
		Condition:            wire.Condition,
		Currency:             wire.Currency,
		Locale:               wire.Locale,
		AuctionPriceCents:    wire.AuctionPriceCents,
		SiteDomain:           wire.SiteDomain,
		LotURL:               wire.LotURL,
		Category:             wire.Category,
		ExtractionConfidence: wire.ExtractionConfidence,
		ForceRefresh:         wire.ForceRefresh,
	}

	identity := identityFrom(c)
	resp, err := h.orchestrator.Compare(c.Request.Context(), identity, c.ClientIP(), req)
	if err != nil {
		writeCompareError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History handles GET /api/history.
func (h *Handler) History(c *gin.Context) {
	identity := identityFrom(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page <= 0 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("pageSize", "20"))
	if err != nil || pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}

	query := cachestore.HistoryQuery{
		UserID:   identity.UserID,
		Page:     page,
		PageSize: pageSize,
		Domain:   c.Query("domain"),
		Source:   c.Query("compareSource"),
	}
	if raw := c.Query("startDate"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			query.StartDate = &t
		}
	}
	if raw := c.Query("endDate"); raw != "" {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			query.EndDate = &t
		}
	}

	result, err := h.store.GetSearchHistory(query)
	if err != nil {
		writeError(c, 500, "API_ERROR", err.Error(), nil)
		return
	}

	entries := make([]gin.H, 0, len(result.Entries))
	for _, r := range result.Entries {
		entries = append(entries, gin.H{
			"domain":            r.Domain,
			"lotUrl":            r.LotURL,
			"rawTitle":          r.RawTitle,
			"auctionPriceCents": r.AuctionPriceCents,
			"currency":          r.Currency,
			"source":            r.Source,
			"cacheEntryId":      r.CacheEntryID,
			"createdAt":         r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"entries":  entries,
		"total":    result.Total,
		"page":     result.Page,
		"pageSize": result.PageSize,
	})
}

// MeCredits handles GET /api/me/credits.
func (h *Handler) MeCredits(c *gin.Context) {
	identity := identityFrom(c)

	avail, err := h.creditLedger.HasCreditsAvailable(identity.UserID)
	if err != nil {
		writeError(c, 500, "API_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"balance":           avail.Balance,
		"freeAvailable":     avail.FreeAvailable,
		"freeCreditsAmount": h.cfg.Compare.FreeFreshFetchAllowance,
	})
}

// CreditPacks handles GET /api/billing/credit-packs.
func (h *Handler) CreditPacks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"packs":         h.registry.All(),
		"freeCredits":   h.cfg.Compare.FreeFreshFetchAllowance,
		"cacheHitsFree": true,
	})
}

type checkoutRequestWire struct {
	PackID string `json:"packId"`
}

// CreditPacksCheckout handles POST /api/billing/credit-packs/checkout.
// Stripe Checkout Session creation is deliberately left as a thin call
// into the stripe-go checkout/session client; the registry (not the
// request body) supplies the trusted price.
func (h *Handler) CreditPacksCheckout(c *gin.Context) {
	var wire checkoutRequestWire
	if err := c.ShouldBindJSON(&wire); err != nil {
		writeError(c, 400, "INVALID_REQUEST", err.Error(), nil)
		return
	}

	pack, ok := h.registry.Lookup(wire.PackID)
	if !ok {
		writeError(c, 400, "INVALID_REQUEST", "unknown packId", nil)
		return
	}

	identity := identityFrom(c)
	url, err := createCheckoutSession(h.cfg, h.creditLedger, pack, identity.UserID)
	if err != nil {
		writeError(c, 500, "API_ERROR", err.Error(), nil)
		return
	}

	c.JSON(http.StatusOK, gin.H{"url": url})
}

// StripeWebhook handles POST /api/stripe/webhook. Per spec.md §7: an
// unreadable body or a signature mismatch returns 400; a handler failure
// is logged and still answered with 200, so that Stripe does not enter a
// retry storm over an already-logged handler failure.
func (h *Handler) StripeWebhook(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, 400, "INVALID_REQUEST", "failed to read body", nil)
		return
	}

	event, err := h.webhook.VerifyAndParse(body, c.GetHeader("Stripe-Signature"))
	if err != nil {
		writeError(c, 400, "INVALID_REQUEST", "signature verification failed", nil)
		return
	}

	if err := h.webhook.HandleEvent(event); err != nil {
		h.getLogger(c).Error("stripe webhook handler failed", "error", err, "event_id", event.ID)
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
