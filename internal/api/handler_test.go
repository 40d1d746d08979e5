package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/auctioncompare/api/internal/auth"
	"github.com/auctioncompare/api/internal/cachestore"
	"github.com/auctioncompare/api/internal/compare"
	"github.com/auctioncompare/api/internal/config"
	"github.com/auctioncompare/api/internal/dedup"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/auctioncompare/api/internal/normalize"
	"github.com/auctioncompare/api/internal/ratelimit"
	"github.com/auctioncompare/api/internal/shopping"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testAPITokenSalt = "test-salt"

type fakeShopping struct {
	results []shopping.Result
}

func (f *fakeShopping) Search(_ context.Context, _ shopping.Query) ([]shopping.Result, error) {
	return f.results, nil
}

func setupTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(
		&cachestore.CompareCacheEntry{}, &cachestore.SearchHistory{},
		&ledger.UserCredits{}, &ledger.CreditLedger{}, &ledger.Purchase{}, &ledger.ProcessedEvent{},
		&auth.APIToken{}, &auth.Session{},
	))

	cfg := &config.Config{
		Compare: config.CompareConfig{VerdictMarginPercent: 0.1, FreeFreshFetchAllowance: 1},
	}

	store := cachestore.New(gdb, 24*time.Hour, 6*time.Hour)
	creditLedger := ledger.New(gdb, cfg.Compare.FreeFreshFetchAllowance)
	registry := ledger.NewRegistry(nil)
	webhookIntake := ledger.NewWebhookIntake(gdb, creditLedger, registry, "whsec_test")
	authGate := auth.New(gdb, testAPITokenSalt)

	shop := &fakeShopping{results: []shopping.Result{
		{Title: "iPhone 13 128GB", PriceCents: 30000, Relevance: 0.9},
	}}
	heuristic := normalize.NewHeuristic()
	gate := ratelimit.NewGate(1000, 1000)
	deduper := dedup.New()
	orch := compare.New(gate, heuristic, shop, store, creditLedger, deduper, compare.Config{
		MarginThreshold:  0.1,
		CacheTTL:         24 * time.Hour,
		LooseCacheWindow: 6 * time.Hour,
	})

	handler := NewHandler(cfg, orch, store, creditLedger, registry, webhookIntake, authGate)
	return handler, gdb
}

func setupTestRouter(handler *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(handler.RequestLogger())

	router.GET("/healthz", handler.HealthCheck)

	v1 := router.Group("/api")
	{
		v1.GET("/billing/credit-packs", handler.CreditPacks)

		authed := v1.Group("")
		authed.Use(handler.AuthMiddleware())
		{
			authed.POST("/compare", handler.Compare)
			authed.GET("/me/credits", handler.MeCredits)
		}
	}
	return router
}

// issueBearerToken inserts an APIToken row hashed exactly the way
// auth.Gate hashes incoming bearer tokens (salted SHA-256 hex), so tests
// can exercise the authenticated path without reaching into auth's
// unexported hashing function.
func issueBearerToken(t *testing.T, gdb *gorm.DB, userID, rawToken string) {
	t.Helper()
	sum := sha256.Sum256([]byte(rawToken + testAPITokenSalt))
	require.NoError(t, gdb.Create(&auth.APIToken{
		UserID:    userID,
		TokenHash: hex.EncodeToString(sum[:]),
	}).Error)
}

func TestHealthCheck(t *testing.T) {
	handler, _ := setupTestHandler(t)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCreditPacks_PublicNoAuthRequired(t *testing.T) {
	handler, _ := setupTestHandler(t)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/billing/credit-packs", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCompare_RejectsMissingAuth(t *testing.T) {
	handler, _ := setupTestHandler(t)
	router := setupTestRouter(handler)

	body, _ := json.Marshal(map[string]any{"title": "iPhone 13", "auctionPriceCents": 20000})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompare_RejectsUnknownBearerToken(t *testing.T) {
	handler, _ := setupTestHandler(t)
	router := setupTestRouter(handler)

	body, _ := json.Marshal(map[string]any{"title": "iPhone 13", "auctionPriceCents": 20000})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer does-not-exist")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCompare_SucceedsWithValidBearerToken(t *testing.T) {
	handler, gdb := setupTestHandler(t)
	router := setupTestRouter(handler)
	issueBearerToken(t, gdb, "user-1", "valid-raw-token")

	body, _ := json.Marshal(map[string]any{
		"title":             "Apple iPhone 13 128GB occasion",
		"currency":          "EUR",
		"auctionPriceCents": 20000,
		"siteDomain":        "auction.example",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/compare", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer valid-raw-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp compare.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Results)
}

func TestMeCredits_RejectsMissingAuth(t *testing.T) {
	handler, _ := setupTestHandler(t)
	router := setupTestRouter(handler)

	req := httptest.NewRequest(http.MethodGet, "/api/me/credits", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeCredits_ReturnsBalanceForAuthenticatedUser(t *testing.T) {
	handler, gdb := setupTestHandler(t)
	router := setupTestRouter(handler)
	issueBearerToken(t, gdb, "user-2", "another-raw-token")

	req := httptest.NewRequest(http.MethodGet, "/api/me/credits", nil)
	req.Header.Set("Authorization", "Bearer another-raw-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body, "freeAvailable")
}
