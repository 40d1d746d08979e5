package compare

import (
	"context"
	"testing"
	"time"

	"github.com/auctioncompare/api/internal/auth"
	"github.com/auctioncompare/api/internal/cachestore"
	"github.com/auctioncompare/api/internal/dedup"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/auctioncompare/api/internal/normalize"
	"github.com/auctioncompare/api/internal/ratelimit"
	"github.com/auctioncompare/api/internal/shopping"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fakeShopping struct {
	results []shopping.Result
	err     error
	calls   int
}

func (f *fakeShopping) Search(_ context.Context, _ shopping.Query) ([]shopping.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.results, nil
}

func newHarness(t *testing.T, shop shopping.Provider, freeCredits int64) (*Orchestrator, *ledger.Ledger) {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&cachestore.CompareCacheEntry{}, &cachestore.SearchHistory{},
		&ledger.UserCredits{}, &ledger.CreditLedger{}, &ledger.Purchase{}, &ledger.ProcessedEvent{}))

	store := cachestore.New(gdb, 24*time.Hour, 6*time.Hour)
	creditLedger := ledger.New(gdb, freeCredits)
	gate := ratelimit.NewGate(1000, 1000)
	heuristic := normalize.NewHeuristic()
	deduper := dedup.New()

	orch := New(gate, heuristic, shop, store, creditLedger, deduper, Config{
		MarginThreshold:  0.10,
		CacheTTL:         24 * time.Hour,
		LooseCacheWindow: 6 * time.Hour,
	})
	return orch, creditLedger
}

func baseRequest() Request {
	return Request{
		Title:             "Apple iPhone 13 128GB occasion",
		Currency:          "EUR",
		Locale:            "fr-FR",
		AuctionPriceCents: 20000,
		SiteDomain:        "auction.example",
	}
}

func TestCompare_FreshFetchConsumesFreeCreditAndCaches(t *testing.T) {
	shop := &fakeShopping{results: []shopping.Result{
		{Title: "iPhone 13 128GB", PriceCents: 30000, Relevance: 0.9},
		{Title: "iPhone 13 128GB occasion", PriceCents: 28000, Relevance: 0.8},
	}}
	orch, creditLedger := newHarness(t, shop, 1)

	identity := auth.Identity{UserID: "user-1"}
	resp, err := orch.Compare(context.Background(), identity, "1.2.3.4", baseRequest())
	require.NoError(t, err)
	assert.Equal(t, SourceFreshFetch, resp.Cache.Source)
	assert.True(t, resp.Usage.CreditSpent)
	assert.Equal(t, 1, shop.calls)

	avail, err := creditLedger.HasCreditsAvailable("user-1")
	require.NoError(t, err)
	assert.False(t, avail.Available)
}

func TestCompare_SecondRequestHitsCacheAndSpendsNoCredit(t *testing.T) {
	shop := &fakeShopping{results: []shopping.Result{
		{Title: "iPhone 13 128GB", PriceCents: 30000, Relevance: 0.9},
	}}
	orch, creditLedger := newHarness(t, shop, 1)
	identity := auth.Identity{UserID: "user-2"}

	_, err := orch.Compare(context.Background(), identity, "1.2.3.4", baseRequest())
	require.NoError(t, err)
	callsAfterFirst := shop.calls

	resp, err := orch.Compare(context.Background(), identity, "1.2.3.4", baseRequest())
	require.NoError(t, err)
	assert.Equal(t, SourceCacheStrict, resp.Cache.Source)
	assert.Equal(t, callsAfterFirst, shop.calls) // no second shopping call

	avail, err := creditLedger.HasCreditsAvailable("user-2")
	require.NoError(t, err)
	assert.False(t, avail.Available) // still exhausted from the one fresh fetch
}

func TestCompare_NoResultsReturnsNoResultsError(t *testing.T) {
	shop := &fakeShopping{results: nil}
	orch, _ := newHarness(t, shop, 1)
	identity := auth.Identity{UserID: "user-3"}

	_, err := orch.Compare(context.Background(), identity, "1.2.3.4", baseRequest())
	require.Error(t, err)
	compareErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrNoResults, compareErr.Code)
}

func TestCompare_CreditsExhaustedReturnsQuotaError(t *testing.T) {
	shop := &fakeShopping{results: []shopping.Result{{Title: "x", PriceCents: 10000, Relevance: 0.9}}}
	orch, _ := newHarness(t, shop, 1)
	identity := auth.Identity{UserID: "user-4"}

	req1 := baseRequest()
	_, err := orch.Compare(context.Background(), identity, "1.2.3.4", req1)
	require.NoError(t, err)

	// A different title forces a cache miss, hitting the now-exhausted credits.
	req2 := baseRequest()
	req2.Title = "Samsung Galaxy S21 256GB"
	_, err = orch.Compare(context.Background(), identity, "1.2.3.4", req2)
	require.Error(t, err)
	compareErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrFreeExhausted, compareErr.Code)
}

func TestCompare_InvalidRequestRejected(t *testing.T) {
	shop := &fakeShopping{}
	orch, _ := newHarness(t, shop, 1)
	identity := auth.Identity{UserID: "user-5"}

	req := baseRequest()
	req.Title = ""
	_, err := orch.Compare(context.Background(), identity, "1.2.3.4", req)
	require.Error(t, err)
	compareErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrInvalidRequest, compareErr.Code)
}

func TestCompare_RateLimited(t *testing.T) {
	shop := &fakeShopping{results: []shopping.Result{{Title: "x", PriceCents: 10000, Relevance: 0.9}}}
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&cachestore.CompareCacheEntry{}, &cachestore.SearchHistory{},
		&ledger.UserCredits{}, &ledger.CreditLedger{}, &ledger.Purchase{}, &ledger.ProcessedEvent{}))

	store := cachestore.New(gdb, 24*time.Hour, 6*time.Hour)
	creditLedger := ledger.New(gdb, 5)
	gate := ratelimit.NewGate(1, 1) // very tight limit
	heuristic := normalize.NewHeuristic()
	deduper := dedup.New()
	orch := New(gate, heuristic, shop, store, creditLedger, deduper, Config{MarginThreshold: 0.1, CacheTTL: time.Hour, LooseCacheWindow: time.Hour})

	identity := auth.Identity{UserID: "user-6"}
	_, err = orch.Compare(context.Background(), identity, "5.5.5.5", baseRequest())
	require.NoError(t, err)

	req2 := baseRequest()
	req2.Title = "Something else entirely 64GB"
	_, err = orch.Compare(context.Background(), identity, "5.5.5.5", req2)
	require.Error(t, err)
	compareErr, ok := err.(*Error)
	require.True(t, ok)
	assert.Equal(t, ErrRateLimited, compareErr.Code)
}
