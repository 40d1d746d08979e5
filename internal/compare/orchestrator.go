package compare

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/auctioncompare/api/internal/auth"
	"github.com/auctioncompare/api/internal/cachestore"
	"github.com/auctioncompare/api/internal/canon"
	"github.com/auctioncompare/api/internal/dedup"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/auctioncompare/api/internal/normalize"
	"github.com/auctioncompare/api/internal/ratelimit"
	"github.com/auctioncompare/api/internal/relevance"
	"github.com/auctioncompare/api/internal/shopping"
	"github.com/google/uuid"
)

// Config holds the caller-tunable thresholds the orchestrator needs,
// sourced from internal/config per spec.md §6.5.
type Config struct {
	MarginThreshold  float64
	CacheTTL         time.Duration
	LooseCacheWindow time.Duration
}

// Orchestrator wires every component package into the single state machine
// described in spec.md §4.L.
type Orchestrator struct {
	rateGate  *ratelimit.Gate
	normalize normalize.Provider
	shopping  shopping.Provider
	cache     *cachestore.Store
	credits   *ledger.Ledger
	dedup     *dedup.Deduper
	cfg       Config
}

// New builds an Orchestrator from its component dependencies.
func New(rateGate *ratelimit.Gate, normalizer normalize.Provider, shop shopping.Provider, cache *cachestore.Store, credits *ledger.Ledger, deduper *dedup.Deduper, cfg Config) *Orchestrator {
	return &Orchestrator{
		rateGate:  rateGate,
		normalize: normalizer,
		shopping:  shop,
		cache:     cache,
		credits:   credits,
		dedup:     deduper,
		cfg:       cfg,
	}
}

type cachePayload struct {
	QueryUsed  string             `json:"query_used"`
	Results    []shopping.Result  `json:"results"`
	Stats      relevance.Stats    `json:"stats"`
	Normalized NormalizedInfo     `json:"normalized"`
}

// Compare runs the full AUTH->...->RETURN state machine. identity and
// clientIP have already been resolved by internal/api's middleware (the
// AUTH step itself); RATE_LIMIT is the first thing this method does.
func (o *Orchestrator) Compare(ctx context.Context, identity auth.Identity, clientIP string, req Request) (*Response, error) {
	if allowed, retryAfter := o.rateGate.Check(identity.UserID, clientIP); !allowed {
		return nil, &Error{Code: ErrRateLimited, Message: "rate limit exceeded", RetryAfterSeconds: retryAfter}
	}

	if err := validate(req); err != nil {
		return nil, err
	}

	category := canon.CategoryProduct
	if req.Category == string(canon.CategoryVehicle) {
		category = canon.CategoryVehicle
	}

	product, err := o.resolveNormalizedProduct(ctx, req, category)
	if err != nil {
		return nil, &Error{Code: ErrAPIError, Message: err.Error()}
	}

	resolution, err := o.cache.Resolve(product.Signatures.Strict, product.Signatures.Loose, string(product.ConditionGrade), product.ConditionConfidence, req.ForceRefresh)
	if err != nil {
		return nil, &Error{Code: ErrAPIError, Message: err.Error()}
	}

	var resp *Response
	if resolution.Hit {
		resp, err = o.respondFromCache(identity, resolution, product, req)
	} else {
		resp, err = o.fetchFresh(ctx, identity, product, req)
	}
	if err != nil {
		return nil, err
	}

	normalizedJSON, err := json.Marshal(resp.Normalized)
	if err != nil {
		normalizedJSON = json.RawMessage(`{}`)
	}

	var cacheEntryID *uint
	if resp.Cache.CacheEntryID != "" {
		if id, convErr := strconv.ParseUint(resp.Cache.CacheEntryID, 10, 64); convErr == nil {
			v := uint(id)
			cacheEntryID = &v
		}
	}

	if err := o.cache.RecordSearchHistory(cachestore.HistoryInput{
		UserID:            identity.UserID,
		Domain:            req.SiteDomain,
		LotURL:            req.LotURL,
		RawTitle:          req.Title,
		NormalizedJSON:    normalizedJSON,
		SignatureStrict:   product.Signatures.Strict,
		SignatureLoose:    product.Signatures.Loose,
		Source:            string(resp.Cache.Source),
		CacheEntryID:      cacheEntryID,
		AuctionPriceCents: req.AuctionPriceCents,
		Currency:          req.Currency,
		ResultJSON:        mustMarshal(resp),
	}); err != nil {
		slog.Error("failed to record search history", "error", err, "user_id", identity.UserID)
	}

	return resp, nil
}

func validate(req Request) error {
	if req.Title == "" {
		return &Error{Code: ErrInvalidRequest, Message: "title is required"}
	}
	if req.AuctionPriceCents <= 0 {
		return &Error{Code: ErrInvalidRequest, Message: "auctionPrice must be positive"}
	}
	if req.SiteDomain == "" {
		return &Error{Code: ErrInvalidRequest, Message: "siteDomain is required"}
	}
	return nil
}

// resolveNormalizedProduct implements spec.md §4.L's normalization-skip
// contract: when the caller already supplied brand+model, or flagged high
// extraction confidence, the AI/heuristic call is bypassed entirely and a
// deterministic product is built directly from the Canonicalizer.
func (o *Orchestrator) resolveNormalizedProduct(ctx context.Context, req Request, category canon.Category) (*normalize.Product, error) {
	if (req.Brand != "" && req.Model != "") || req.ExtractionConfidence == "high" {
		c := canon.New()
		resolved := c.Resolve(req.Title, req.Brand, req.Model, "", req.Locale, canon.AIOpinion{})
		query := strings.TrimSpace(resolved.Brand + " " + req.Model)
		if len(query) > 60 {
			query = query[:60]
		}
		return &normalize.Product{
			NormalizedTitle:     req.Title,
			Brand:               resolved.Brand,
			Model:               req.Model,
			Category:            category,
			CapacityGB:          resolved.CapacityGB,
			Capacity:            resolved.CapacityRaw,
			ConditionGrade:      resolved.ConditionGrade,
			FunctionalState:     resolved.FunctionalState,
			Confidence:          0.8,
			ConditionConfidence: resolved.Hints.ConditionConfidence,
			Query:               query,
			Hints:               resolved.Hints,
			Signatures:          resolved.Signatures,
		}, nil
	}

	return o.normalize.Normalize(ctx, normalize.Request{
		RawTitle:     req.Title,
		SiteDomain:   req.SiteDomain,
		Locale:       req.Locale,
		BrandHint:    req.Brand,
		ModelHint:    req.Model,
		CategoryHint: category,
	})
}

func (o *Orchestrator) respondFromCache(identity auth.Identity, resolution cachestore.Resolution, product *normalize.Product, req Request) (*Response, error) {
	var payload cachePayload
	if err := json.Unmarshal(resolution.ResultJSON, &payload); err != nil {
		return nil, &Error{Code: ErrAPIError, Message: "corrupt cache entry: " + err.Error()}
	}

	source := SourceCacheStrict
	if resolution.Loose {
		source = SourceCacheLoose
	}

	verdict := relevance.ComputeVerdict(req.AuctionPriceCents, payload.Stats, o.cfg.MarginThreshold)
	confidence := relevance.ComputeConfidence(payload.Results, payload.Stats)
	avail, _ := o.credits.HasCreditsAvailable(identity.UserID)

	now := time.Now().UTC()
	return &Response{
		QueryUsed:  payload.QueryUsed,
		Results:    payload.Results,
		Stats:      payload.Stats,
		Confidence: confidence,
		Verdict:    verdict,
		CachedAt:   now,
		ExpiresAt:  now.Add(o.cfg.CacheTTL),
		Cache: CacheInfo{
			Source:        source,
			CacheEntryID:  strconv.FormatUint(uint64(resolution.EntryID), 10),
			FetchedAt:     now,
			SignatureUsed: product.Signatures.Strict,
		},
		Normalized: payload.Normalized,
		Usage:      Usage{Balance: avail.Balance, FreeAvailable: avail.FreeAvailable},
	}, nil
}

// fetchFresh implements the MISS branch: credits check, dedup'd shopping
// fetch, filter/score, stats, cache store, credit consume.
func (o *Orchestrator) fetchFresh(ctx context.Context, identity auth.Identity, product *normalize.Product, req Request) (*Response, error) {
	avail, err := o.credits.HasCreditsAvailable(identity.UserID)
	if err != nil {
		return nil, &Error{Code: ErrAPIError, Message: err.Error()}
	}
	if !avail.Available {
		usage := Usage{Balance: avail.Balance, FreeAvailable: avail.FreeAvailable}
		code := ErrQuotaExceeded
		if avail.Source == ledger.SourceNone {
			code = ErrFreeExhausted
		}
		return nil, &Error{Code: code, Message: "no credits available", Usage: &usage}
	}

	category := product.Category
	fetchResult, shared, err := o.dedup.Do(product.Signatures.Strict, func() (interface{}, error) {
		return o.searchAndFilter(ctx, product, req, category)
	})
	if err != nil {
		return nil, &Error{Code: ErrAPIError, Message: err.Error()}
	}
	if shared {
		slog.Debug("compare fetch served from in-flight dedup", "signature", product.Signatures.Strict)
	}

	fetched := fetchResult.(*fetchOutcome)
	if len(fetched.survivors) == 0 {
		return nil, &Error{Code: ErrNoResults, Message: "no comparable listings found"}
	}

	stats := relevance.ComputeStats(fetched.survivors)
	confidence := relevance.ComputeConfidence(fetched.survivors, stats)
	verdict := relevance.ComputeVerdict(req.AuctionPriceCents, stats, o.cfg.MarginThreshold)

	now := time.Now().UTC()
	normalizedInfo := NormalizedInfo{
		Brand:           product.Brand,
		Model:           product.Model,
		CapacityGB:      product.CapacityGB,
		ConditionGrade:  product.ConditionGrade,
		FunctionalState: product.FunctionalState,
		Category:        category,
		Signatures:      product.Signatures,
	}

	payload := cachePayload{
		QueryUsed:  fetched.queryUsed,
		Results:    fetched.survivors,
		Stats:      stats,
		Normalized: normalizedInfo,
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Code: ErrAPIError, Message: err.Error()}
	}

	storedEntry, err := o.cache.Store(cachestore.StoreInput{
		SignatureStrict: product.Signatures.Strict,
		SignatureLoose:  product.Signatures.Loose,
		Category:        string(category),
		ConditionGrade:  string(product.ConditionGrade),
		FunctionalState: string(product.FunctionalState),
		ResultJSON:      payloadJSON,
	})
	if err != nil {
		// Per spec.md §4.L: the cache entry is best-effort on the write
		// path too — a store failure must not erase the response already
		// computed for this caller.
		slog.Error("failed to store compare cache entry", "error", err, "signature", product.Signatures.Strict)
	}

	comparisonID := uuid.New().String()
	creditSpent := false
	if _, err := o.credits.ConsumeCredit(identity.UserID, comparisonID); err != nil {
		// Per spec.md §4.L's documented race: the cache entry is retained
		// (it benefits other users) and the caller still gets their
		// result; the credit-consumption failure is logged for
		// reconciliation rather than failing the whole request.
		slog.Error("credit consumption failed after successful fetch", "error", err, "user_id", identity.UserID, "comparison_id", comparisonID)
	} else {
		creditSpent = true
	}

	avail, _ = o.credits.HasCreditsAvailable(identity.UserID)

	return &Response{
		QueryUsed:  fetched.queryUsed,
		Results:    fetched.survivors,
		Stats:      stats,
		Confidence: confidence,
		Verdict:    verdict,
		CachedAt:   now,
		ExpiresAt:  now.Add(o.cfg.CacheTTL),
		Cache: CacheInfo{
			Source:        SourceFreshFetch,
			CacheEntryID:  strconv.FormatUint(uint64(storedEntry.ID), 10),
			FetchedAt:     now,
			ExpiresAt:     now.Add(o.cfg.CacheTTL),
			SignatureUsed: product.Signatures.Strict,
		},
		Normalized: normalizedInfo,
		Usage:      Usage{Balance: avail.Balance, FreeAvailable: avail.FreeAvailable, CreditSpent: creditSpent},
	}, nil
}

type fetchOutcome struct {
	queryUsed string
	survivors []shopping.Result
}

// searchAndFilter runs the shopping search and relevance filter, retrying
// the alt queries in order (spec.md §4.C/§4.G) if the primary query yields
// nothing after relaxation.
func (o *Orchestrator) searchAndFilter(ctx context.Context, product *normalize.Product, req Request, category canon.Category) (interface{}, error) {
	queries := append([]string{product.Query}, product.AltQueries...)
	var lastErr error
	for _, q := range queries {
		if q == "" {
			continue
		}
		results, err := o.shopping.Search(ctx, shopping.Query{
			Text:     q,
			Category: string(category),
			Locale:   req.Locale,
		})
		if err != nil {
			lastErr = err
			continue
		}
		survivors := relevance.Filter(results, category, req.AuctionPriceCents)
		if len(survivors) > 0 {
			return &fetchOutcome{queryUsed: q, survivors: survivors}, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return &fetchOutcome{queryUsed: product.Query, survivors: nil}, nil
}

func mustMarshal(resp *Response) json.RawMessage {
	b, err := json.Marshal(resp)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
