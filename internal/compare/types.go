// Package compare implements the central state machine described in
// spec.md §4.L: AUTH -> RATE_LIMIT -> VALIDATE -> NORMALIZE -> CACHE_LOOKUP
// -> (hit: recompute verdict | miss: credits check -> dedup fetch ->
// filter/score -> stats -> cache store -> consume credit -> history).
//
// It depends on every other component package but is depended on by none
// of them, so internal/api can sit on top of it without creating an
// import cycle.
package compare

import (
	"time"

	"github.com/auctioncompare/api/internal/canon"
	"github.com/auctioncompare/api/internal/relevance"
	"github.com/auctioncompare/api/internal/shopping"
)

// Request is the caller's compare request, mirroring spec.md §4.L's
// CompareRequest shape.
type Request struct {
	Title                string
	Brand                string
	Model                string
	Condition            string
	Currency             string
	Locale               string
	AuctionPriceCents    int64
	SiteDomain           string
	LotURL               string
	Category             string
	ExtractionConfidence string // "", "low", "medium", "high"
	ForceRefresh         bool
}

// Source reports which path satisfied the lookup, included in the response
// per spec.md §6.2.
type Source string

const (
	SourceCacheStrict Source = "cache_strict"
	SourceCacheLoose  Source = "cache_loose"
	SourceFreshFetch  Source = "fresh_fetch"
)

// CacheInfo describes the cache tier that produced a response.
type CacheInfo struct {
	Source        Source
	CacheEntryID  string
	FetchedAt     time.Time
	ExpiresAt     time.Time
	SignatureUsed string
}

// NormalizedInfo is the normalized-product summary included in the
// response, per spec.md §6.2's `normalized` field.
type NormalizedInfo struct {
	Brand           string
	Model           string
	CapacityGB      int
	ConditionGrade  canon.ConditionGrade
	FunctionalState canon.FunctionalState
	Category        canon.Category
	Signatures      canon.Signatures
}

// Usage is the credits snapshot returned alongside every response.
type Usage struct {
	Balance       int64
	FreeAvailable bool
	CreditSpent   bool
}

// Response is the unified shape for both cache-hit and fresh-fetch paths.
type Response struct {
	QueryUsed  string
	Results    []shopping.Result
	Stats      relevance.Stats
	Confidence relevance.Confidence
	Verdict    relevance.Verdict
	CachedAt   time.Time
	ExpiresAt  time.Time
	Cache      CacheInfo
	Normalized NormalizedInfo
	Usage      Usage
}

// ErrorCode enumerates spec.md §6.3's taxonomy.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrRateLimited    ErrorCode = "RATE_LIMITED"
	ErrNoResults      ErrorCode = "NO_RESULTS"
	ErrQuotaExceeded  ErrorCode = "QUOTA_EXCEEDED"
	ErrFreeExhausted  ErrorCode = "FREE_EXHAUSTED"
	ErrAPIError       ErrorCode = "API_ERROR"
)

// Error is a structured orchestrator failure; internal/api maps Code to an
// HTTP status.
type Error struct {
	Code              ErrorCode
	Message           string
	Usage             *Usage
	RetryAfterSeconds int
}

func (e *Error) Error() string { return string(e.Code) + ": " + e.Message }
