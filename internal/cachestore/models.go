package cachestore

import "time"

// CompareCacheEntry is a stored compare result keyed by content-addressed
// signatures (internal/canon), per spec.md §4.H. Strict lookups match on
// SignatureStrict (includes condition grade); loose lookups fall back to
// SignatureLoose within the configured loose-cache window.
type CompareCacheEntry struct {
	ID              uint   `gorm:"primaryKey"`
	SignatureStrict string `gorm:"size:32;uniqueIndex;not null"`
	SignatureLoose  string `gorm:"size:32;index;not null"`

	Category       string
	ConditionGrade string
	FunctionalState string

	ResultJSON string `gorm:"type:text;not null"`

	CreatedAt time.Time
	ExpiresAt time.Time `gorm:"index;not null"`
}

// SearchHistory is an append-only per-user record of compare requests, used
// to serve GET /api/history (spec.md §3.4/§6.1) independent of cache
// hit/miss. Source reports which resolve() tier produced the result
// (cache_strict, cache_loose, fresh_fetch); CacheEntryID links back to the
// CompareCacheEntry row when one was involved.
type SearchHistory struct {
	ID              uint   `gorm:"primaryKey"`
	UserID          string `gorm:"index;not null"`
	Domain          string `gorm:"index"`
	LotURL          string
	RawTitle        string
	NormalizedJSON  string `gorm:"type:text"`
	SignatureStrict string `gorm:"size:32;index"`
	SignatureLoose  string `gorm:"size:32"`
	Source          string `gorm:"index;not null"`
	CacheEntryID    *uint  `gorm:"index"`

	AuctionPriceCents int64
	Currency          string

	ResultJSON string `gorm:"type:text;not null"`
	CreatedAt  time.Time `gorm:"index"`
}
