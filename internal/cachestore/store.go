// Package cachestore persists and resolves compare results keyed by
// content-addressed signatures, and records per-user search history, per
// spec.md §4.H. It is deliberately agnostic to the shape of a compare
// result: callers pass the already-marshaled JSON payload, avoiding an
// import cycle with internal/compare (the orchestrator that builds that
// payload).
package cachestore

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned by Resolve when neither a strict nor a loose
// (within-window) entry exists.
var ErrNotFound = errors.New("cachestore: no entry found")

// Store is the GORM-backed cache + history repository.
type Store struct {
	db               *gorm.DB
	ttl              time.Duration
	looseCacheWindow time.Duration
}

// New builds a Store. ttl is how long a strict cache entry remains valid;
// looseCacheWindow is how far back a loose (condition-agnostic) match may
// still be served, per spec.md §4.H's two-tier lookup.
func New(db *gorm.DB, ttl, looseCacheWindow time.Duration) *Store {
	return &Store{db: db, ttl: ttl, looseCacheWindow: looseCacheWindow}
}

// Resolution reports which tier satisfied a lookup, if any.
type Resolution struct {
	Hit        bool
	Loose      bool // true if only the loose signature matched
	EntryID    uint
	ResultJSON json.RawMessage
}

// allowsLooseMatch gates the condition-agnostic (loose) lookup tier: a
// caller whose condition signal is itself confident must not be served a
// result computed under a different or unknown condition. Only an unknown
// grade or a low-confidence grade may fall through to a loose match.
func allowsLooseMatch(conditionGrade string, conditionConfidence float64) bool {
	return conditionGrade == "" || conditionGrade == "unknown" || conditionConfidence < 0.5
}

// Resolve looks up a cache entry first by strict signature (unexpired),
// then by loose signature within looseCacheWindow — gated by
// allowsLooseMatch, since a loose match ignores condition grade entirely.
// forceRefresh skips both tiers and reports a clean miss, per spec.md
// §4.H's resolve() contract.
func (s *Store) Resolve(strict, loose, conditionGrade string, conditionConfidence float64, forceRefresh bool) (Resolution, error) {
	if forceRefresh {
		return Resolution{Hit: false}, nil
	}

	now := time.Now().UTC()

	var strictEntry CompareCacheEntry
	err := s.db.Where("signature_strict = ? AND expires_at > ?", strict, now).
		Order("created_at DESC").First(&strictEntry).Error
	if err == nil {
		return Resolution{Hit: true, Loose: false, EntryID: strictEntry.ID, ResultJSON: json.RawMessage(strictEntry.ResultJSON)}, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Resolution{}, err
	}

	if !allowsLooseMatch(conditionGrade, conditionConfidence) {
		return Resolution{Hit: false}, nil
	}

	looseFloor := now.Add(-s.looseCacheWindow)
	var looseEntry CompareCacheEntry
	err = s.db.Where("signature_loose = ? AND expires_at > ? AND created_at > ?", loose, now, looseFloor).
		Order("created_at DESC").First(&looseEntry).Error
	if err == nil {
		return Resolution{Hit: true, Loose: true, EntryID: looseEntry.ID, ResultJSON: json.RawMessage(looseEntry.ResultJSON)}, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Resolution{Hit: false}, nil
	}
	return Resolution{}, err
}

// StoreInput is what the orchestrator supplies after a live compare to
// populate a new cache entry.
type StoreInput struct {
	SignatureStrict string
	SignatureLoose  string
	Category        string
	ConditionGrade  string
	FunctionalState string
	ResultJSON      json.RawMessage
}

// Store upserts a cache entry by strict signature with an expiry ttl out
// from now and returns it, so callers can thread its ID into a
// SearchHistory row.
func (s *Store) Store(in StoreInput) (CompareCacheEntry, error) {
	now := time.Now().UTC()
	entry := CompareCacheEntry{
		SignatureStrict: in.SignatureStrict,
		SignatureLoose:  in.SignatureLoose,
		Category:        in.Category,
		ConditionGrade:  in.ConditionGrade,
		FunctionalState: in.FunctionalState,
		ResultJSON:      string(in.ResultJSON),
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.ttl),
	}
	// A row with the same strict signature (expired, bypassed by
	// forceRefresh, or written by a concurrent request) is overwritten in
	// place rather than colliding on the unique index.
	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "signature_strict"}},
		DoUpdates: clause.AssignmentColumns([]string{"signature_loose", "category", "condition_grade", "functional_state", "result_json", "created_at", "expires_at"}),
	}).Create(&entry).Error
	return entry, err
}

// HistoryInput is what the orchestrator supplies after every compare
// request (hit or miss) to append a SearchHistory row, per spec.md §4.H's
// recordSearchHistory contract.
type HistoryInput struct {
	UserID          string
	Domain          string
	LotURL          string
	RawTitle        string
	NormalizedJSON  json.RawMessage
	SignatureStrict string
	SignatureLoose  string
	Source          string
	CacheEntryID    *uint

	AuctionPriceCents int64
	Currency          string

	ResultJSON json.RawMessage
}

// RecordSearchHistory appends one row regardless of cache hit/miss, so
// GET /api/history reflects every compare request a user made.
func (s *Store) RecordSearchHistory(in HistoryInput) error {
	return s.db.Create(&SearchHistory{
		UserID:            in.UserID,
		Domain:            in.Domain,
		LotURL:            in.LotURL,
		RawTitle:          in.RawTitle,
		NormalizedJSON:    string(in.NormalizedJSON),
		SignatureStrict:   in.SignatureStrict,
		SignatureLoose:    in.SignatureLoose,
		Source:            in.Source,
		CacheEntryID:      in.CacheEntryID,
		AuctionPriceCents: in.AuctionPriceCents,
		Currency:          in.Currency,
		ResultJSON:        string(in.ResultJSON),
		CreatedAt:         time.Now().UTC(),
	}).Error
}

// HistoryQuery filters and paginates GET /api/history per spec.md §3.4/§6.1.
// StartDate/EndDate, when set, bound CreatedAt inclusively.
type HistoryQuery struct {
	UserID    string
	Page      int
	PageSize  int
	Domain    string
	Source    string
	StartDate *time.Time
	EndDate   *time.Time
}

// HistoryPage is a newest-first page of a user's search history, with Total
// reflecting the full matching count (not just len(Entries)).
type HistoryPage struct {
	Entries  []SearchHistory
	Total    int64
	Page     int
	PageSize int
}

// GetSearchHistory returns a paginated, filtered slice of a user's search
// history, newest first.
func (s *Store) GetSearchHistory(q HistoryQuery) (HistoryPage, error) {
	page := q.Page
	if page < 1 {
		page = 1
	}
	pageSize := q.PageSize
	if pageSize < 1 {
		pageSize = 20
	}

	filter := func(db *gorm.DB) *gorm.DB {
		db = db.Where("user_id = ?", q.UserID)
		if q.Domain != "" {
			db = db.Where("domain = ?", q.Domain)
		}
		if q.Source != "" {
			db = db.Where("source = ?", q.Source)
		}
		if q.StartDate != nil {
			db = db.Where("created_at >= ?", *q.StartDate)
		}
		if q.EndDate != nil {
			db = db.Where("created_at <= ?", *q.EndDate)
		}
		return db
	}

	var total int64
	if err := filter(s.db.Model(&SearchHistory{})).Count(&total).Error; err != nil {
		return HistoryPage{}, err
	}

	var rows []SearchHistory
	err := filter(s.db).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error
	if err != nil {
		return HistoryPage{}, err
	}

	return HistoryPage{Entries: rows, Total: total, Page: page, PageSize: pageSize}, nil
}

// CleanupExpiredCache deletes cache entries past their expiry, returning
// the number removed. Intended to run on a periodic ticker from main.
func (s *Store) CleanupExpiredCache() (int64, error) {
	res := s.db.Where("expires_at <= ?", time.Now().UTC()).Delete(&CompareCacheEntry{})
	return res.RowsAffected, res.Error
}
