package ledger

import "time"

// LedgerEntryType enumerates the append-only CreditLedger row kinds, per
// spec.md §3.5 — grounded on refyne-api's CreditTransactionType enum
// (subscription/topup/usage/expiry/refund/adjustment), narrowed to five
// kinds; this package writes all of them except admin_adjust.
type LedgerEntryType string

const (
	EntryGrantFree   LedgerEntryType = "grant_free"
	EntryPurchase    LedgerEntryType = "purchase"
	EntryConsume     LedgerEntryType = "consume"
	EntryRefund      LedgerEntryType = "refund"
	EntryAdminAdjust LedgerEntryType = "admin_adjust"
)

// PurchaseStatus is the lifecycle of a Purchase row. Only
// pending->paid->refunded transitions are legal (spec.md §3.5).
type PurchaseStatus string

const (
	PurchasePending  PurchaseStatus = "pending"
	PurchasePaid     PurchaseStatus = "paid"
	PurchaseFailed   PurchaseStatus = "failed"
	PurchaseRefunded PurchaseStatus = "refunded"
)

// UserCredits is the current balance row, one per user.
type UserCredits struct {
	UserID             string `gorm:"primaryKey"`
	Balance            int64  `gorm:"not null;default:0"`
	FreeCreditsGranted bool   `gorm:"not null;default:false"`
	UpdatedAt          time.Time
}

// CreditLedger is the append-only audit trail of every balance delta,
// mirroring refyne-api's CreditTransaction (BalanceAfter + idempotency
// reference), generalized to this service's five entry types.
type CreditLedger struct {
	ID            uint            `gorm:"primaryKey"`
	UserID        string          `gorm:"index;not null"`
	Type          LedgerEntryType `gorm:"not null"`
	Delta         int64           `gorm:"not null"`
	BalanceAfter  int64           `gorm:"not null"`
	Reason        string
	RelatedObject string
	CreatedAt     time.Time `gorm:"index"`
}

// Purchase records one credit-pack purchase attempt, keyed for idempotent
// webhook intake by ExternalPaymentID.
type Purchase struct {
	ID                 uint   `gorm:"primaryKey"`
	UserID             string `gorm:"index;not null"`
	Provider           string `gorm:"not null"`
	ExternalSessionID  string
	ExternalPaymentID  string `gorm:"uniqueIndex"`
	PackID             string `gorm:"not null"`
	CreditsAmount      int64  `gorm:"not null"`
	AmountCents        int64  `gorm:"not null"`
	Currency           string `gorm:"not null"`
	Status             PurchaseStatus `gorm:"not null;default:pending"`
	CreatedAt          time.Time
	PaidAt             *time.Time
}

// ProcessedEvent records a handled webhook delivery so a redelivery of the
// same provider event id is a no-op (spec.md §5 ordering guarantees).
type ProcessedEvent struct {
	ID        uint   `gorm:"primaryKey"`
	Provider  string `gorm:"uniqueIndex:idx_provider_event;not null"`
	EventID   string `gorm:"uniqueIndex:idx_provider_event;not null"`
	CreatedAt time.Time
}
