// Package ledger implements the append-only credits system described in
// spec.md §4.I: free-grant, purchase, consume, and refund, all applied
// inside serializable GORM transactions so balance and ledger tail never
// drift apart (invariants 1-3 in spec.md §8).
package ledger

import (
	"errors"
	"time"

	"gorm.io/gorm"
)

// ErrNoCredits is returned by ConsumeCredit when the user has neither a
// positive balance nor an unused free credit.
var ErrNoCredits = errors.New("ledger: no credits available")

// CreditSource reports which pool satisfied a credits-available check or a
// consume.
type CreditSource string

const (
	SourceBalance CreditSource = "balance"
	SourceFree    CreditSource = "free"
	SourceNone    CreditSource = "none"
)

// Ledger is the GORM-backed credits repository. freeCreditsAmount is the
// FREE_CREDITS constant from spec.md §4.I, injected so it can be
// environment-configured (FREE_FRESH_FETCH_ALLOWANCE, spec.md §6.5).
type Ledger struct {
	db                *gorm.DB
	freeCreditsAmount int64
}

// New builds a Ledger. freeCreditsAmount is how many credits
// grant_free_if_missing grants a first-time user.
func New(db *gorm.DB, freeCreditsAmount int64) *Ledger {
	return &Ledger{db: db, freeCreditsAmount: freeCreditsAmount}
}

// GrantFreeIfMissing sets freeCreditsGranted to true and grants
// freeCreditsAmount if the user has never received it. Returns whether this
// call performed the grant.
func (l *Ledger) GrantFreeIfMissing(userID string) (granted bool, err error) {
	err = l.db.Transaction(func(tx *gorm.DB) error {
		var creds UserCredits
		txErr := tx.Where("user_id = ?", userID).First(&creds).Error
		switch {
		case errors.Is(txErr, gorm.ErrRecordNotFound):
			creds = UserCredits{UserID: userID}
		case txErr != nil:
			return txErr
		}

		if creds.FreeCreditsGranted {
			return nil
		}

		creds.FreeCreditsGranted = true
		creds.Balance += l.freeCreditsAmount
		creds.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&creds).Error; err != nil {
			return err
		}

		if err := appendLedgerRow(tx, userID, EntryGrantFree, l.freeCreditsAmount, creds.Balance, "first free credit grant", ""); err != nil {
			return err
		}
		granted = true
		return nil
	})
	return granted, err
}

// Availability is the read-only result of HasCreditsAvailable.
type Availability struct {
	Available     bool
	Balance       int64
	FreeAvailable bool
	Source        CreditSource
}

// HasCreditsAvailable reports whether the user could successfully consume
// a credit right now, without mutating anything.
func (l *Ledger) HasCreditsAvailable(userID string) (Availability, error) {
	var creds UserCredits
	err := l.db.Where("user_id = ?", userID).First(&creds).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Availability{Available: true, FreeAvailable: true, Source: SourceFree}, nil
	}
	if err != nil {
		return Availability{}, err
	}

	if creds.Balance > 0 {
		return Availability{Available: true, Balance: creds.Balance, Source: SourceBalance}, nil
	}
	if !creds.FreeCreditsGranted {
		return Availability{Available: true, FreeAvailable: true, Source: SourceFree}, nil
	}
	return Availability{Available: false, Balance: creds.Balance, Source: SourceNone}, nil
}

// ConsumeResult is returned by ConsumeCredit.
type ConsumeResult struct {
	Success    bool
	NewBalance int64
	Source     CreditSource
}

// ConsumeCredit implements the four-way branch in spec.md §4.I: first-time
// free grant + immediate consume, granted-but-empty net-zero consume,
// conditional balance decrement, or ErrNoCredits.
func (l *Ledger) ConsumeCredit(userID, comparisonID string) (ConsumeResult, error) {
	var result ConsumeResult
	err := l.db.Transaction(func(tx *gorm.DB) error {
		var creds UserCredits
		err := tx.Where("user_id = ?", userID).First(&creds).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Case 1: no row at all — grant free, then consume one.
			creds = UserCredits{UserID: userID, FreeCreditsGranted: true, UpdatedAt: time.Now().UTC()}
			if err := tx.Create(&creds).Error; err != nil {
				return err
			}
			grantedBalance := l.freeCreditsAmount
			if err := appendLedgerRow(tx, userID, EntryGrantFree, l.freeCreditsAmount, grantedBalance, "first free credit grant", ""); err != nil {
				return err
			}
			newBalance := grantedBalance - 1
			if err := tx.Model(&UserCredits{}).Where("user_id = ?", userID).
				Update("balance", newBalance).Error; err != nil {
				return err
			}
			if err := appendLedgerRow(tx, userID, EntryConsume, -1, newBalance, "fresh fetch", comparisonID); err != nil {
				return err
			}
			result = ConsumeResult{Success: true, NewBalance: newBalance, Source: SourceFree}
			return nil

		case err != nil:
			return err

		case creds.Balance == 0 && !creds.FreeCreditsGranted:
			// Case 2: row exists with zero balance, free never used — grant
			// and consume in the same transaction, net balance stays 0.
			if err := tx.Model(&UserCredits{}).Where("user_id = ?", userID).
				Updates(map[string]interface{}{"free_credits_granted": true, "updated_at": time.Now().UTC()}).Error; err != nil {
				return err
			}
			grantedBalance := l.freeCreditsAmount
			if err := appendLedgerRow(tx, userID, EntryGrantFree, l.freeCreditsAmount, grantedBalance, "first free credit grant", ""); err != nil {
				return err
			}
			newBalance := grantedBalance - 1
			if err := tx.Model(&UserCredits{}).Where("user_id = ?", userID).
				Update("balance", newBalance).Error; err != nil {
				return err
			}
			if err := appendLedgerRow(tx, userID, EntryConsume, -1, newBalance, "fresh fetch", comparisonID); err != nil {
				return err
			}
			result = ConsumeResult{Success: true, NewBalance: newBalance, Source: SourceFree}
			return nil

		case creds.Balance > 0:
			// Case 3: conditional decrement — a concurrent consumer may win the race.
			tx2 := tx.Model(&UserCredits{}).
				Where("user_id = ? AND balance > 0", userID).
				Update("balance", gorm.Expr("balance - 1"))
			if tx2.Error != nil {
				return tx2.Error
			}
			if tx2.RowsAffected == 0 {
				return ErrNoCredits
			}
			var after UserCredits
			if err := tx.Where("user_id = ?", userID).First(&after).Error; err != nil {
				return err
			}
			if err := appendLedgerRow(tx, userID, EntryConsume, -1, after.Balance, "fresh fetch", comparisonID); err != nil {
				return err
			}
			result = ConsumeResult{Success: true, NewBalance: after.Balance, Source: SourceBalance}
			return nil

		default:
			return ErrNoCredits
		}
	})

	if errors.Is(err, ErrNoCredits) {
		return ConsumeResult{Success: false}, ErrNoCredits
	}
	return result, err
}

// CreatePendingPurchase inserts a Purchase row in the pending state at
// checkout-session-creation time, per spec.md §3.5's
// pending->paid->refunded state machine. ExternalPaymentID is seeded with
// the session id as a placeholder unique key; handleCheckoutCompleted
// overwrites it with the real payment intent id once known.
func (l *Ledger) CreatePendingPurchase(userID, sessionID string, pack CreditPack) error {
	purchase := Purchase{
		UserID:             userID,
		Provider:           "stripe",
		ExternalSessionID:  sessionID,
		ExternalPaymentID:  sessionID,
		PackID:             pack.PackID,
		CreditsAmount:      pack.Credits,
		AmountCents:        pack.PriceCents,
		Currency:           pack.Currency,
		Status:             PurchasePending,
		CreatedAt:          time.Now().UTC(),
	}
	return l.db.Create(&purchase).Error
}

// AddPurchasedCredits upserts the credits row and appends a purchase
// ledger entry. Called only from webhook intake, after the registry has
// resolved the trustworthy credit amount.
func (l *Ledger) AddPurchasedCredits(userID string, amount int64, purchaseID string) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var creds UserCredits
		err := tx.Where("user_id = ?", userID).First(&creds).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			creds = UserCredits{UserID: userID}
		} else if err != nil {
			return err
		}

		creds.Balance += amount
		creds.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&creds).Error; err != nil {
			return err
		}

		return appendLedgerRow(tx, userID, EntryPurchase, amount, creds.Balance, "credit pack purchase", purchaseID)
	})
}

// RefundCredits floors the balance at zero and appends a refund row.
func (l *Ledger) RefundCredits(userID string, amount int64, purchaseID, reason string) error {
	return l.db.Transaction(func(tx *gorm.DB) error {
		var creds UserCredits
		if err := tx.Where("user_id = ?", userID).First(&creds).Error; err != nil {
			return err
		}

		newBalance := creds.Balance - amount
		if newBalance < 0 {
			newBalance = 0
		}
		actualDelta := newBalance - creds.Balance

		creds.Balance = newBalance
		creds.UpdatedAt = time.Now().UTC()
		if err := tx.Save(&creds).Error; err != nil {
			return err
		}

		return appendLedgerRow(tx, userID, EntryRefund, actualDelta, newBalance, reason, purchaseID)
	})
}

func appendLedgerRow(tx *gorm.DB, userID string, entryType LedgerEntryType, delta, balanceAfter int64, reason, relatedObject string) error {
	return tx.Create(&CreditLedger{
		UserID:        userID,
		Type:          entryType,
		Delta:         delta,
		BalanceAfter:  balanceAfter,
		Reason:        reason,
		RelatedObject: relatedObject,
		CreatedAt:     time.Now().UTC(),
	}).Error
}
