package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestLedger(t *testing.T, freeCredits int64) *Ledger {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(&UserCredits{}, &CreditLedger{}, &Purchase{}, &ProcessedEvent{}))
	return New(gdb, freeCredits)
}

func TestGrantFreeIfMissing_OnlyOnce(t *testing.T) {
	l := newTestLedger(t, 3)

	granted, err := l.GrantFreeIfMissing("user-1")
	require.NoError(t, err)
	assert.True(t, granted)

	granted, err = l.GrantFreeIfMissing("user-1")
	require.NoError(t, err)
	assert.False(t, granted)

	var creds UserCredits
	require.NoError(t, l.db.Where("user_id = ?", "user-1").First(&creds).Error)
	assert.Equal(t, int64(3), creds.Balance)

	var rows []CreditLedger
	require.NoError(t, l.db.Where("user_id = ?", "user-1").Find(&rows).Error)
	assert.Len(t, rows, 1)
}

func TestConsumeCredit_FirstTimeUserGetsFreeThenConsumes(t *testing.T) {
	l := newTestLedger(t, 2)

	res, err := l.ConsumeCredit("user-2", "cmp-1")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int64(1), res.NewBalance)
	assert.Equal(t, SourceFree, res.Source)

	var rows []CreditLedger
	require.NoError(t, l.db.Where("user_id = ?", "user-2").Order("created_at").Find(&rows).Error)
	require.Len(t, rows, 2)
	assert.Equal(t, EntryGrantFree, rows[0].Type)
	assert.Equal(t, EntryConsume, rows[1].Type)
}

func TestConsumeCredit_BalanceDecrementsAndRejectsWhenZero(t *testing.T) {
	l := newTestLedger(t, 1)

	require.NoError(t, l.AddPurchasedCredits("user-3", 2, "purchase-1"))

	res, err := l.ConsumeCredit("user-3", "cmp-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.NewBalance)
	assert.Equal(t, SourceBalance, res.Source)

	res, err = l.ConsumeCredit("user-3", "cmp-2")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewBalance)

	// Balance now 0 and free not granted -> net-zero free grant + consume.
	res, err = l.ConsumeCredit("user-3", "cmp-3")
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.NewBalance)
	assert.Equal(t, SourceFree, res.Source)

	// Now balance 0 and free granted -> no credits.
	_, err = l.ConsumeCredit("user-3", "cmp-4")
	assert.ErrorIs(t, err, ErrNoCredits)
}

func TestHasCreditsAvailable(t *testing.T) {
	l := newTestLedger(t, 1)

	avail, err := l.HasCreditsAvailable("brand-new-user")
	require.NoError(t, err)
	assert.True(t, avail.Available)
	assert.Equal(t, SourceFree, avail.Source)

	require.NoError(t, l.AddPurchasedCredits("brand-new-user", 5, "p1"))
	avail, err = l.HasCreditsAvailable("brand-new-user")
	require.NoError(t, err)
	assert.Equal(t, SourceBalance, avail.Source)
	assert.Equal(t, int64(5), avail.Balance)
}

func TestAddPurchasedCredits_AppendsLedgerRow(t *testing.T) {
	l := newTestLedger(t, 1)
	require.NoError(t, l.AddPurchasedCredits("user-4", 10, "purchase-9"))

	var creds UserCredits
	require.NoError(t, l.db.Where("user_id = ?", "user-4").First(&creds).Error)
	assert.Equal(t, int64(10), creds.Balance)

	var row CreditLedger
	require.NoError(t, l.db.Where("user_id = ? AND type = ?", "user-4", EntryPurchase).First(&row).Error)
	assert.Equal(t, int64(10), row.Delta)
	assert.Equal(t, int64(10), row.BalanceAfter)
}

func TestRefundCredits_FloorsAtZero(t *testing.T) {
	l := newTestLedger(t, 1)
	require.NoError(t, l.AddPurchasedCredits("user-5", 3, "p1"))
	require.NoError(t, l.RefundCredits("user-5", 10, "p1", "overrefund"))

	var creds UserCredits
	require.NoError(t, l.db.Where("user_id = ?", "user-5").First(&creds).Error)
	assert.Equal(t, int64(0), creds.Balance)
}

func TestCreatePendingPurchase_InsertsPendingRow(t *testing.T) {
	l := newTestLedger(t, 1)
	pack := CreditPack{PackID: "pack-10", Credits: 10, PriceCents: 999, Currency: "eur", StripePriceID: "price_123"}

	require.NoError(t, l.CreatePendingPurchase("user-7", "cs_test_abc", pack))

	var purchase Purchase
	require.NoError(t, l.db.Where("external_session_id = ?", "cs_test_abc").First(&purchase).Error)
	assert.Equal(t, PurchasePending, purchase.Status)
	assert.Equal(t, "user-7", purchase.UserID)
	assert.Equal(t, int64(10), purchase.CreditsAmount)
	assert.Nil(t, purchase.PaidAt)
}

// TestBalanceMatchesLedgerSum checks invariant 1 from spec.md §8: balance
// always equals the sum of ledger deltas for the user.
func TestBalanceMatchesLedgerSum(t *testing.T) {
	l := newTestLedger(t, 2)
	_, err := l.ConsumeCredit("user-6", "cmp-1")
	require.NoError(t, err)
	require.NoError(t, l.AddPurchasedCredits("user-6", 5, "p1"))
	_, err = l.ConsumeCredit("user-6", "cmp-2")
	require.NoError(t, err)

	var rows []CreditLedger
	require.NoError(t, l.db.Where("user_id = ?", "user-6").Find(&rows).Error)
	var sum int64
	for _, r := range rows {
		sum += r.Delta
	}

	var creds UserCredits
	require.NoError(t, l.db.Where("user_id = ?", "user-6").First(&creds).Error)
	assert.Equal(t, creds.Balance, sum)
}
