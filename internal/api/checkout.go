package api

import (
	"fmt"

	"github.com/auctioncompare/api/internal/config"
	"github.com/auctioncompare/api/internal/ledger"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
)

// createCheckoutSession creates a Stripe Checkout Session for a trusted
// CreditPack and records a pending Purchase row against it, so
// spec.md §3.5's pending->paid->refunded state machine has a pending row
// to transition instead of the webhook materializing one from nothing.
// The registry-resolved price, not client input, is what reaches Stripe,
// per spec.md §3.6's trust contract.
func createCheckoutSession(cfg *config.Config, credits *ledger.Ledger, pack ledger.CreditPack, userID string) (string, error) {
	stripe.Key = cfg.Stripe.SecretKey

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(pack.StripePriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(cfg.Server.AppBaseURL + "/billing/success?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(cfg.Server.AppBaseURL + "/billing/cancel"),
		Metadata: map[string]string{
			"packId": pack.PackID,
			"userId": userID,
		},
	}

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe checkout session: %w", err)
	}

	if err := credits.CreatePendingPurchase(userID, sess.ID, pack); err != nil {
		return "", fmt.Errorf("record pending purchase: %w", err)
	}

	return sess.URL, nil
}
