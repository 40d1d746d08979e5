package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
	"gorm.io/gorm"
)

// ErrBadSignature is returned by VerifyAndParse when the stripe-signature
// header does not match the configured webhook secret.
var ErrBadSignature = errors.New("ledger: webhook signature verification failed")

// WebhookIntake processes Stripe events into Purchase/CreditLedger rows.
// Every handler is idempotent per spec.md §4.I and §8 invariant 5: a
// redelivered event id is recorded in ProcessedEvent and short-circuits.
type WebhookIntake struct {
	db            *gorm.DB
	ledger        *Ledger
	registry      *Registry
	webhookSecret string
}

// NewWebhookIntake wires a WebhookIntake against the shared db/ledger/registry.
func NewWebhookIntake(db *gorm.DB, l *Ledger, registry *Registry, webhookSecret string) *WebhookIntake {
	return &WebhookIntake{db: db, ledger: l, registry: registry, webhookSecret: webhookSecret}
}

// VerifyAndParse validates the stripe-signature header against the raw
// body and returns the decoded event, per stripe-go's webhook package.
func (w *WebhookIntake) VerifyAndParse(payload []byte, signatureHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signatureHeader, w.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("%w: %v", ErrBadSignature, err)
	}
	return event, nil
}

// HandleEvent dispatches a verified event to the matching handler. Unknown
// event types are ignored. Handler failures are returned to the caller;
// per spec.md §7's error-handling table, the HTTP handler logs them and
// still answers 200 on a handled-but-failed event.
func (w *WebhookIntake) HandleEvent(event stripe.Event) error {
	already, err := w.markProcessedIfNew(event)
	if err != nil {
		return err
	}
	if already {
		slog.Info("webhook event already processed, skipping", "event_id", event.ID, "type", event.Type)
		return nil
	}

	switch event.Type {
	case "checkout.session.completed":
		var session stripe.CheckoutSession
		if err := unmarshalEventObject(event, &session); err != nil {
			return err
		}
		return w.handleCheckoutCompleted(&session)
	case "charge.refunded":
		var charge stripe.Charge
		if err := unmarshalEventObject(event, &charge); err != nil {
			return err
		}
		return w.handleChargeRefunded(&charge)
	default:
		return nil
	}
}

func unmarshalEventObject(event stripe.Event, target interface{}) error {
	if err := json.Unmarshal(event.Data.Raw, target); err != nil {
		return fmt.Errorf("decode stripe event %s: %w", event.ID, err)
	}
	return nil
}

// markProcessedIfNew inserts a ProcessedEvent row and reports whether this
// event id was already seen (unique (provider, eventId), spec.md §5).
func (w *WebhookIntake) markProcessedIfNew(event stripe.Event) (alreadyProcessed bool, err error) {
	row := ProcessedEvent{Provider: "stripe", EventID: event.ID, CreatedAt: time.Now().UTC()}
	err = w.db.Create(&row).Error
	if err == nil {
		return false, nil
	}
	// A unique constraint violation means we've seen this event before;
	// any other error is a real failure.
	var existing ProcessedEvent
	lookupErr := w.db.Where("provider = ? AND event_id = ?", "stripe", event.ID).First(&existing).Error
	if lookupErr == nil {
		return true, nil
	}
	return false, err
}

// handleCheckoutCompleted implements spec.md §4.I's five-step sequence:
// idempotency check, trusted pack lookup, purchase row transition from
// pending to paid, ledger credit, done (event-id dedup already happened
// above). The pending Purchase row is expected to already exist — created
// at checkout-session-creation time — and is looked up by the session id
// CreatePendingPurchase keyed it with; a miss there is itself an anomaly
// worth surfacing rather than silently materializing a fresh row.
func (w *WebhookIntake) handleCheckoutCompleted(session *stripe.CheckoutSession) error {
	externalPaymentID := session.ID
	if session.PaymentIntent != nil {
		externalPaymentID = session.PaymentIntent.ID
	}

	var purchase Purchase
	err := w.db.Where("external_session_id = ?", session.ID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("ledger: no pending purchase found for checkout session %s", session.ID)
	}
	if err != nil {
		return err
	}
	if purchase.Status == PurchasePaid {
		return nil
	}

	packID := session.Metadata["packId"]
	userID := session.Metadata["userId"]
	pack, ok := w.registry.Lookup(packID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownPack, packID)
	}

	now := time.Now().UTC()
	purchase.UserID = userID
	purchase.ExternalPaymentID = externalPaymentID
	purchase.PackID = pack.PackID
	purchase.CreditsAmount = pack.Credits
	purchase.AmountCents = pack.PriceCents
	purchase.Currency = pack.Currency
	purchase.Status = PurchasePaid
	purchase.PaidAt = &now
	if err := w.db.Save(&purchase).Error; err != nil {
		return err
	}

	return w.ledger.AddPurchasedCredits(userID, pack.Credits, externalPaymentID)
}

// handleChargeRefunded locates the purchase by externalPaymentId and, if
// not already refunded, flips its status and claws back the credits.
func (w *WebhookIntake) handleChargeRefunded(charge *stripe.Charge) error {
	externalPaymentID := charge.ID
	if charge.PaymentIntent != nil {
		externalPaymentID = charge.PaymentIntent.ID
	}

	var purchase Purchase
	err := w.db.Where("external_payment_id = ?", externalPaymentID).First(&purchase).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		slog.Warn("refund for unknown purchase", "external_payment_id", externalPaymentID)
		return nil
	}
	if err != nil {
		return err
	}
	if purchase.Status == PurchaseRefunded {
		return nil
	}

	purchase.Status = PurchaseRefunded
	if err := w.db.Save(&purchase).Error; err != nil {
		return err
	}

	return w.ledger.RefundCredits(purchase.UserID, purchase.CreditsAmount, fmt.Sprintf("%d", purchase.ID), "stripe charge refunded")
}
