package payment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v72"
	"github.com/stripe/stripe-go/v72/client"
	"github.com/stripe/stripe-go/v72/webhook"

	"tripplanner/config"
	"tripplanner/internal/models"
)

const eventCheckoutCompleted = "checkout.session.completed"

// CheckoutEvent is the part of a verified webhook event the payment flow
// acts on.
type CheckoutEvent struct {
	Type            string
	SessionID       string
	PaymentID       string // client_reference_id
	PaymentIntentID string
}

// Completed reports whether the event settles a checkout session.
func (e *CheckoutEvent) Completed() bool {
	return e.Type == eventCheckoutCompleted
}

// CardGateway creates hosted card checkouts and verifies their webhooks.
type CardGateway interface {
	CreateCheckoutSession(p *models.Payment, customerEmail string) (sessionID, url string, err error)
	ParseWebhook(payload []byte, signature string) (*CheckoutEvent, error)
}

type StripeClient struct {
	api           *client.API
	webhookSecret string
	priceID       string
	productID     string
	successURL    string
	cancelURL     string
}

func NewStripeClient(cfg config.StripeConfig) *StripeClient {
	return &StripeClient{
		api:           client.New(cfg.SecretKey, nil),
		webhookSecret: cfg.WebhookKey,
		priceID:       cfg.PriceID,
		productID:     cfg.ProductID,
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
	}
}

// CreateCheckoutSession opens a card checkout for p. The payment id travels
// as client_reference_id so the webhook can find the row again.
func (s *StripeClient) CreateCheckoutSession(p *models.Payment, customerEmail string) (string, string, error) {
	item := &stripe.CheckoutSessionLineItemParams{Quantity: stripe.Int64(1)}
	if p.Plan == models.PlanPro && s.priceID != "" {
		item.Price = stripe.String(s.priceID)
	} else {
		priceData := &stripe.CheckoutSessionLineItemPriceDataParams{
			Currency:   stripe.String(strings.ToLower(p.Currency)),
			UnitAmount: stripe.Int64(p.Amount * 100),
		}
		if s.productID != "" {
			priceData.Product = stripe.String(s.productID)
		} else {
			priceData.ProductData = &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
				Name: stripe.String("TripPlanner " + string(p.Plan)),
			}
		}
		item.PriceData = priceData
	}

	params := &stripe.CheckoutSessionParams{
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		LineItems:         []*stripe.CheckoutSessionLineItemParams{item},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		ClientReferenceID: stripe.String(p.PaymentID),
	}
	if customerEmail != "" {
		params.CustomerEmail = stripe.String(customerEmail)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return "", "", fmt.Errorf("failed to create checkout session: %w", err)
	}

	return sess.ID, sess.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and decodes checkout
// session events. Other event types come back with only Type set.
func (s *StripeClient) ParseWebhook(payload []byte, signature string) (*CheckoutEvent, error) {
	if s.webhookSecret == "" {
		return nil, errors.New("webhook secret is not configured")
	}
	if signature == "" {
		return nil, errors.New("missing Stripe signature header")
	}

	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return nil, fmt.Errorf("invalid webhook signature: %w", err)
	}

	out := &CheckoutEvent{Type: string(event.Type)}
	if !out.Completed() {
		return out, nil
	}
	if event.Data == nil {
		return nil, errors.New("checkout event without data")
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("failed to parse checkout session: %w", err)
	}
	out.SessionID = session.ID
	out.PaymentID = session.ClientReferenceID
	if session.PaymentIntent != nil {
		out.PaymentIntentID = session.PaymentIntent.ID
	}
	return out, nil
}
