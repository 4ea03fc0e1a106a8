package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"

	"github.com/flicky/storefront-api/internal/model"
)

const orderNumberMetadataKey = "order_number"

type paymentIntentCreator interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

// Stripe collects payments through PaymentIntents and authenticates
// webhooks with the endpoint signing secret.
type Stripe struct {
	intents       paymentIntentCreator
	webhookSecret string
}

func NewStripe(secretKey, webhookSecret string) *Stripe {
	sc := client.New(secretKey, nil)
	return &Stripe{intents: sc.PaymentIntents, webhookSecret: webhookSecret}
}

func (s *Stripe) Provider() string { return model.ProviderStripe }

func (s *Stripe) CreatePayment(ctx context.Context, req model.PaymentRequest) (*model.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minorUnits(req.Amount)),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	if req.Email != "" {
		params.ReceiptEmail = stripe.String(req.Email)
	}
	params.Context = ctx
	params.AddMetadata(orderNumberMetadataKey, req.OrderNumber)
	params.AddMetadata("order_id", req.OrderID.String())

	pi, err := s.intents.New(params)
	if err != nil {
		return nil, fmt.Errorf("create payment intent: %w", err)
	}
	return &model.PaymentIntent{
		Provider:     model.ProviderStripe,
		ExternalID:   pi.ID,
		ClientSecret: pi.ClientSecret,
		Amount:       req.Amount,
		Currency:     req.Currency,
	}, nil
}

func (s *Stripe) ParseWebhook(_ context.Context, payload []byte, header http.Header) (*model.PaymentNotification, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header.Get("Stripe-Signature"), s.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return nil, fmt.Errorf("verify stripe signature: %w", err)
	}

	var status model.PaymentStatus
	switch string(event.Type) {
	case "payment_intent.succeeded":
		status = model.PaymentSucceeded
	case "payment_intent.payment_failed", "payment_intent.canceled":
		status = model.PaymentFailed
	default:
		return nil, nil
	}

	if event.Data == nil {
		return nil, fmt.Errorf("stripe event %s has no data", event.ID)
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return nil, fmt.Errorf("decode payment intent: %w", err)
	}
	reference := pi.Metadata[orderNumberMetadataKey]
	if reference == "" {
		return nil, fmt.Errorf("payment intent %s has no order reference", pi.ID)
	}

	return &model.PaymentNotification{
		Provider:          model.ProviderStripe,
		EventID:           event.ID,
		ExternalReference: reference,
		PaymentID:         pi.ID,
		Status:            status,
	}, nil
}

// minorUnits converts a two-decimal currency amount to cents.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}
