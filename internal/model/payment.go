package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	ProviderStripe      = "stripe"
	ProviderMercadoPago = "mercadopago"
)

type PaymentStatus string

const (
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
	PaymentPending   PaymentStatus = "pending"
	PaymentRefunded  PaymentStatus = "refunded"
)

// FetchError reports an authenticated callback whose payment could not be
// retrieved from the provider.
type FetchError struct {
	PaymentID string
	Err       error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch payment %s: %v", e.PaymentID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// PaymentNotification is the provider-neutral form of a webhook callback.
// ExternalReference carries the order number given to the provider when
// the payment was created.
type PaymentNotification struct {
	Provider          string        `json:"provider"`
	EventID           string        `json:"event_id"`
	ExternalReference string        `json:"external_reference"`
	PaymentID         string        `json:"payment_id"`
	Status            PaymentStatus `json:"status"`
	ReceivedAt        time.Time     `json:"received_at"`
}

// PaymentIntent is what a provider returns when a payment is created.
type PaymentIntent struct {
	Provider     string
	ExternalID   string
	ClientSecret string
	RedirectURL  string
	Amount       decimal.Decimal
	Currency     string
}

const (
	PaymentEventApplied = "applied"
	PaymentEventIgnored = "ignored"
	PaymentEventFailed  = "failed"
)

// PaymentEvent records one processed notification and its outcome.
type PaymentEvent struct {
	ID                uuid.UUID
	Provider          string
	EventID           string
	ExternalReference string
	PaymentID         string
	Status            PaymentStatus
	Outcome           string
	Error             string
	CreatedAt         time.Time
}

// PaymentRequest is what a provider needs to collect payment for an order.
type PaymentRequest struct {
	OrderID     uuid.UUID
	OrderNumber string
	UserID      uuid.UUID
	Amount      decimal.Decimal
	Currency    string
	Email       string
}
