package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

var ErrInvalidStatusTransition = errors.New("invalid status transition")

// forward lists the single next step of the fulfilment flow.
var forward = map[OrderStatus]OrderStatus{
	OrderStatusPending:    OrderStatusPaid,
	OrderStatusPaid:       OrderStatusProcessing,
	OrderStatusProcessing: OrderStatusShipped,
	OrderStatusShipped:    OrderStatusDelivered,
}

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing, OrderStatusShipped,
		OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled || s == OrderStatusRefunded
}

// CanTransitionTo reports whether an order in status s may move to next.
// Writing the current status again is always allowed.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	if s.Terminal() {
		return false
	}
	if next == OrderStatusCancelled || next == OrderStatusRefunded {
		return true
	}
	return forward[s] == next
}

// ShippingAddress is copied onto the order at creation time.
type ShippingAddress struct {
	Name    string
	Email   string
	Phone   string
	Address string
	City    string
	State   string
	Zip     string
	Country string
}

type Order struct {
	ID            uuid.UUID
	OrderNumber   string
	UserID        uuid.UUID
	Shipping      ShippingAddress
	Subtotal      decimal.Decimal
	ShippingCost  decimal.Decimal
	Tax           decimal.Decimal
	Total         decimal.Decimal
	Status        OrderStatus
	PaymentMethod string
	PaymentID     string
	PaidAt        *time.Time
	Notes         string
	Items         []OrderItem
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem snapshots the product name and SKU so the line survives later
// catalog changes.
type OrderItem struct {
	ID          uuid.UUID
	OrderID     uuid.UUID
	ProductID   uuid.UUID
	ProductName string
	ProductSKU  string
	Quantity    int
	Price       decimal.Decimal
	Subtotal    decimal.Decimal
	CreatedAt   time.Time
}

// OrderUpdate is the partial update an administrator or a payment
// notification can apply to an existing order.
type OrderUpdate struct {
	Status        *OrderStatus
	PaymentMethod *string
	PaymentID     *string
	Notes         *string
}

// ApplyOrderUpdate merges upd onto o. Moving to paid stamps PaidAt once;
// an existing PaidAt is never overwritten.
func ApplyOrderUpdate(o *Order, upd OrderUpdate, now time.Time) error {
	if upd.Status != nil {
		if !o.Status.CanTransitionTo(*upd.Status) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, o.Status, *upd.Status)
		}
		o.Status = *upd.Status
		if o.Status == OrderStatusPaid && o.PaidAt == nil {
			paidAt := now
			o.PaidAt = &paidAt
		}
	}
	if upd.PaymentMethod != nil {
		o.PaymentMethod = *upd.PaymentMethod
	}
	if upd.PaymentID != nil {
		o.PaymentID = *upd.PaymentID
	}
	if upd.Notes != nil {
		o.Notes = *upd.Notes
	}
	o.UpdatedAt = now
	return nil
}

// OrderPlacedMessage is published after an order commits.
type OrderPlacedMessage struct {
	OrderID     uuid.UUID       `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	UserID      uuid.UUID       `json:"user_id"`
	Total       decimal.Decimal `json:"total"`
	PlacedAt    time.Time       `json:"placed_at"`
}
