package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusPtr(s OrderStatus) *OrderStatus { return &s }

func strPtr(s string) *string { return &s }

func TestOrderStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to OrderStatus
		want     bool
	}{
		{OrderStatusPending, OrderStatusPaid, true},
		{OrderStatusPaid, OrderStatusProcessing, true},
		{OrderStatusProcessing, OrderStatusShipped, true},
		{OrderStatusShipped, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusCancelled, true},
		{OrderStatusShipped, OrderStatusRefunded, true},
		{OrderStatusPaid, OrderStatusPaid, true},
		{OrderStatusDelivered, OrderStatusDelivered, true},
		{OrderStatusPending, OrderStatusShipped, false},
		{OrderStatusDelivered, OrderStatusPending, false},
		{OrderStatusCancelled, OrderStatusPaid, false},
		{OrderStatusRefunded, OrderStatusCancelled, false},
		{OrderStatusPaid, OrderStatusPending, false},
		{OrderStatusPending, OrderStatus("bogus"), false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestApplyOrderUpdate_PaidSetsPaidAtOnce(t *testing.T) {
	o := &Order{Status: OrderStatusPending}
	first := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, ApplyOrderUpdate(o, OrderUpdate{Status: statusPtr(OrderStatusPaid)}, first))
	require.NotNil(t, o.PaidAt)
	assert.Equal(t, first, *o.PaidAt)

	later := first.Add(time.Hour)
	require.NoError(t, ApplyOrderUpdate(o, OrderUpdate{Status: statusPtr(OrderStatusPaid)}, later))
	assert.Equal(t, first, *o.PaidAt)
	assert.Equal(t, later, o.UpdatedAt)
}

func TestApplyOrderUpdate_RejectsInvalidTransition(t *testing.T) {
	o := &Order{Status: OrderStatusDelivered, Notes: "keep"}
	err := ApplyOrderUpdate(o, OrderUpdate{
		Status: statusPtr(OrderStatusPending),
		Notes:  strPtr("changed"),
	}, time.Now())
	assert.ErrorIs(t, err, ErrInvalidStatusTransition)
	assert.Equal(t, OrderStatusDelivered, o.Status)
	assert.Equal(t, "keep", o.Notes)
}

func TestApplyOrderUpdate_PartialFields(t *testing.T) {
	o := &Order{Status: OrderStatusPending, PaymentID: "old", Notes: "n"}
	require.NoError(t, ApplyOrderUpdate(o, OrderUpdate{PaymentID: strPtr("pi_123")}, time.Now()))
	assert.Equal(t, "pi_123", o.PaymentID)
	assert.Equal(t, "n", o.Notes)
	assert.Equal(t, OrderStatusPending, o.Status)
	assert.Nil(t, o.PaidAt)
}
