package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrOrderNotFound     = errors.New("order not found")
	ErrForbidden         = errors.New("forbidden")
	ErrPaymentProcessor  = errors.New("payment processor error")

	ErrEmptyOrder = &ValidationError{Field: "items", Reason: "order must contain at least one item"}
)

// ValidationError reports a request that can never succeed as submitted.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type ProductNotFoundError struct {
	ProductID uuid.UUID
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

func (e *ProductNotFoundError) Is(target error) bool { return target == ErrProductNotFound }

type InsufficientStockError struct {
	ProductID uuid.UUID
	Available int
	Requested int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PaymentProcessorError wraps an opaque failure from a payment provider.
type PaymentProcessorError struct {
	Provider string
	Err      error
}

func (e *PaymentProcessorError) Error() string {
	return fmt.Sprintf("payment processor %s: %v", e.Provider, e.Err)
}

func (e *PaymentProcessorError) Unwrap() error { return e.Err }

func (e *PaymentProcessorError) Is(target error) bool { return target == ErrPaymentProcessor }
