package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/model"
)

// currencyPlaces is the number of minor-unit digits every stored amount has.
const currencyPlaces = 2

type ShippingPolicy interface {
	ShippingCost(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal
}

type TaxPolicy interface {
	Tax(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal
}

// ThresholdShipping charges Fee unless the subtotal is strictly above
// FreeAbove.
type ThresholdShipping struct {
	FreeAbove decimal.Decimal
	Fee       decimal.Decimal
}

func (p ThresholdShipping) ShippingCost(subtotal decimal.Decimal, _ model.ShippingAddress) decimal.Decimal {
	if subtotal.GreaterThan(p.FreeAbove) {
		return decimal.Zero
	}
	return p.Fee.Round(currencyPlaces)
}

type FlatRateTax struct {
	Rate decimal.Decimal
}

func (p FlatRateTax) Tax(subtotal decimal.Decimal, _ model.ShippingAddress) decimal.Decimal {
	return subtotal.Mul(p.Rate).Round(currencyPlaces)
}

type ShippingFunc func(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal

func (f ShippingFunc) ShippingCost(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal {
	return f(subtotal, dest)
}

type TaxFunc func(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal

func (f TaxFunc) Tax(subtotal decimal.Decimal, dest model.ShippingAddress) decimal.Decimal {
	return f(subtotal, dest)
}

type Pricing struct {
	Source   config.PriceSource
	Shipping ShippingPolicy
	Tax      TaxPolicy
}

func NewPricing(cfg config.PricingConfig) Pricing {
	return Pricing{
		Source:   cfg.PriceSource,
		Shipping: ThresholdShipping{FreeAbove: cfg.ShippingFreeThreshold, Fee: cfg.ShippingFlatFee},
		Tax:      FlatRateTax{Rate: cfg.TaxRate},
	}
}

// DefaultPricing is the reference policy: catalog prices, free shipping
// above 50 and a flat 10 otherwise, no tax.
func DefaultPricing() Pricing {
	return Pricing{
		Source:   config.PriceSourceCatalog,
		Shipping: ThresholdShipping{FreeAbove: decimal.NewFromInt(50), Fee: decimal.NewFromInt(10)},
		Tax:      FlatRateTax{Rate: decimal.Zero},
	}
}

// NewOrderNumber returns ORD-YYYYMMDD-XXXXXXXX with 32 random bits.
func NewOrderNumber(now time.Time) (string, error) {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return fmt.Sprintf("ORD-%s-%s", now.Format("20060102"), strings.ToUpper(hex.EncodeToString(b))), nil
}
