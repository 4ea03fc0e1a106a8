package service

import (
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flicky/storefront-api/internal/config"
	"github.com/flicky/storefront-api/internal/model"
)

func TestThresholdShipping(t *testing.T) {
	p := ThresholdShipping{FreeAbove: decimal.NewFromInt(50), Fee: decimal.NewFromInt(10)}

	tests := []struct {
		subtotal string
		want     string
	}{
		{"0", "10"},
		{"49.99", "10"},
		{"50", "10"},
		{"50.01", "0"},
		{"120", "0"},
	}
	for _, tt := range tests {
		got := p.ShippingCost(decimal.RequireFromString(tt.subtotal), model.ShippingAddress{})
		assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "subtotal %s: got %s", tt.subtotal, got)
	}
}

func TestFlatRateTax_RoundsToCents(t *testing.T) {
	p := FlatRateTax{Rate: decimal.RequireFromString("0.07")}
	got := p.Tax(decimal.RequireFromString("10.05"), model.ShippingAddress{})
	assert.Equal(t, "0.70", got.StringFixed(2))
}

func TestNewPricing_FromConfig(t *testing.T) {
	p := NewPricing(config.PricingConfig{
		PriceSource:           config.PriceSourceClient,
		ShippingFlatFee:       decimal.NewFromInt(5),
		ShippingFreeThreshold: decimal.NewFromInt(100),
		TaxRate:               decimal.RequireFromString("0.1"),
	})

	assert.Equal(t, config.PriceSourceClient, p.Source)
	assert.Equal(t, "5.00", p.Shipping.ShippingCost(decimal.NewFromInt(100), model.ShippingAddress{}).StringFixed(2))
	assert.Equal(t, "10.00", p.Tax.Tax(decimal.NewFromInt(100), model.ShippingAddress{}).StringFixed(2))
}

func TestShippingFunc(t *testing.T) {
	byCountry := ShippingFunc(func(_ decimal.Decimal, dest model.ShippingAddress) decimal.Decimal {
		if dest.Country == "US" {
			return decimal.Zero
		}
		return decimal.NewFromInt(25)
	})
	assert.True(t, byCountry.ShippingCost(decimal.NewFromInt(1), model.ShippingAddress{Country: "US"}).IsZero())
	assert.Equal(t, "25", byCountry.ShippingCost(decimal.NewFromInt(1), model.ShippingAddress{Country: "BR"}).String())
}

func TestNewOrderNumber(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	pattern := regexp.MustCompile(`^ORD-20240102-[0-9A-F]{8}$`)

	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		n, err := NewOrderNumber(now)
		require.NoError(t, err)
		assert.Regexp(t, pattern, n)
		seen[n] = true
	}
	assert.Greater(t, len(seen), 1)
}
