package models

import (
	"github.com/fatflowers/paywall/pkg/types"
)

// ProductInfo is a backend-catalog entry. Immutable once fetched; identified
// by ProductID (the platform SKU).
type ProductInfo struct {
	ID             string            `json:"id"`
	ProductID      string            `json:"product_id"`
	DisplayName    string            `json:"display_name"`
	Description    string            `json:"description"`
	Vendor         string            `json:"vendor"`
	App            string            `json:"app"`
	Price          float64           `json:"price"`
	PriceFormatted string            `json:"price_formatted"`
	Platform       types.Platform    `json:"platform"`
	// ServiceLevel is the opaque entitlement tier string; it is the
	// cross-platform half of product identity (see RecurringPeriodCode).
	ServiceLevel        string            `json:"service_level"`
	IsActive            bool              `json:"is_active"`
	RecurringPeriodCode string            `json:"recurring_period_code"`
	ProductType         types.ProductType `json:"product_type"`
	EntitlementID       string            `json:"entitlement_id,omitempty"`
}

// Period decodes RecurringPeriodCode. The boolean is false when the code is
// absent or malformed, which callers must treat as "indeterminate period",
// not an error.
func (p *ProductInfo) Period() (types.BillingPeriod, bool) {
	bp, err := types.ParseBillingPeriod(p.RecurringPeriodCode)
	if err != nil {
		return types.BillingPeriod{}, false
	}
	return bp, true
}

// SameEntitlement reports whether other grants the same entitlement on a
// different platform: equal (recurringPeriodCode, serviceLevel). Period codes
// are compared structurally so "P01M" and "P1M" match.
func (p *ProductInfo) SameEntitlement(other *ProductInfo) bool {
	if p == nil || other == nil {
		return false
	}
	if p.ServiceLevel != other.ServiceLevel {
		return false
	}
	pp, okP := p.Period()
	op, okO := other.Period()
	if !okP || !okO {
		return false
	}
	return pp == op
}
