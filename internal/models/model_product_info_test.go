package models

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fatflowers/paywall/pkg/types"
)

func TestSameEntitlement(t *testing.T) {
	gold := func(period string) *ProductInfo {
		return &ProductInfo{ServiceLevel: "gold", RecurringPeriodCode: period}
	}

	tests := []struct {
		name string
		a, b *ProductInfo
		want bool
	}{
		{name: "same level and period", a: gold("P1M"), b: gold("P1M"), want: true},
		{name: "period compared structurally", a: gold("P01M"), b: gold("P1M"), want: true},
		{name: "different period", a: gold("P1M"), b: gold("P1Y"), want: false},
		{name: "different level", a: gold("P1M"), b: &ProductInfo{ServiceLevel: "silver", RecurringPeriodCode: "P1M"}, want: false},
		{name: "indeterminate period never matches", a: gold(""), b: gold(""), want: false},
		{name: "nil", a: nil, b: gold("P1M"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.SameEntitlement(tt.b))
		})
	}
}

func TestPurchaseRecordNeedsAcknowledgement(t *testing.T) {
	tests := []struct {
		name string
		rec  PurchaseRecord
		want bool
	}{
		{name: "purchased unacknowledged", rec: PurchaseRecord{State: types.PurchaseStatePurchased}, want: true},
		{name: "unspecified unacknowledged", rec: PurchaseRecord{State: types.PurchaseStateUnspecified}, want: true},
		{name: "already acknowledged", rec: PurchaseRecord{State: types.PurchaseStatePurchased, Acknowledged: true}, want: false},
		{name: "pending settles platform-side first", rec: PurchaseRecord{State: types.PurchaseStatePending}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rec.NeedsAcknowledgement())
		})
	}
}

func TestPurchaseRecordProducts(t *testing.T) {
	rec := PurchaseRecord{ProductIDs: []string{"android.gold.monthly", "android.addon"}}
	assert.Equal(t, "android.gold.monthly", rec.PrimaryProductID())
	assert.True(t, rec.Contains("android.addon"))
	assert.False(t, rec.Contains("android.silver.monthly"))

	var empty PurchaseRecord
	assert.Empty(t, empty.PrimaryProductID())
}
