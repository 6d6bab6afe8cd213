package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBillingPeriod(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		want    BillingPeriod
		wantErr bool
	}{
		{name: "one month", code: "P1M", want: BillingPeriod{Count: 1, Unit: PeriodUnitMonth}},
		{name: "one year", code: "P1Y", want: BillingPeriod{Count: 1, Unit: PeriodUnitYear}},
		{name: "one week", code: "P1W", want: BillingPeriod{Count: 1, Unit: PeriodUnitWeek}},
		{name: "multi digit count", code: "P12W", want: BillingPeriod{Count: 12, Unit: PeriodUnitWeek}},
		{name: "zero padded count", code: "P01M", want: BillingPeriod{Count: 1, Unit: PeriodUnitMonth}},
		{name: "lowercase", code: "p1y", want: BillingPeriod{Count: 1, Unit: PeriodUnitYear}},
		{name: "empty", code: "", wantErr: true},
		{name: "no prefix", code: "1M", wantErr: true},
		{name: "unknown unit", code: "P1Q", wantErr: true},
		{name: "zero count", code: "P0M", wantErr: true},
		{name: "no count", code: "PM", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseBillingPeriod(tt.code)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBillingPeriod_CodeRoundTrip(t *testing.T) {
	for _, code := range []string{"P1M", "P1Y", "P1W", "P3D", "P12W"} {
		p, err := ParseBillingPeriod(code)
		require.NoError(t, err)
		assert.Equal(t, code, p.Code())
	}
}

func TestBillingPeriod_Tab(t *testing.T) {
	tests := []struct {
		code   string
		tab    PeriodTab
		mapped bool
	}{
		{code: "P1W", tab: PeriodTabWeekly, mapped: true},
		{code: "P1M", tab: PeriodTabMonthly, mapped: true},
		{code: "P1Y", tab: PeriodTabYearly, mapped: true},
		{code: "P3D", mapped: false},
	}
	for _, tt := range tests {
		p, err := ParseBillingPeriod(tt.code)
		require.NoError(t, err)
		tab, ok := p.Tab()
		assert.Equal(t, tt.mapped, ok, tt.code)
		if tt.mapped {
			assert.Equal(t, tt.tab, tab, tt.code)
		}
	}
}
