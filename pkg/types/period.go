package types

import (
	"fmt"
	"strconv"
	"strings"
)

type PeriodUnit string

const (
	PeriodUnitDay   PeriodUnit = "D"
	PeriodUnitWeek  PeriodUnit = "W"
	PeriodUnitMonth PeriodUnit = "M"
	PeriodUnitYear  PeriodUnit = "Y"
)

// BillingPeriod is the structured form of an ISO-8601-like recurring period
// code such as "P1M" or "P1Y". Codes only exist at the serialization boundary;
// everything inside the engine works on (Count, Unit).
type BillingPeriod struct {
	Count int
	Unit  PeriodUnit
}

// ParseBillingPeriod parses codes of the form P<count><unit>, e.g. "P1M",
// "P12W". The unit is matched by code suffix, which is the ledger's historical
// convention for period encoding.
func ParseBillingPeriod(code string) (BillingPeriod, error) {
	s := strings.TrimSpace(strings.ToUpper(code))
	if len(s) < 3 || !strings.HasPrefix(s, "P") {
		return BillingPeriod{}, fmt.Errorf("invalid billing period code: %q", code)
	}
	unit := PeriodUnit(s[len(s)-1:])
	switch unit {
	case PeriodUnitDay, PeriodUnitWeek, PeriodUnitMonth, PeriodUnitYear:
	default:
		return BillingPeriod{}, fmt.Errorf("unknown billing period unit in %q", code)
	}
	count, err := strconv.Atoi(s[1 : len(s)-1])
	if err != nil || count <= 0 {
		return BillingPeriod{}, fmt.Errorf("invalid billing period count in %q", code)
	}
	return BillingPeriod{Count: count, Unit: unit}, nil
}

func (p BillingPeriod) IsZero() bool {
	return p.Count == 0 || p.Unit == ""
}

// Code renders the period back into its wire form.
func (p BillingPeriod) Code() string {
	if p.IsZero() {
		return ""
	}
	return "P" + strconv.Itoa(p.Count) + string(p.Unit)
}

// Tab maps the period onto a UI period tab. The second return value is false
// when the period does not correspond to any tab (for example daily periods).
func (p BillingPeriod) Tab() (PeriodTab, bool) {
	switch p.Unit {
	case PeriodUnitWeek:
		return PeriodTabWeekly, true
	case PeriodUnitMonth:
		return PeriodTabMonthly, true
	case PeriodUnitYear:
		return PeriodTabYearly, true
	}
	return "", false
}
