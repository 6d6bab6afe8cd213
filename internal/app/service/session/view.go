package session

import (
	"github.com/samber/lo"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/types"
)

// ViewState is the read-only snapshot the presentation layer renders from.
// Copies are handed out under the session lock; mutating one has no effect.
type ViewState struct {
	Initialized bool
	// NoConnectionAndNoCache is the persistent dead-end state: the ledger was
	// unreachable and nothing usable was cached. It clears only on explicit
	// re-initialization.
	NoConnectionAndNoCache bool
	SelectedTab            types.PeriodTab
	CurrentProduct         *models.ProductInfo
	CurrentPurchase        *models.PurchaseRecord
	PendingPurchase        *models.PurchaseRecord
	BaseServiceLevel       string
	Catalog                []*models.ProductInfo
	VisibleProducts        []*models.ProductInfo
}

// filterByTab keeps the products whose billing period maps onto tab.
func filterByTab(catalog []*models.ProductInfo, tab types.PeriodTab) []*models.ProductInfo {
	return lo.Filter(catalog, func(p *models.ProductInfo, _ int) bool {
		period, ok := p.Period()
		if !ok {
			return false
		}
		t, ok := period.Tab()
		return ok && t == tab
	})
}

// defaultTab picks the initial period tab: the current product's own period
// when determinate, otherwise the first populated tab in weekly > monthly >
// yearly priority, falling back to yearly.
func defaultTab(current *models.ProductInfo, catalog []*models.ProductInfo) types.PeriodTab {
	if current != nil {
		if period, ok := current.Period(); ok {
			if tab, ok := period.Tab(); ok {
				return tab
			}
		}
	}
	for _, tab := range []types.PeriodTab{types.PeriodTabWeekly, types.PeriodTabMonthly, types.PeriodTabYearly} {
		if len(filterByTab(catalog, tab)) > 0 {
			return tab
		}
	}
	return types.PeriodTabYearly
}
