package models

// PlatformCatalogEntry is the purchase platform's view of a product. It is
// used only to render price/period and to obtain offer tokens; authoritative
// entitlement data lives in ProductInfo and the ledger.
type PlatformCatalogEntry struct {
	ProductID string              `json:"product_id"`
	Title     string              `json:"title"`
	Offers    []SubscriptionOffer `json:"offers"`
}

type SubscriptionOffer struct {
	OfferToken    string         `json:"offer_token"`
	BasePlanID    string         `json:"base_plan_id"`
	OfferID       string         `json:"offer_id,omitempty"`
	PricingPhases []PricingPhase `json:"pricing_phases"`
}

// PricingPhase is one step of an offer's price schedule, in platform-reported
// order (introductory phases before the full-price phase).
type PricingPhase struct {
	PriceAmountMicros int64  `json:"price_amount_micros"`
	PriceFormatted    string `json:"price_formatted"`
	CurrencyCode      string `json:"currency_code"`
	BillingPeriodCode string `json:"billing_period_code"`
	CycleCount        int    `json:"cycle_count"`
}

// FullPricePhase returns the last phase of the offer, which by platform
// convention carries the recurring full price.
func (o *SubscriptionOffer) FullPricePhase() *PricingPhase {
	if len(o.PricingPhases) == 0 {
		return nil
	}
	return &o.PricingPhases[len(o.PricingPhases)-1]
}
