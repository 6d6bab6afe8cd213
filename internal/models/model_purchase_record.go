package models

import (
	"time"

	"github.com/fatflowers/paywall/pkg/types"
)

// PurchaseRecord is a platform-reported purchase. The token is an opaque,
// single-use identifier for one purchase event; once the ledger accepts it,
// it must never be resubmitted.
type PurchaseRecord struct {
	ProductIDs    []string            `json:"product_ids"`
	PurchaseToken string              `json:"purchase_token"`
	PurchaseTime  time.Time           `json:"purchase_time"`
	Acknowledged  bool                `json:"acknowledged"`
	State         types.PurchaseState `json:"state"`
	OrderID       string              `json:"order_id,omitempty"`
}

// PrimaryProductID returns the first product on the record. Multi-line
// purchases report the subscription SKU first.
func (r *PurchaseRecord) PrimaryProductID() string {
	if len(r.ProductIDs) == 0 {
		return ""
	}
	return r.ProductIDs[0]
}

// Contains reports whether the record covers productID.
func (r *PurchaseRecord) Contains(productID string) bool {
	for _, id := range r.ProductIDs {
		if id == productID {
			return true
		}
	}
	return false
}

// NeedsAcknowledgement reports whether the record is still owed a ledger
// round-trip: not yet acknowledged and in a settled (or unreported) state.
// PENDING purchases are excluded; they settle platform-side first.
func (r *PurchaseRecord) NeedsAcknowledgement() bool {
	if r.Acknowledged {
		return false
	}
	return r.State == types.PurchaseStatePurchased || r.State == types.PurchaseStateUnspecified
}
