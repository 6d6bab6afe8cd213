package models

import (
	"github.com/fatflowers/paywall/pkg/types"
)

// ActiveSubscriptionInfo is the ledger's authoritative record for one user.
type ActiveSubscriptionInfo struct {
	Product          *ProductInfo `json:"product"`
	BaseServiceLevel string       `json:"base_service_level"`
	// ProductUpdateTimestamp and ThemeConfigTimestamp are independent freshness
	// markers; a cache entry for either resource is valid only while its stored
	// timestamp equals the one reported here.
	ProductUpdateTimestamp int64 `json:"product_update_timestamp"`
	ThemeConfigTimestamp   int64 `json:"theme_config_timestamp"`
	// OwnerUUID is the server-assigned stable user identifier, distinct from
	// the partner-supplied owner id.
	OwnerUUID string `json:"owner_uuid"`
	// Platform is where the active purchase actually occurred. When it differs
	// from the local platform, platform catalog lookups by product id will not
	// match and cross-mapping by (period, service level) is required.
	Platform types.Platform `json:"platform"`
}

// ForeignTo reports whether the active purchase was made on a platform other
// than local.
func (a *ActiveSubscriptionInfo) ForeignTo(local types.Platform) bool {
	return a != nil && a.Platform != "" && a.Platform != local
}
