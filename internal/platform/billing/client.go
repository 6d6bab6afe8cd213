package billing

import (
	"errors"
	"fmt"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/types"
)

// ErrNotConnected is the local precondition failure for platform operations
// invoked while the connection is down. It never reflects a remote error.
var ErrNotConnected = errors.New("billing: not connected to purchase platform")

// Result is the platform's response envelope for any operation.
type Result struct {
	Code         types.ResponseCode
	DebugMessage string
}

func (r Result) OK() bool {
	return r.Code == types.ResponseOK
}

// Err converts a non-OK result into a PlatformError, nil otherwise.
func (r Result) Err() error {
	if r.OK() {
		return nil
	}
	return &PlatformError{Code: r.Code, Message: r.DebugMessage}
}

// PlatformError is a platform-reported failure with its code preserved so
// handling can stay exhaustive instead of string-matching.
type PlatformError struct {
	Code    types.ResponseCode
	Message string
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("billing: platform error %s", e.Code)
	}
	return fmt.Sprintf("billing: platform error %s: %s", e.Code, e.Message)
}

// ReplacementMode is the proration policy attached to an upgrade/replace flow.
type ReplacementMode string

const (
	// ReplacementChargeFullPrice replaces the old subscription immediately and
	// charges the new plan's full price.
	ReplacementChargeFullPrice ReplacementMode = "CHARGE_FULL_PRICE"
)

// FlowParams describes one purchase-flow launch. OldPurchaseToken being
// non-empty makes it an upgrade/replace request.
type FlowParams struct {
	ProductID  string
	OfferToken string
	// Obfuscated identifiers are the ledger-assigned UUID, never the
	// partner-supplied owner id; the platform uses them for fraud linkage.
	ObfuscatedAccountID string
	ObfuscatedProfileID string
	OldPurchaseToken    string
	ReplacementMode     ReplacementMode
}

// Listener receives the platform's push callbacks. Callbacks arrive on an
// externally-owned execution context; implementations must bridge back into
// their own control flow.
type Listener interface {
	OnSetupFinished(res Result)
	OnServiceDisconnected()
	OnPurchasesUpdated(res Result, records []models.PurchaseRecord)
}

// Client is the external purchase-platform boundary. It is a capability
// provided by the host (a device bridge, or a test stub); the engine never
// reimplements it.
type Client interface {
	StartConnection(l Listener)
	QueryPurchases(productType string, cb func(res Result, records []models.PurchaseRecord))
	QueryCatalog(productIDs []string, cb func(res Result, entries []models.PlatformCatalogEntry))
	LaunchFlow(params FlowParams) Result
	EndConnection()
}
