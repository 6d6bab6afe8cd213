package purchase

import (
	"sync"

	"github.com/fatflowers/paywall/internal/models"
)

// Stage is the per-attempt purchase state machine:
// Started -> {Updated | Failed | Stopped}, terminal on any of the three.
//
//   - Started: the platform reported back for a launched flow
//   - Updated: platform success and the ledger accepted the purchase
//   - Failed:  platform success but the ledger rejected or could not process
//   - Stopped: the platform reported non-success (e.g. user cancellation)
//
// Updated and Failed are mutually exclusive and only reachable after a
// ledger round-trip; Stopped needs no ledger call.
type Stage string

const (
	StageStarted Stage = "started"
	StageUpdated Stage = "updated"
	StageFailed  Stage = "failed"
	StageStopped Stage = "stopped"
)

func (s Stage) Terminal() bool {
	return s == StageUpdated || s == StageFailed || s == StageStopped
}

// Update is one observable transition of a purchase attempt.
type Update struct {
	Stage   Stage
	Product *models.ProductInfo
	Record  *models.PurchaseRecord
	Err     error
}

// attempt enforces single-terminality per purchase attempt. Transitions past
// the first terminal stage are dropped.
type attempt struct {
	mu    sync.Mutex
	stage Stage
}

func newAttempt() *attempt {
	return &attempt{stage: StageStarted}
}

func (a *attempt) transition(to Stage) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stage.Terminal() {
		return false
	}
	a.stage = to
	return true
}

func (a *attempt) terminal() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stage.Terminal()
}
