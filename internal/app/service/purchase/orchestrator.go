package purchase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/app/service/reconcile"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/billing"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/types"
)

// ErrNoOfferAvailable reports a platform catalog entry with zero
// subscription offers; the flow cannot be built from it.
var ErrNoOfferAvailable = errors.New("purchase: no offer available for product")

// Orchestrator drives the purchase/upgrade decision and flow construction.
// Purchase initiation failures are always surfaced through the caller's
// onError and never crash the caller; completion arrives out-of-band through
// HandlePlatformUpdate.
type Orchestrator struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	connector *billing.Connector
	recon     *reconcile.Service
	rec       *metrics.Recorder

	mu      sync.Mutex
	notify  func(Update)
	current *attempt
	product *models.ProductInfo
}

func NewOrchestrator(cfg *config.Config, log *zap.SugaredLogger, connector *billing.Connector, recon *reconcile.Service, rec *metrics.Recorder) *Orchestrator {
	return &Orchestrator{cfg: cfg, log: log, connector: connector, recon: recon, rec: rec}
}

// SetNotifier registers the receiver of purchase-attempt transitions.
func (o *Orchestrator) SetNotifier(fn func(Update)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notify = fn
}

// Purchase resolves the platform offer for product and launches the purchase
// flow. When current is non-nil the flow is an upgrade/replace carrying the
// old purchase token with a charge-full-price policy; otherwise it is a new
// subscription. Both forms attach the ledger-assigned owner UUID as the
// obfuscated account/profile identifiers.
//
// The call only initiates: success/failure of the purchase itself is
// delivered via HandlePlatformUpdate.
func (o *Orchestrator) Purchase(ctx context.Context, sctx *types.SessionContext, product *models.ProductInfo, current *models.PurchaseRecord, onError func(error)) {
	defer func() {
		if r := recover(); r != nil {
			logctx.FromCtx(ctx, o.log).Errorw("purchase initiation panicked", "recover", r)
			report(onError, fmt.Errorf("purchase initiation failed: %v", r))
		}
	}()

	entries, err := o.connector.QueryCatalog(ctx, []string{product.ProductID})
	if err != nil {
		report(onError, err)
		return
	}
	entry, ok := lo.Find(entries, func(e models.PlatformCatalogEntry) bool {
		return e.ProductID == product.ProductID
	})
	if !ok || len(entry.Offers) == 0 {
		report(onError, fmt.Errorf("%w: %s", ErrNoOfferAvailable, product.ProductID))
		return
	}

	offer := selectOffer(entry.Offers, o.cfg.Billing.OfferFromEnd)

	params := billing.FlowParams{
		ProductID:           product.ProductID,
		OfferToken:          offer.OfferToken,
		ObfuscatedAccountID: sctx.OwnerUUID,
		ObfuscatedProfileID: sctx.OwnerUUID,
	}
	if current != nil {
		params.OldPurchaseToken = current.PurchaseToken
		params.ReplacementMode = billing.ReplacementChargeFullPrice
	}

	o.mu.Lock()
	o.product = product
	o.current = nil
	o.mu.Unlock()

	if err := o.connector.LaunchFlow(params); err != nil {
		report(onError, err)
	}
}

// selectOffer picks the offer token to use. A single offer is taken as-is;
// with multiple offers, fromEnd counts back from the platform-reported tail
// (the deployment convention parks a default/legacy offer last, so the
// default fromEnd of 1 selects the penultimate entry).
func selectOffer(offers []models.SubscriptionOffer, fromEnd int) models.SubscriptionOffer {
	if len(offers) == 1 {
		return offers[0]
	}
	idx := len(offers) - 1 - fromEnd
	if idx < 0 {
		idx = 0
	}
	return offers[idx]
}

// HandlePlatformUpdate processes one out-of-band purchase callback. Started
// fires synchronously with callback receipt; a non-success result stops the
// attempt without a ledger call; a success result drives a ledger round-trip
// whose outcome decides Updated vs Failed. A success callback carrying only
// PENDING records leaves the attempt open until the platform reports again;
// a callback arriving after the attempt settled starts a new one.
func (o *Orchestrator) HandlePlatformUpdate(ctx context.Context, sctx *types.SessionContext, res billing.Result, records []models.PurchaseRecord, onError func(error)) {
	o.mu.Lock()
	a := o.current
	// The machine is per attempt: a callback arriving after the previous
	// attempt settled opens a fresh one, so its outcome still emits and the
	// session re-syncs.
	if a == nil || a.terminal() {
		a = newAttempt()
		o.current = a
	}
	product := o.product
	o.mu.Unlock()

	o.emit(Update{Stage: StageStarted, Product: product})

	if !res.OK() {
		if a.transition(StageStopped) {
			o.rec.PurchaseOutcomes.WithLabelValues(string(StageStopped)).Inc()
			o.emit(Update{Stage: StageStopped, Product: product, Err: res.Err()})
		} else {
			o.log.Warnw("late platform callback after terminal stage dropped", "code", res.Code)
		}
		return
	}

	rec := o.recon.FindUnacknowledged(records)
	if rec == nil {
		// Nothing settled to acknowledge; PENDING records stay open and a
		// later callback resolves them.
		return
	}

	accepted, err := o.recon.Submit(ctx, sctx, rec)
	if accepted {
		if a.transition(StageUpdated) {
			o.rec.PurchaseOutcomes.WithLabelValues(string(StageUpdated)).Inc()
			o.emit(Update{Stage: StageUpdated, Product: product, Record: rec})
		}
		return
	}
	if a.transition(StageFailed) {
		o.rec.PurchaseOutcomes.WithLabelValues(string(StageFailed)).Inc()
		o.emit(Update{Stage: StageFailed, Product: product, Record: rec, Err: err})
	}
	report(onError, err)
}

func (o *Orchestrator) emit(u Update) {
	o.mu.Lock()
	fn := o.notify
	o.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

func report(onError func(error), err error) {
	if onError != nil && err != nil {
		onError(err)
	}
}
