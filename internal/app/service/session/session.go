package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/fatflowers/paywall/internal/app/service/cache"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/purchase"
	"github.com/fatflowers/paywall/internal/app/service/reconcile"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/billing"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// ErrNotInitialized guards user actions invoked before Initialize completed.
var ErrNotInitialized = errors.New("session: not initialized")

// ThemeLoader is the external theme/config collaborator loaded concurrently
// with the platform connection during Initialize. Optional; failures degrade
// to the previously loaded theme.
type ThemeLoader interface {
	Load(ctx context.Context) error
}

// ReachabilityObserver is the piece of network observation the session
// drives directly; the cache layer consumes reachability on its own.
type ReachabilityObserver interface {
	Start()
	Stop()
}

const catalogCacheKey = "catalog"

func activeCacheKey(ownerID string) string {
	return "active_subscription:" + ownerID
}

// Session is the top-level coordinator the presentation layer calls. All
// shared mutable state lives behind its single lock; platform callbacks are
// bridged back through methods that take it, so components below never need
// their own view of session state.
type Session struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	connector *billing.Connector
	cacheSvc  *cache.Service
	ledger    ledger.API
	recon     *reconcile.Service
	orch      *purchase.Orchestrator
	reach     ReachabilityObserver
	theme     ThemeLoader

	mu   sync.Mutex
	sctx *types.SessionContext
	view ViewState

	onError    func(error)
	onState    func(ViewState)
	onPurchase func(purchase.Update)
}

func New(cfg *config.Config, log *zap.SugaredLogger, connector *billing.Connector, cacheSvc *cache.Service, lg ledger.API, recon *reconcile.Service, orch *purchase.Orchestrator, reach ReachabilityObserver, theme ThemeLoader) *Session {
	s := &Session{
		cfg:       cfg,
		log:       log,
		connector: connector,
		cacheSvc:  cacheSvc,
		ledger:    lg,
		recon:     recon,
		orch:      orch,
		reach:     reach,
		theme:     theme,
	}
	connector.SetUpdateHandler(s.handlePlatformUpdate)
	orch.SetNotifier(s.handlePurchaseUpdate)
	return s
}

// SetCallbacks registers the host's observers. Any may be nil.
func (s *Session) SetCallbacks(onError func(error), onState func(ViewState), onPurchase func(purchase.Update)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onError = onError
	s.onState = onState
	s.onPurchase = onPurchase
}

// View returns a copy of the current view state.
func (s *Session) View() ViewState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// Initialize runs the once-per-session startup sequence: reachability
// observation, concurrent theme load and platform connect, ledger fetch,
// unacknowledged-purchase resolution (with refetch when it changed state),
// catalog fetch, cross-mapping, and default tab selection.
//
// A ledger dead end (no connection and nothing cached) sets the persistent
// NoConnectionAndNoCache flag and returns the error; recovery requires an
// explicit re-initialization, never a retry loop. Re-invoking with the same
// ownerID on an initialized session is a no-op.
func (s *Session) Initialize(ctx context.Context, ownerID, apiKey string, launchedViaDeepLink bool) error {
	s.mu.Lock()
	if s.view.Initialized && s.sctx != nil && s.sctx.OwnerID == ownerID {
		s.mu.Unlock()
		return nil
	}
	sctx := &types.SessionContext{
		OwnerID:             ownerID,
		APIKey:              apiKey,
		SessionID:           tool.GenerateUUIDV7(),
		LaunchedViaDeepLink: launchedViaDeepLink,
	}
	s.sctx = sctx
	s.view = ViewState{}
	s.mu.Unlock()

	ctx = logctx.WithSession(ctx, sctx.SessionID, ownerID)
	log := logctx.FromCtx(ctx, s.log)

	s.reach.Start()

	// Theme load and platform connect have no data dependency; run them
	// concurrently. A theme failure degrades, a connect failure is terminal
	// for this attempt.
	g, gctx := errgroup.WithContext(ctx)
	if s.theme != nil {
		g.Go(func() error {
			if err := s.theme.Load(gctx); err != nil {
				log.Warnw("theme load failed", "err", err)
				s.reportError(err)
			}
			return nil
		})
	}
	g.Go(func() error {
		return s.connector.Connect(gctx)
	})
	if err := g.Wait(); err != nil {
		log.Errorw("platform connect failed", "err", err)
		return s.deadEnd(err)
	}

	active, err := cache.FetchOrCached(ctx, s.cacheSvc, activeCacheKey(ownerID), func(ctx context.Context) (*models.ActiveSubscriptionInfo, error) {
		return s.ledger.ActiveSubscription(ctx, ownerID, apiKey)
	})
	if err != nil {
		log.Errorw("active subscription fetch failed", "err", err)
		return s.deadEnd(err)
	}

	if s.recon.ResolveUnacknowledged(ctx, sctx, s.reportError) {
		// Ledger state changed; the cached record is stale by definition.
		active, err = s.ledger.ActiveSubscription(ctx, ownerID, apiKey)
		if err != nil {
			log.Errorw("active subscription refetch failed", "err", err)
			return s.deadEnd(err)
		}
	}
	// OwnerUUID is the only context field mutated after construction; writes
	// stay under the session lock, platform callbacks read snapshots.
	s.mu.Lock()
	sctx.OwnerUUID = active.OwnerUUID
	s.mu.Unlock()

	catalog, err := cache.Fetch(ctx, s.cacheSvc, catalogCacheKey, active.ProductUpdateTimestamp, func(ctx context.Context) ([]*models.ProductInfo, error) {
		return s.ledger.Catalog(ctx, apiKey, 0)
	})
	if err != nil {
		log.Errorw("catalog fetch failed", "err", err)
		return s.deadEnd(err)
	}

	local := lo.Filter(catalog, func(p *models.ProductInfo, _ int) bool {
		return p.IsActive && (p.Platform == "" || p.Platform == s.cfg.Platform)
	})

	current := s.recon.CrossMapProduct(active, local)
	currentPurchase, pending := s.pickPurchases(ctx, current)
	tab := defaultTab(current, local)

	s.mu.Lock()
	s.view = ViewState{
		Initialized:      true,
		SelectedTab:      tab,
		CurrentProduct:   current,
		CurrentPurchase:  currentPurchase,
		PendingPurchase:  pending,
		BaseServiceLevel: active.BaseServiceLevel,
		Catalog:          local,
		VisibleProducts:  filterByTab(local, tab),
	}
	s.mu.Unlock()

	log.Infow("session initialized",
		"products", len(local),
		"tab", tab,
		"has_current_product", current != nil,
	)
	s.emitState()
	return nil
}

// Purchase launches the purchase or upgrade flow for product. Initiation
// errors go to onError; completion arrives through the purchase observer.
func (s *Session) Purchase(ctx context.Context, product *models.ProductInfo, onError func(error)) {
	s.mu.Lock()
	sctx := s.snapshotCtxLocked()
	initialized := s.view.Initialized
	current := s.view.CurrentPurchase
	s.mu.Unlock()

	if !initialized || sctx == nil {
		if onError != nil {
			onError(ErrNotInitialized)
		}
		return
	}
	ctx = logctx.WithSession(ctx, sctx.SessionID, sctx.OwnerID)
	s.orch.Purchase(ctx, sctx, product, current, onError)
}

// SelectPeriodTab filters the visible products to the chosen period.
func (s *Session) SelectPeriodTab(tab types.PeriodTab) {
	s.mu.Lock()
	s.view.SelectedTab = tab
	s.view.VisibleProducts = filterByTab(s.view.Catalog, tab)
	s.mu.Unlock()
	s.emitState()
}

// ClearState resets the session so it can be re-initialized, keeping the
// persistent cache (it is still valid for its timestamps).
func (s *Session) ClearState() {
	s.mu.Lock()
	s.sctx = nil
	s.view = ViewState{}
	s.mu.Unlock()
	s.emitState()
}

// Close tears the session down: reachability observation stops and the
// platform connection is released. In-flight purchase flows are not
// cancellable; the platform owns that UI.
func (s *Session) Close() {
	s.reach.Stop()
	s.connector.Close()
}

// handlePlatformUpdate bridges the out-of-band purchase callback into the
// session's control flow before handing it to the orchestrator.
func (s *Session) handlePlatformUpdate(res billing.Result, records []models.PurchaseRecord) {
	s.mu.Lock()
	sctx := s.snapshotCtxLocked()
	s.mu.Unlock()
	if sctx == nil {
		s.log.Warnw("purchase update before initialization dropped", "code", res.Code)
		return
	}
	ctx := logctx.WithSession(context.Background(), sctx.SessionID, sctx.OwnerID)

	if pending := findPending(records); pending != nil {
		s.mu.Lock()
		s.view.PendingPurchase = pending
		s.mu.Unlock()
		s.emitState()
	}

	s.orch.HandlePlatformUpdate(ctx, sctx, res, records, s.reportError)
}

// handlePurchaseUpdate reacts to attempt transitions: a ledger-accepted
// purchase re-syncs entitlement state before the host is notified.
func (s *Session) handlePurchaseUpdate(u purchase.Update) {
	if u.Stage == purchase.StageUpdated {
		s.refreshAfterChange()
	}
	s.mu.Lock()
	fn := s.onPurchase
	s.mu.Unlock()
	if fn != nil {
		fn(u)
	}
}

// refreshAfterChange refetches ledger and catalog state after a
// state-changing event. Failures degrade to last known state.
func (s *Session) refreshAfterChange() {
	s.mu.Lock()
	sctx := s.snapshotCtxLocked()
	s.mu.Unlock()
	if sctx == nil {
		return
	}
	ctx := logctx.WithSession(context.Background(), sctx.SessionID, sctx.OwnerID)
	log := logctx.FromCtx(ctx, s.log)

	active, err := s.ledger.ActiveSubscription(ctx, sctx.OwnerID, sctx.APIKey)
	if err != nil {
		log.Warnw("post-purchase ledger refresh failed, keeping last known state", "err", err)
		s.reportError(err)
		return
	}
	s.mu.Lock()
	if s.sctx != nil && s.sctx.OwnerID == sctx.OwnerID {
		s.sctx.OwnerUUID = active.OwnerUUID
	}
	s.mu.Unlock()

	catalog, err := cache.Fetch(ctx, s.cacheSvc, catalogCacheKey, active.ProductUpdateTimestamp, func(ctx context.Context) ([]*models.ProductInfo, error) {
		return s.ledger.Catalog(ctx, sctx.APIKey, 0)
	})
	if err != nil {
		log.Warnw("post-purchase catalog refresh failed, keeping last known state", "err", err)
		s.reportError(err)
		return
	}
	local := lo.Filter(catalog, func(p *models.ProductInfo, _ int) bool {
		return p.IsActive && (p.Platform == "" || p.Platform == s.cfg.Platform)
	})

	current := s.recon.CrossMapProduct(active, local)
	currentPurchase, pending := s.pickPurchases(ctx, current)

	s.mu.Lock()
	s.view.Catalog = local
	s.view.CurrentProduct = current
	s.view.CurrentPurchase = currentPurchase
	s.view.PendingPurchase = pending
	s.view.BaseServiceLevel = active.BaseServiceLevel
	s.view.VisibleProducts = filterByTab(local, s.view.SelectedTab)
	s.mu.Unlock()
	s.emitState()
}

// pickPurchases re-queries platform purchases and selects the record backing
// the current product plus any pending one. Query failure is passive: logged
// and treated as no records.
func (s *Session) pickPurchases(ctx context.Context, current *models.ProductInfo) (*models.PurchaseRecord, *models.PurchaseRecord) {
	records, err := s.connector.QueryPurchases(ctx)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("purchase query failed, proceeding without records", "err", err)
		return nil, nil
	}
	var owned *models.PurchaseRecord
	if current != nil {
		for i := range records {
			if records[i].State == types.PurchaseStatePurchased && records[i].Contains(current.ProductID) {
				owned = &records[i]
				break
			}
		}
	}
	return owned, findPending(records)
}

func findPending(records []models.PurchaseRecord) *models.PurchaseRecord {
	for i := range records {
		if records[i].State == types.PurchaseStatePending {
			return &records[i]
		}
	}
	return nil
}

// snapshotCtxLocked copies the session context for use off the session lock.
// Callers must hold s.mu. Components get the copy; the canonical context is
// only ever mutated under the lock.
func (s *Session) snapshotCtxLocked() *types.SessionContext {
	if s.sctx == nil {
		return nil
	}
	cp := *s.sctx
	return &cp
}

func (s *Session) deadEnd(cause error) error {
	s.mu.Lock()
	s.view.NoConnectionAndNoCache = true
	s.view.Initialized = false
	s.mu.Unlock()
	s.emitState()
	return fmt.Errorf("session initialization dead end: %w", cause)
}

func (s *Session) reportError(err error) {
	if err == nil {
		return
	}
	s.mu.Lock()
	fn := s.onError
	s.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

func (s *Session) emitState() {
	s.mu.Lock()
	fn := s.onState
	view := s.view
	s.mu.Unlock()
	if fn != nil {
		fn(view)
	}
}
