package billing

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/types"
)

type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateConnected
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	}
	return "disconnected"
}

// Connector owns the connection lifecycle to the purchase platform and
// translates its push callbacks into awaitable calls. State machine:
// DISCONNECTED -> CONNECTING -> CONNECTED, back to DISCONNECTED on a
// service-lost callback. There is no automatic reconnect; the caller
// re-invokes Connect.
type Connector struct {
	client Client
	cfg    *config.Config
	log    *zap.SugaredLogger
	rec    *metrics.Recorder

	mu       sync.Mutex
	state    ConnState
	pending  *oneshot[error]
	onUpdate func(res Result, records []models.PurchaseRecord)
}

func NewConnector(client Client, cfg *config.Config, log *zap.SugaredLogger, rec *metrics.Recorder) *Connector {
	c := &Connector{client: client, cfg: cfg, log: log, rec: rec}
	return c
}

// SetUpdateHandler registers the receiver for out-of-band purchase updates.
// Must be set before Connect; updates arriving with no handler are dropped
// with a warning.
func (c *Connector) SetUpdateHandler(fn func(res Result, records []models.PurchaseRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUpdate = fn
}

func (c *Connector) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect establishes the platform connection. It completes exactly once per
// call and returns immediately when already connected. A concurrent call
// during CONNECTING awaits the same in-flight attempt.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateConnected:
		c.mu.Unlock()
		return nil
	case StateConnecting:
		pending := c.pending
		c.mu.Unlock()
		res, err := pending.await(ctx)
		if err != nil {
			return err
		}
		return res
	}
	c.state = StateConnecting
	pending := newOneshot[error]()
	c.pending = pending
	c.mu.Unlock()

	if t := c.cfg.Billing.ConnectTimeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}

	c.client.StartConnection(c)

	res, err := pending.await(ctx)
	if err != nil {
		// The attempt may still resolve later; the state callbacks will
		// settle it. This call is done.
		return err
	}
	return res
}

// OnSetupFinished implements Listener. Called by the platform on its own
// execution context.
func (c *Connector) OnSetupFinished(res Result) {
	c.mu.Lock()
	pending := c.pending
	if res.OK() {
		c.state = StateConnected
	} else {
		c.state = StateDisconnected
	}
	c.pending = nil
	c.mu.Unlock()

	c.rec.PlatformConnected.Set(boolToGauge(res.OK()))
	if pending == nil {
		c.log.Warnw("billing setup callback with no pending connect", "code", res.Code)
		return
	}
	if !pending.resolve(res.Err()) {
		c.log.Warnw("billing setup callback after connect already resolved", "code", res.Code)
	}
}

// OnServiceDisconnected implements Listener. A disconnect during CONNECTING
// fails the initiating call; duplicates past the first resolution are
// ignored.
func (c *Connector) OnServiceDisconnected() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.state = StateDisconnected
	c.mu.Unlock()

	c.rec.PlatformConnected.Set(0)
	if pending != nil {
		if !pending.resolve(&PlatformError{Code: types.ResponseError, Message: "service disconnected during setup"}) {
			c.log.Warnw("duplicate service-disconnected callback ignored")
		}
		return
	}
	c.log.Infow("purchase platform service disconnected")
}

// OnPurchasesUpdated implements Listener, forwarding out-of-band purchase
// results to the registered handler.
func (c *Connector) OnPurchasesUpdated(res Result, records []models.PurchaseRecord) {
	c.mu.Lock()
	fn := c.onUpdate
	c.mu.Unlock()
	if fn == nil {
		c.log.Warnw("purchase update dropped, no handler registered", "code", res.Code)
		return
	}
	fn(res, records)
}

// QueryPurchases returns the platform's current purchase records. Fails with
// ErrNotConnected while disconnected; this is a local precondition check.
func (c *Connector) QueryPurchases(ctx context.Context) ([]models.PurchaseRecord, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}
	type reply struct {
		res     Result
		records []models.PurchaseRecord
	}
	o := newOneshot[reply]()
	c.client.QueryPurchases(c.cfg.Billing.ProductType, func(res Result, records []models.PurchaseRecord) {
		if !o.resolve(reply{res: res, records: records}) {
			c.log.Warnw("duplicate query-purchases callback ignored", "code", res.Code)
		}
	})
	r, err := o.await(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.res.Err(); err != nil {
		return nil, err
	}
	return r.records, nil
}

// QueryCatalog returns the platform catalog entries for productIDs. Fails
// with ErrNotConnected while disconnected.
func (c *Connector) QueryCatalog(ctx context.Context, productIDs []string) ([]models.PlatformCatalogEntry, error) {
	if c.State() != StateConnected {
		return nil, ErrNotConnected
	}
	type reply struct {
		res     Result
		entries []models.PlatformCatalogEntry
	}
	o := newOneshot[reply]()
	c.client.QueryCatalog(productIDs, func(res Result, entries []models.PlatformCatalogEntry) {
		if !o.resolve(reply{res: res, entries: entries}) {
			c.log.Warnw("duplicate query-catalog callback ignored", "code", res.Code)
		}
	})
	r, err := o.await(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.res.Err(); err != nil {
		return nil, err
	}
	return r.entries, nil
}

// LaunchFlow starts the platform purchase UI. Only the launch result is
// returned; purchase completion arrives through OnPurchasesUpdated.
func (c *Connector) LaunchFlow(params FlowParams) error {
	if c.State() != StateConnected {
		return ErrNotConnected
	}
	return c.client.LaunchFlow(params).Err()
}

// Close releases the platform connection.
func (c *Connector) Close() {
	c.mu.Lock()
	c.state = StateDisconnected
	c.pending = nil
	c.mu.Unlock()
	c.rec.PlatformConnected.Set(0)
	c.client.EndConnection()
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

var Module = fx.Options(
	fx.Provide(NewConnector),
)
