package reachability

import (
	"context"
	"net"
	"sync"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/pkg/config"
)

// DialFunc matches net.Dialer.DialContext; injectable for tests.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Observer tracks network reachability with a periodic dial probe. It is
// independent of the purchase-platform connection: the platform service can
// be bound while the network is down and vice versa.
type Observer struct {
	log       *zap.SugaredLogger
	probeAddr string
	interval  time.Duration
	dial      DialFunc

	mu     sync.Mutex
	online bool
	probed bool
	subs   []func(online bool)
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg *config.Config, log *zap.SugaredLogger) *Observer {
	d := &net.Dialer{Timeout: 3 * time.Second}
	return &Observer{
		log:       log,
		probeAddr: cfg.Reachability.ProbeAddr,
		interval:  cfg.Reachability.Interval,
		dial:      d.DialContext,
	}
}

// Start begins probing. Calling Start on a running observer is a no-op.
func (o *Observer) Start() {
	o.mu.Lock()
	if o.cancel != nil {
		o.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel
	o.done = make(chan struct{})
	o.mu.Unlock()

	go o.loop(ctx)
}

// Stop halts probing and waits for the loop to exit.
func (o *Observer) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	done := o.done
	o.cancel = nil
	o.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Online reports the last observed reachability. Before the first probe
// completes it optimistically reports true so a cold start prefers network.
func (o *Observer) Online() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.probed {
		return true
	}
	return o.online
}

// Subscribe registers a callback invoked on every reachability transition.
func (o *Observer) Subscribe(fn func(online bool)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.subs = append(o.subs, fn)
}

func (o *Observer) loop(ctx context.Context) {
	defer close(o.done)
	t := time.NewTicker(o.interval)
	defer t.Stop()

	o.probe(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.probe(ctx)
		}
	}
}

func (o *Observer) probe(ctx context.Context) {
	conn, err := o.dial(ctx, "tcp", o.probeAddr)
	online := err == nil
	if conn != nil {
		_ = conn.Close()
	}

	o.mu.Lock()
	changed := !o.probed || o.online != online
	o.probed = true
	o.online = online
	subs := make([]func(bool), len(o.subs))
	copy(subs, o.subs)
	o.mu.Unlock()

	if !changed {
		return
	}
	o.log.Infow("network reachability changed", "online", online)
	for _, fn := range subs {
		fn(online)
	}
}

var Module = fx.Options(
	fx.Provide(New),
)
