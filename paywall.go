// Package paywall is an embedded subscription-purchase engine. It keeps the
// device's purchase platform, the backend subscription ledger, and a local
// cache consistent, and drives new/upgrade purchase flows.
//
// The host supplies the purchase-platform capability (billing.Client is the
// boundary) and renders from the session's view state; the engine owns
// connection lifecycle, reconciliation, and purchase orchestration.
package paywall

import (
	"context"

	"go.uber.org/fx"

	"github.com/fatflowers/paywall/internal/app"
	"github.com/fatflowers/paywall/internal/app/service/session"
	"github.com/fatflowers/paywall/internal/platform/billing"
)

// Engine wraps the assembled dependency graph for embedding.
type Engine struct {
	fxApp   *fx.App
	session *session.Session
}

// New assembles an engine around the host-provided platform client. Extra fx
// options (a session.ThemeLoader decoration, config overrides) may be passed
// through opts.
func New(client billing.Client, opts ...fx.Option) (*Engine, error) {
	e := &Engine{}
	all := append([]fx.Option{
		app.Module,
		fx.Provide(func() billing.Client { return client }),
		fx.Populate(&e.session),
		fx.NopLogger,
	}, opts...)
	e.fxApp = fx.New(all...)
	if err := e.fxApp.Err(); err != nil {
		return nil, err
	}
	return e, nil
}

// Start runs the graph's lifecycle hooks (cache store open/migrate).
func (e *Engine) Start(ctx context.Context) error {
	startCtx, cancel := context.WithTimeout(ctx, app.DefaultStartTimeout)
	defer cancel()
	return e.fxApp.Start(startCtx)
}

// Stop tears the session down and releases platform resources.
func (e *Engine) Stop(ctx context.Context) error {
	e.session.Close()
	stopCtx, cancel := context.WithTimeout(ctx, app.DefaultStopTimeout)
	defer cancel()
	return e.fxApp.Stop(stopCtx)
}

// Session returns the caller-facing session coordinator.
func (e *Engine) Session() *session.Session {
	return e.session
}
