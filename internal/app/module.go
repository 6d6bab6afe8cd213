package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/fatflowers/paywall/internal/app/service/cache"
	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/app/service/purchase"
	"github.com/fatflowers/paywall/internal/app/service/reconcile"
	"github.com/fatflowers/paywall/internal/app/service/session"
	"github.com/fatflowers/paywall/internal/platform/billing"
	"github.com/fatflowers/paywall/internal/platform/googleplay"
	"github.com/fatflowers/paywall/internal/platform/reachability"
	"github.com/fatflowers/paywall/internal/platform/store"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logger"
	"github.com/fatflowers/paywall/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Module aggregates the engine's dependency graph. The billing.Client
// capability is supplied by the embedding host.
var Module = fx.Options(
	config.Module,
	logger.Module,
	metrics.Module,
	store.Module,
	reachability.Module,
	billing.Module,
	googleplay.Module,
	cache.Module,
	ledger.Module,
	reconcile.Module,
	purchase.Module,
	session.Module,
)
