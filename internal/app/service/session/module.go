package session

import (
	"go.uber.org/fx"

	"github.com/fatflowers/paywall/internal/platform/reachability"
)

// Module exposes the session via Fx. Hosts with a real theme collaborator
// decorate the ThemeLoader; the default is none.
var Module = fx.Options(
	fx.Provide(func() ThemeLoader { return nil }),
	fx.Provide(func(o *reachability.Observer) ReachabilityObserver { return o }),
	fx.Provide(New),
)
