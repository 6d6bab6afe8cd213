package googleplay

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/awa/go-iap/playstore"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/fatflowers/paywall/internal/app/service/reconcile"
	"github.com/fatflowers/paywall/pkg/config"
)

// Verifier checks purchase tokens against Google Play before they are
// submitted to the ledger. It is optional; without credentials the engine
// submits unverified and relies on the ledger's own verification.
type Verifier struct {
	client      *playstore.Client
	packageName string
	log         *zap.SugaredLogger
}

func NewVerifier(cfg *config.Config, log *zap.SugaredLogger) (reconcile.TokenVerifier, error) {
	if !cfg.PlayVerifier.Enabled {
		return nil, nil
	}
	if cfg.PlayVerifier.PackageName == "" {
		return nil, fmt.Errorf("play verifier enabled but package_name is empty")
	}
	key, err := base64.StdEncoding.DecodeString(cfg.PlayVerifier.CredentialsB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode play credentials: %w", err)
	}
	cli, err := playstore.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to init play client: %w", err)
	}
	return &Verifier{client: cli, packageName: cfg.PlayVerifier.PackageName, log: log}, nil
}

// VerifyPurchaseToken confirms the token names a real, paid-for subscription.
func (v *Verifier) VerifyPurchaseToken(ctx context.Context, productID, token string) error {
	sub, err := v.client.VerifySubscription(ctx, v.packageName, productID, token)
	if err != nil {
		return fmt.Errorf("play verification failed for %s: %w", productID, err)
	}
	if sub == nil {
		return fmt.Errorf("play returned no subscription for %s", productID)
	}
	// 0 = pending, 1 = received, 2 = free trial, 3 = deferred
	if sub.PaymentState != nil && *sub.PaymentState == 0 {
		return fmt.Errorf("payment still pending for %s", productID)
	}
	return nil
}

var Module = fx.Options(
	fx.Provide(NewVerifier),
)
