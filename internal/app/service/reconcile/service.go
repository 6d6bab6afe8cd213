package reconcile

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/fatflowers/paywall/internal/app/service/ledger"
	"github.com/fatflowers/paywall/internal/models"
	"github.com/fatflowers/paywall/internal/platform/billing"
	"github.com/fatflowers/paywall/pkg/config"
	"github.com/fatflowers/paywall/pkg/logctx"
	"github.com/fatflowers/paywall/pkg/metrics"
	"github.com/fatflowers/paywall/pkg/tool"
	"github.com/fatflowers/paywall/pkg/types"
)

// TokenVerifier optionally checks a purchase token with the platform's
// server-side API before ledger submission. A nil verifier skips the check.
type TokenVerifier interface {
	VerifyPurchaseToken(ctx context.Context, productID, token string) error
}

// Service makes platform purchase state and backend ledger state agree.
type Service struct {
	cfg       *config.Config
	log       *zap.SugaredLogger
	connector *billing.Connector
	ledger    ledger.API
	verifier  TokenVerifier
	db        *gorm.DB
	rec       *metrics.Recorder
}

func NewService(cfg *config.Config, log *zap.SugaredLogger, connector *billing.Connector, lg ledger.API, verifier TokenVerifier, db *gorm.DB, rec *metrics.Recorder) *Service {
	return &Service{cfg: cfg, log: log, connector: connector, ledger: lg, verifier: verifier, db: db, rec: rec}
}

// FindUnacknowledged selects the first record still owed a ledger round-trip:
// acknowledgement flag false and state PURCHASED or UNSPECIFIED. No sorting;
// platform-reported order decides ties.
func (s *Service) FindUnacknowledged(records []models.PurchaseRecord) *models.PurchaseRecord {
	for i := range records {
		if records[i].NeedsAcknowledgement() {
			return &records[i]
		}
	}
	return nil
}

// ResolveUnacknowledged queries the platform for purchases and submits the
// first unacknowledged one to the ledger. It returns true only when the
// ledger accepted a submission, meaning entitlement state may have changed
// and the caller should refetch it.
//
// Failures never escape: a platform query failure is reported via onError and
// treated as "no purchases found" for this pass; a ledger rejection is
// reported via onError and leaves the purchase unacknowledged for the next
// natural trigger (at-least-once, the ledger is idempotent on token).
func (s *Service) ResolveUnacknowledged(ctx context.Context, sctx *types.SessionContext, onError func(error)) bool {
	records, err := s.connector.QueryPurchases(ctx)
	if err != nil {
		logctx.FromCtx(ctx, s.log).Warnw("purchase query failed, skipping reconciliation pass", "err", err)
		report(onError, err)
		s.rec.ReconcilePasses.WithLabelValues("false").Inc()
		return false
	}

	rec := s.FindUnacknowledged(records)
	if rec == nil {
		s.rec.ReconcilePasses.WithLabelValues("false").Inc()
		return false
	}
	s.rec.ReconcilePasses.WithLabelValues("true").Inc()

	accepted, err := s.Submit(ctx, sctx, rec)
	if err != nil {
		report(onError, err)
		return false
	}
	return accepted
}

// Submit pushes one purchase record to the ledger. Returns (true, nil) when
// the ledger accepted it, (false, err) on verification failure, rejection, or
// transport error.
func (s *Service) Submit(ctx context.Context, sctx *types.SessionContext, rec *models.PurchaseRecord) (bool, error) {
	productID := rec.PrimaryProductID()
	if productID == "" {
		return false, fmt.Errorf("purchase record has no product id")
	}

	if s.verifier != nil {
		if err := s.verifier.VerifyPurchaseToken(ctx, productID, rec.PurchaseToken); err != nil {
			s.audit(ctx, sctx, rec, models.ReconcileOutcomeVerifyFailed, err.Error())
			s.rec.LedgerSubmissions.WithLabelValues("verify_failed").Inc()
			return false, err
		}
	}

	res, err := s.ledger.HandlePurchase(ctx, sctx.APIKey, &ledger.HandlePurchaseRequest{
		ProductID:     productID,
		PurchaseToken: rec.PurchaseToken,
		PurchaseTime:  rec.PurchaseTime,
		OwnerID:       sctx.OwnerID,
	})
	if err != nil {
		s.audit(ctx, sctx, rec, models.ReconcileOutcomeError, err.Error())
		s.rec.LedgerSubmissions.WithLabelValues("error").Inc()
		return false, err
	}
	if !res.Accepted {
		s.audit(ctx, sctx, rec, models.ReconcileOutcomeRejected, "")
		s.rec.LedgerSubmissions.WithLabelValues("rejected").Inc()
		return false, &ledger.Error{Message: fmt.Sprintf("ledger rejected purchase of %s", productID)}
	}

	s.audit(ctx, sctx, rec, models.ReconcileOutcomeAccepted, "")
	s.rec.LedgerSubmissions.WithLabelValues("accepted").Inc()
	logctx.FromCtx(ctx, s.log).Infow("purchase reconciled with ledger", "product_id", productID)
	return true, nil
}

// CrossMapProduct identifies the active product against the local catalog.
// Same-platform records match by product id; a platform-foreign record (e.g.
// the active purchase was made on iOS) matches by (recurringPeriodCode,
// serviceLevel) instead. Nil means no local product corresponds and the UI
// must treat the state as "no active plan" even though the ledger has one.
func (s *Service) CrossMapProduct(active *models.ActiveSubscriptionInfo, catalog []*models.ProductInfo) *models.ProductInfo {
	if active == nil || active.Product == nil {
		return nil
	}
	if !active.ForeignTo(s.cfg.Platform) {
		p, ok := lo.Find(catalog, func(p *models.ProductInfo) bool {
			return p.ProductID == active.Product.ProductID
		})
		if !ok {
			return nil
		}
		return p
	}
	p, ok := lo.Find(catalog, func(p *models.ProductInfo) bool {
		return p.SameEntitlement(active.Product)
	})
	if !ok {
		return nil
	}
	return p
}

// audit records the submission attempt; write failures are logged, never
// propagated.
func (s *Service) audit(ctx context.Context, sctx *types.SessionContext, rec *models.PurchaseRecord, outcome models.ReconcileOutcome, detail string) {
	entry := &models.ReconcileLog{
		ID:            tool.GenerateUUIDV7(),
		OwnerID:       sctx.OwnerID,
		ProductID:     rec.PrimaryProductID(),
		PurchaseToken: rec.PurchaseToken,
		Outcome:       outcome,
	}
	if detail != "" {
		if b, err := json.Marshal(map[string]string{"detail": detail}); err == nil {
			entry.Detail = datatypes.JSON(b)
		}
	}
	go func() {
		if err := s.db.Save(entry).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save reconcile log: %v", err)
		}
	}()
}

func report(onError func(error), err error) {
	if onError != nil && err != nil {
		onError(err)
	}
}
