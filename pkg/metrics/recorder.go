package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

const subsystem = "paywall"

var reconcilePasses = &Metric{
	ID:          "reconPasses",
	Name:        "reconcile_passes_total",
	Description: "Reconciliation passes run, partitioned by whether an unacknowledged purchase was found.",
	Type:        "counter_vec",
	Args:        []string{"found"},
}

var ledgerSubmissions = &Metric{
	ID:          "ledgerSubs",
	Name:        "ledger_submissions_total",
	Description: "Purchase-token submissions to the ledger, partitioned by outcome.",
	Type:        "counter_vec",
	Args:        []string{"outcome"},
}

var purchaseOutcomes = &Metric{
	ID:          "purchaseOutcomes",
	Name:        "purchase_attempts_total",
	Description: "Purchase attempts reaching a terminal stage, partitioned by stage.",
	Type:        "counter_vec",
	Args:        []string{"stage"},
}

var cacheLookups = &Metric{
	ID:          "cacheLookups",
	Name:        "cache_lookups_total",
	Description: "Catalog cache lookups, partitioned by result (hit/miss/stale/error).",
	Type:        "counter_vec",
	Args:        []string{"result"},
}

var connectionState = &Metric{
	ID:          "connState",
	Name:        "platform_connected",
	Description: "Whether the purchase platform connection is currently established.",
	Type:        "gauge",
}

// Recorder owns the engine's collectors on a private registry so an embedding
// host can expose them without clashing with its own default registry.
type Recorder struct {
	registry *prometheus.Registry

	ReconcilePasses   *prometheus.CounterVec
	LedgerSubmissions *prometheus.CounterVec
	PurchaseOutcomes  *prometheus.CounterVec
	CacheLookups      *prometheus.CounterVec
	PlatformConnected prometheus.Gauge
}

func NewRecorder() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}
	for _, m := range []*Metric{reconcilePasses, ledgerSubmissions, purchaseOutcomes, cacheLookups, connectionState} {
		m.MetricCollector = NewMetric(m, subsystem)
		r.registry.MustRegister(m.MetricCollector)
	}
	r.ReconcilePasses = reconcilePasses.MetricCollector.(*prometheus.CounterVec)
	r.LedgerSubmissions = ledgerSubmissions.MetricCollector.(*prometheus.CounterVec)
	r.PurchaseOutcomes = purchaseOutcomes.MetricCollector.(*prometheus.CounterVec)
	r.CacheLookups = cacheLookups.MetricCollector.(*prometheus.CounterVec)
	r.PlatformConnected = connectionState.MetricCollector.(prometheus.Gauge)
	return r
}

// Registry exposes the engine's collectors for the host to scrape or push.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

var Module = fx.Options(
	fx.Provide(NewRecorder),
)
