// Package metrics exposes Prometheus collectors for tagging runs. They are
// registered on the default registry and served by the HTTP server.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tagarr"

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Tagging runs by mode and result",
	}, []string{"mode", "result"}) // mode=batch|item, result=success|failure|dry_run

	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of tagging runs in seconds",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800, 3600},
	}, []string{"mode"})

	itemsProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_processed_total",
		Help:      "Items classified and reconciled",
	})

	labelEdits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "label_edits_total",
		Help:      "Item label edits applied per registry and operation",
	}, []string{"registry", "op"})

	labelEditFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "label_edit_failures_total",
		Help:      "Failed label create or edit calls per registry",
	}, []string{"registry"})

	labelsDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "labels_deleted_total",
		Help:      "Empty managed labels deleted by the sweeper",
	}, []string{"registry"})

	outcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconcile_outcomes_total",
		Help:      "Informational reconciliation outcomes",
	}, []string{"kind"})

	analyzerResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analyzer_results_total",
		Help:      "Dolby Vision analyzer invocations by outcome",
	}, []string{"outcome"}) // outcome=confirmed|failed

	discovered = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "discovered_groups_total",
		Help:      "New release groups discovered",
	})

	lastRunTimestamp = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last batch run finished",
	})

	webhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_events_total",
		Help:      "Registry webhook events received by event type and handling",
	}, []string{"event", "handling"}) // handling=processed|ignored|coalesced|failed
)

func RecordRun(mode, result string, d time.Duration) {
	runsTotal.WithLabelValues(mode, result).Inc()
	runDuration.WithLabelValues(mode).Observe(d.Seconds())
	if mode == "batch" {
		lastRunTimestamp.SetToCurrentTime()
	}
}

func AddItems(n int) { itemsProcessed.Add(float64(n)) }

func AddLabelEdits(registry, op string, items int) {
	labelEdits.WithLabelValues(registry, op).Add(float64(items))
}

func IncLabelEditFailure(registry string) { labelEditFailures.WithLabelValues(registry).Inc() }
func IncLabelDeleted(registry string)     { labelsDeleted.WithLabelValues(registry).Inc() }
func IncOutcome(kind string)              { outcomes.WithLabelValues(kind).Inc() }
func IncAnalyzer(outcome string)          { analyzerResults.WithLabelValues(outcome).Inc() }
func AddDiscovered(n int)                 { discovered.Add(float64(n)) }

func IncWebhookEvent(event, handling string) {
	webhookEvents.WithLabelValues(event, handling).Inc()
}
