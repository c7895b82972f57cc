package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	initOnce sync.Once

	costRecordedCounter    *prometheus.CounterVec
	costEventsDroppedTotal prometheus.Counter
	tenantCallsCounter     *prometheus.CounterVec
	trackerTasksDropped    prometheus.Counter
	alertsCounter          *prometheus.CounterVec
	autohealActionsCounter *prometheus.CounterVec
	degradedModeGauge      prometheus.Gauge
	backupsCounter         *prometheus.CounterVec
	backupDurationMetric   prometheus.Histogram
	backupsPrunedCounter   prometheus.Counter
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		costRecordedCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_cost_usd_total",
				Help: "Total USD cost recorded by external service.",
			},
			[]string{"service"},
		)

		costEventsDroppedTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_cost_events_dropped_total",
				Help: "Cost events dropped for missing tenant attribution.",
			},
		)

		tenantCallsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_tenant_calls_total",
				Help: "Tracked AI calls by pricing tier.",
			},
			[]string{"tier"},
		)

		trackerTasksDropped = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_tracker_tasks_dropped_total",
				Help: "Background tracker tasks dropped because the queue was full.",
			},
		)

		alertsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_alerts_total",
				Help: "Alert decisions by level and outcome.",
			},
			[]string{"level", "outcome"},
		)

		autohealActionsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_autoheal_actions_total",
				Help: "Auto-heal attempts by metric and success.",
			},
			[]string{"metric", "success"},
		)

		degradedModeGauge = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sentinel_degraded_mode",
				Help: "1 while degraded mode is active.",
			},
		)

		backupsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sentinel_backups_total",
				Help: "Backup runs by result.",
			},
			[]string{"result"},
		)

		backupDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sentinel_backup_duration_seconds",
				Help:    "Duration of a single tenant backup in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		backupsPrunedCounter = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sentinel_backups_pruned_total",
				Help: "Backup files deleted by retention pruning.",
			},
		)

		prometheus.MustRegister(
			costRecordedCounter,
			costEventsDroppedTotal,
			tenantCallsCounter,
			trackerTasksDropped,
			alertsCounter,
			autohealActionsCounter,
			degradedModeGauge,
			backupsCounter,
			backupDurationMetric,
			backupsPrunedCounter,
		)

		for _, result := range []string{"success", "partial", "error"} {
			backupsCounter.WithLabelValues(result)
		}
	})
}

func AddCost(service string, amount float64) {
	Init()
	if amount > 0 {
		costRecordedCounter.WithLabelValues(service).Add(amount)
	}
}

func IncCostEventsDropped() {
	Init()
	costEventsDroppedTotal.Inc()
}

func IncTenantCall(tier string) {
	Init()
	tenantCallsCounter.WithLabelValues(tier).Inc()
}

func IncTrackerTasksDropped() {
	Init()
	trackerTasksDropped.Inc()
}

func IncAlert(level, outcome string) {
	Init()
	alertsCounter.WithLabelValues(level, outcome).Inc()
}

func IncAutoHealAction(metric string, success bool) {
	Init()
	label := "false"
	if success {
		label = "true"
	}
	autohealActionsCounter.WithLabelValues(metric, label).Inc()
}

func SetDegraded(degraded bool) {
	Init()
	if degraded {
		degradedModeGauge.Set(1)
		return
	}
	degradedModeGauge.Set(0)
}

func IncBackup(result string) {
	Init()
	backupsCounter.WithLabelValues(result).Inc()
}

func ObserveBackupDuration(d time.Duration) {
	Init()
	backupDurationMetric.Observe(d.Seconds())
}

func AddBackupsPruned(n int) {
	Init()
	if n > 0 {
		backupsPrunedCounter.Add(float64(n))
	}
}
