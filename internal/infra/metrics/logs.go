package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(logExportsTotal, reportRunsTotal, statsCacheTotal)
}

var logExportsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "activity_log_exports_total",
		Help: "Completed activity-log exports by format.",
	},
	[]string{"format"},
)

var reportRunsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "report_runs_total",
		Help: "Scheduled report executions by status.",
	},
	[]string{"status"}, // completed | failed
)

var statsCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "log_stats_cache_total",
		Help: "Aggregation cache lookups by result.",
	},
	[]string{"result"}, // hit | miss
)

func IncLogExport(format string) {
	logExportsTotal.WithLabelValues(norm(format)).Inc()
}

func IncReportRun(status string) {
	reportRunsTotal.WithLabelValues(norm(status)).Inc()
}

func IncStatsCache(result string) {
	statsCacheTotal.WithLabelValues(norm(result)).Inc()
}
