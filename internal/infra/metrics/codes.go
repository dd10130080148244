package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(codesGeneratedTotal, codesRevokedTotal, codesExpiredTotal, validationsTotal)
}

var codesGeneratedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "access_codes_generated_total",
		Help: "Total number of access codes generated.",
	},
)

var codesRevokedTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "access_codes_revoked_total",
		Help: "Total number of access codes revoked by admins.",
	},
)

var codesExpiredTotal = prometheus.NewCounter(
	prometheus.CounterOpts{
		Name: "access_codes_expired_total",
		Help: "Total number of access codes expired by the sweep.",
	},
)

var validationsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "access_code_validations_total",
		Help: "Validation attempts by structured outcome.",
	},
	[]string{"outcome"}, // success | invalid | expired | already_used | limit_reached
)

func IncCodeGenerated() { codesGeneratedTotal.Inc() }

func IncCodeRevoked() { codesRevokedTotal.Inc() }

func IncCodesExpired(n int) { codesExpiredTotal.Add(float64(n)) }

func IncValidation(outcome string) {
	validationsTotal.WithLabelValues(norm(outcome)).Inc()
}
