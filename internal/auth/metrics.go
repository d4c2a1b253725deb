package auth

import "github.com/prometheus/client_golang/prometheus"

var (
	tokensIssued = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "auth",
		Name:      "token_pairs_issued_total",
		Help:      "Token pairs issued, by trigger (issue or rotate).",
	}, []string{"trigger"})

	rotations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "auth",
		Name:      "refresh_rotations_total",
		Help:      "Refresh token rotation attempts by outcome.",
	}, []string{"outcome"})

	verifyFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fittracker",
		Subsystem: "auth",
		Name:      "access_verification_failures_total",
		Help:      "Access tokens rejected by verification.",
	})
)

func init() {
	prometheus.MustRegister(tokensIssued, rotations, verifyFailures)
}
