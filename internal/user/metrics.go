package user

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttemptsTotal counts authentication operations.
	// Labels: op (login, register, profile, refresh), result (success, or the
	// error kind)
	AuthAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "auth",
			Name:      "attempts_total",
			Help:      "Total number of authentication operations by result",
		},
		[]string{"op", "result"},
	)

	// TokensIssuedTotal counts signed tokens.
	TokensIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "taskd",
			Subsystem: "auth",
			Name:      "tokens_issued_total",
			Help:      "Total number of tokens issued",
		},
	)
)
