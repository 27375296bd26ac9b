// Package metrics exposes the Prometheus instruments for the token
// endpoint and the authentication middleware.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	GrantsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_grants_issued_total",
		Help: "Token grants issued, by grant type.",
	}, []string{"grant_type"})

	GrantsRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "identity_grants_rejected_total",
		Help: "Token grants rejected, by grant type and wire error code.",
	}, []string{"grant_type", "error"})

	AuthRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "identity_bearer_rejected_total",
		Help: "Bearer tokens rejected by the authentication middleware.",
	})
)
