package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var lookups = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "gift_ledger",
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Read-through cache lookups by revalidation mode and outcome.",
	},
	[]string{"mode", "result"},
)

const (
	modeTTL       = "ttl"
	modePerpetual = "perpetual"

	resultHit   = "hit"
	resultMiss  = "miss"
	resultStale = "stale"
)
