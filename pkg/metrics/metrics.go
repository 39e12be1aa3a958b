package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	IngestAccepted = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "ingest_accepted_total", Help: "Number of documents accepted and indexed."},
	)
	IngestDeduplicated = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "ingest_deduplicated_total", Help: "Number of ingests short-circuited by the fingerprint dedup check."},
	)
	IngestRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "ingest_rejected_total", Help: "Number of rejected ingests by reason."},
		[]string{"reason"},
	)
	SearchQueries = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "search_queries_total", Help: "Number of search queries by kind (scoped, cors, internal, landing)."},
		[]string{"kind"},
	)
	RateLimitAllowed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "rate_limit_allowed_total", Help: "Number of allowed requests by limiter type."},
		[]string{"limiter"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: "rubberband", Name: "rate_limit_rejected_total", Help: "Number of rejected requests by limiter type."},
		[]string{"limiter"},
	)
)

func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(IngestAccepted)
	reg.MustRegister(IngestDeduplicated)
	reg.MustRegister(IngestRejected)
	reg.MustRegister(SearchQueries)
	reg.MustRegister(RateLimitAllowed)
	reg.MustRegister(RateLimitRejected)
}
