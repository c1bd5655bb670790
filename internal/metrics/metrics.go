package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IndexerHeight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stampindexer",
		Name:      "indexer_height",
		Help:      "Height of the last fully committed block.",
	})

	BlocksProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "blocks_processed_total",
		Help:      "Total blocks committed.",
	})

	TransactionsProcessed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "transactions_processed_total",
		Help:      "Total transaction candidates processed.",
	})

	StampsClassified = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "stamps_classified_total",
		Help:      "Stamps classified by outcome (btc_stamp, cursed, unknown).",
	}, []string{"outcome"})

	SRC20OperationsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "src20_operations_total",
		Help:      "SRC-20 operations processed by op and status.",
	}, []string{"op", "status"})

	ReorgsHandled = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "reorgs_handled_total",
		Help:      "Total chain reorganizations detected and rewound.",
	})

	OracleMismatches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stampindexer",
		Name:      "oracle_mismatches_total",
		Help:      "Total ledger-hash disagreements against the external oracle.",
	})

	UpstreamRPCLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stampindexer",
		Name:      "upstream_rpc_latency_seconds",
		Help:      "Latency of get_transactions calls to the upstream metadata RPC.",
		Buckets:   prometheus.DefBuckets,
	})

	BlockProcessingSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stampindexer",
		Name:      "block_processing_seconds",
		Help:      "Wall-clock time to fully process one block.",
		Buckets:   prometheus.DefBuckets,
	})
)

func init() {
	prometheus.MustRegister(
		IndexerHeight,
		BlocksProcessed,
		TransactionsProcessed,
		StampsClassified,
		SRC20OperationsProcessed,
		ReorgsHandled,
		OracleMismatches,
		UpstreamRPCLatency,
		BlockProcessingSeconds,
	)
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
