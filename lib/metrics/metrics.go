package metrics

import (
	"sync"

	prom "github.com/prometheus/client_golang/prometheus"
)

const (
	Namespace = "objcore"

	SubsystemResponse = "response"
	SubsystemGas      = "gas"
	SubsystemStore    = "store"
	SubsystemNode     = "node"
	SubsystemRPC      = "rpc"

	LabelKind      = "kind"
	LabelReason    = "reason"
	LabelDimension = "dimension"
	LabelResult    = "result"
	LabelMethod    = "method"
)

// response builder
var (
	ResponseCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemResponse,
			Name:      "total",
			Help:      "Total number of built responses.",
		},
		[]string{LabelKind})
	RejectedCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemResponse,
			Name:      "rejected_total",
			Help:      "Total number of rejected requests.",
		},
		[]string{LabelReason})
	BuildHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemResponse,
			Name:      "build_seconds",
			Help:      "Histogram of response build latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelKind})
)

// gas
var (
	GasConsumedCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemGas,
			Name:      "consumed",
			Help:      "Total units of gas consumed.",
		},
		[]string{LabelDimension})
)

// store
var (
	StoreCommitCounter = prom.NewCounterVec(
		prom.CounterOpts{
			Namespace: Namespace,
			Subsystem: SubsystemStore,
			Name:      "commit_total",
			Help:      "Total number of store commits.",
		},
		[]string{LabelResult})
)

// node
var (
	NodePendingGauge = prom.NewGauge(
		prom.GaugeOpts{
			Namespace: Namespace,
			Subsystem: SubsystemNode,
			Name:      "pending_requests",
			Help:      "Number of requests waiting in the node queue.",
		})
	RPCCallHistogram = prom.NewHistogramVec(
		prom.HistogramOpts{
			Namespace: Namespace,
			Subsystem: SubsystemRPC,
			Name:      "cost_seconds",
			Help:      "Histogram of rpc method latency.",
			Buckets:   prom.DefBuckets,
		},
		[]string{LabelMethod})
)

var registerOnce sync.Once

// RegisterMetrics register all collectors to the default registry, calling it twice is harmless
func RegisterMetrics() {
	registerOnce.Do(func() {
		// response
		prom.MustRegister(ResponseCounter)
		prom.MustRegister(RejectedCounter)
		prom.MustRegister(BuildHistogram)
		// gas
		prom.MustRegister(GasConsumedCounter)
		// store
		prom.MustRegister(StoreCommitCounter)
		// node
		prom.MustRegister(NodePendingGauge)
		prom.MustRegister(RPCCallHistogram)
	})
}
