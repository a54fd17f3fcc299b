package operator

import (
	"github.com/prometheus/client_golang/prometheus"
	ctrlmetrics "sigs.k8s.io/controller-runtime/pkg/metrics"
)

const (
	resultSuccess      = "success"
	resultError        = "error"
	resultRequeue      = "requeue"
	resultRequeueAfter = "requeue_after"
)

var (
	reconcileTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "kopkit_reconcile_total",
		Help: "Total number of reconcile attempts per controller and result.",
	}, []string{"controller", "result"})

	reconcileDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kopkit_reconcile_duration_seconds",
		Help:    "Duration of reconcile attempts per controller.",
		Buckets: prometheus.DefBuckets,
	}, []string{"controller"})

	cacheItems = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "kopkit_cache_items",
		Help: "Number of work items held in the controller cache.",
	}, []string{"controller"})
)

func init() {
	ctrlmetrics.Registry.MustRegister(reconcileTotal, reconcileDuration, cacheItems)
}

// resultLabel classifies a reconcile result for the reconcile_total metric.
func resultLabel(result ReconcileResult) string {
	switch {
	case result.Error != nil:
		return resultError
	case result.RequeueAfter > 0:
		return resultRequeueAfter
	case result.Requeue:
		return resultRequeue
	default:
		return resultSuccess
	}
}
