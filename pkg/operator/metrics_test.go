package operator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	corev1 "k8s.io/api/core/v1"

	"github.com/giantswarm/kopkit/pkg/informer"
)

func TestResultLabel(t *testing.T) {
	assert.Equal(t, resultSuccess, resultLabel(ReconcileResult{}))
	assert.Equal(t, resultRequeue, resultLabel(ReconcileResult{Requeue: true}))
	assert.Equal(t, resultRequeueAfter, resultLabel(ReconcileResult{Requeue: true, RequeueAfter: time.Second}))
	assert.Equal(t, resultError, resultLabel(ReconcileResult{Error: errors.New("x"), RequeueAfter: time.Second}))
}

func TestMetrics_RecordReconciles(t *testing.T) {
	calls := 0
	rec := &recordingReconciler{
		result: func(context.Context, ReconcileParameters[*corev1.ConfigMap]) ReconcileResult {
			calls++
			if calls == 1 {
				return ReconcileResult{Error: errors.New("boom")}
			}
			return ReconcileResult{}
		},
	}
	c, _ := newTestController(t, Options{Name: "metrics-test"}, rec)

	c.onPrimary(informer.Added, newConfigMap("app"))
	c.onPrimary(informer.Added, newConfigMap("other"))
	require.True(t, c.processNext(context.Background()))
	require.True(t, c.processNext(context.Background()))

	var m dto.Metric
	require.NoError(t, reconcileTotal.WithLabelValues("metrics-test", resultError).Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())

	m.Reset()
	require.NoError(t, reconcileTotal.WithLabelValues("metrics-test", resultSuccess).Write(&m))
	assert.Equal(t, 1.0, m.GetCounter().GetValue())

	m.Reset()
	histogram, err := reconcileDuration.GetMetricWithLabelValues("metrics-test")
	require.NoError(t, err)
	require.NoError(t, histogram.(prometheus.Metric).Write(&m))
	assert.Equal(t, uint64(2), m.GetHistogram().GetSampleCount())

	m.Reset()
	require.NoError(t, cacheItems.WithLabelValues("metrics-test").Write(&m))
	assert.Equal(t, 2.0, m.GetGauge().GetValue())
}
