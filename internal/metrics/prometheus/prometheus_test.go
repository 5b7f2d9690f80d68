package prometheus

import (
	"testing"
	"time"

	"github.com/epochledger/epochledger/internal/logger"
	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func Test_PrometheusMetricsClient(t *testing.T) {
	l, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	t.Run("Should register and record every configured metric", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
			Metrics:    metricsTypes.MetricTypes,
			Registerer: reg,
		}, l)
		assert.Nil(t, err)

		nodeLabels := []metricsTypes.MetricsLabel{{Name: "node_id", Value: "node-a"}}

		assert.Nil(t, client.Incr(metricsTypes.Metric_Incr_EpochClosed, nodeLabels, 1))
		assert.Nil(t, client.Incr(metricsTypes.Metric_Incr_EpochClosed, nodeLabels, 1))
		assert.Nil(t, client.Gauge(metricsTypes.Metric_Gauge_OpenEpochs, 3, nodeLabels))
		assert.Nil(t, client.Timing(metricsTypes.Metric_Timing_CloseDuration, 15*time.Millisecond, nodeLabels))

		assert.Equal(t, float64(2), testutil.ToFloat64(client.counters[metricsTypes.Metric_Incr_EpochClosed]))
		assert.Equal(t, float64(3), testutil.ToFloat64(client.gauges[metricsTypes.Metric_Gauge_OpenEpochs]))
	})
	t.Run("Should return an error when labels do not match", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
			Metrics:    metricsTypes.MetricTypes,
			Registerer: reg,
		}, l)
		assert.Nil(t, err)

		err = client.Incr(metricsTypes.Metric_Incr_EpochClosed, []metricsTypes.MetricsLabel{{Name: "bogus", Value: "x"}}, 1)
		assert.NotNil(t, err)
	})
	t.Run("Should ignore unknown metrics", func(t *testing.T) {
		reg := prometheus.NewRegistry()
		client, err := NewPrometheusMetricsClient(&PrometheusMetricsConfig{
			Metrics:    metricsTypes.MetricTypes,
			Registerer: reg,
		}, l)
		assert.Nil(t, err)
		assert.Nil(t, client.Incr("not.a.metric", nil, 1))
	})
	t.Run("Should format dotted names", func(t *testing.T) {
		assert.Equal(t, "ledger_epoch_close_duration", formatName(metricsTypes.Metric_Timing_CloseDuration))
	})
}
