package metricsTypes

import "time"

type IMetricsClient interface {
	Incr(name string, labels []MetricsLabel, value float64) error
	Gauge(name string, value float64, labels []MetricsLabel) error
	Timing(name string, value time.Duration, labels []MetricsLabel) error
}

type MetricsLabel struct {
	Name  string
	Value string
}

type MetricsType string

var (
	MetricsType_Incr   MetricsType = "incr"
	MetricsType_Gauge  MetricsType = "gauge"
	MetricsType_Timing MetricsType = "timing"
)

type MetricsTypeConfig struct {
	Name   string
	Labels []string
}

var (
	Metric_Incr_EventsIngested        = "ledger.events.ingested"
	Metric_Incr_CurationsSeeded       = "ledger.curations.seeded"
	Metric_Incr_AllocationsRecomputed = "ledger.allocations.recomputed"
	Metric_Incr_PoolComponentAdded    = "ledger.pool.component_added"
	Metric_Incr_EpochClosed           = "ledger.epoch.closed"
	Metric_Incr_CloseConflict         = "ledger.epoch.close_conflict"
	Metric_Incr_IntegrityAlarm        = "ledger.integrity_alarm"
	Metric_Incr_JobProcessed          = "ledger.job.processed"
	Metric_Incr_GrpcRequest           = "rpc.grpc.request"
	Metric_Incr_HttpRequest           = "rpc.http.request"

	Metric_Gauge_OpenEpochs          = "ledger.epochs.open"
	Metric_Gauge_LastClosedPoolTotal = "ledger.epoch.last_closed_pool_total"

	Metric_Timing_GrpcDuration      = "rpc.grpc.duration"
	Metric_Timing_HttpDuration      = "rpc.http.duration"
	Metric_Timing_CloseDuration     = "ledger.epoch.close.duration"
	Metric_Timing_RecomputeDuration = "ledger.allocations.recompute.duration"
)

var MetricTypes = map[MetricsType][]MetricsTypeConfig{
	MetricsType_Incr: {
		MetricsTypeConfig{
			Name:   Metric_Incr_EventsIngested,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_CurationsSeeded,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_AllocationsRecomputed,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_PoolComponentAdded,
			Labels: []string{"node_id", "component_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_EpochClosed,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_CloseConflict,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_IntegrityAlarm,
			Labels: []string{"node_id", "kind"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_JobProcessed,
			Labels: []string{"operation", "status"},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_GrpcRequest,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Incr_HttpRequest,
			Labels: []string{"pattern", "status"},
		},
	},
	MetricsType_Gauge: {
		MetricsTypeConfig{
			Name:   Metric_Gauge_OpenEpochs,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Gauge_LastClosedPoolTotal,
			Labels: []string{"node_id"},
		},
	},
	MetricsType_Timing: {
		MetricsTypeConfig{
			Name:   Metric_Timing_GrpcDuration,
			Labels: []string{},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_HttpDuration,
			Labels: []string{"pattern"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_CloseDuration,
			Labels: []string{"node_id"},
		},
		MetricsTypeConfig{
			Name:   Metric_Timing_RecomputeDuration,
			Labels: []string{"node_id"},
		},
	},
}
