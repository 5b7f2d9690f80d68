package dogstatsd

import (
	"fmt"
	"sort"
	"time"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/epochledger/epochledger/internal/metrics/metricsTypes"
	"github.com/epochledger/epochledger/internal/version"
	"go.uber.org/zap"
)

const namespace = "epochledger."

type DogStatsdConfig struct {
	Url        string
	SampleRate float64
	// Metrics is the registry shared with the prometheus client. Names outside it
	// are rejected so both sinks report the same series.
	Metrics map[metricsTypes.MetricsType][]metricsTypes.MetricsTypeConfig
}

type DogStatsdMetricsClient struct {
	client     statsd.ClientInterface
	logger     *zap.Logger
	sampleRate float64
	metrics    map[string]metricsTypes.MetricsType
}

func NewDogStatsdMetricsClient(cfg *DogStatsdConfig, l *zap.Logger) (*DogStatsdMetricsClient, error) {
	s, err := statsd.New(cfg.Url,
		statsd.WithNamespace(namespace),
		statsd.WithTags([]string{fmt.Sprintf("version:%s", version.GetVersion())}),
		statsd.WithBufferFlushInterval(time.Second*2),
	)
	if err != nil {
		l.Sugar().Errorw("Failed to create dogstatsd metrics client", zap.String("url", cfg.Url), zap.Error(err))
		return nil, err
	}
	return newDogStatsdMetricsClient(s, cfg, l), nil
}

func newDogStatsdMetricsClient(client statsd.ClientInterface, cfg *DogStatsdConfig, l *zap.Logger) *DogStatsdMetricsClient {
	known := make(map[string]metricsTypes.MetricsType)
	for t, configs := range cfg.Metrics {
		for _, m := range configs {
			known[m.Name] = t
		}
	}
	sampleRate := cfg.SampleRate
	if sampleRate <= 0 || sampleRate > 1 {
		sampleRate = 1
	}
	return &DogStatsdMetricsClient{
		client:     client,
		logger:     l,
		sampleRate: sampleRate,
		metrics:    known,
	}
}

func (s *DogStatsdMetricsClient) check(name string, t metricsTypes.MetricsType) error {
	registered, ok := s.metrics[name]
	if !ok {
		return fmt.Errorf("metric '%s' is not registered", name)
	}
	if registered != t {
		return fmt.Errorf("metric '%s' is a %s, not a %s", name, registered, t)
	}
	return nil
}

// formatTags renders labels as sorted name:value tags.
func formatTags(labels []metricsTypes.MetricsLabel) []string {
	tags := make([]string, 0, len(labels))
	for _, label := range labels {
		tags = append(tags, fmt.Sprintf("%s:%s", label.Name, label.Value))
	}
	sort.Strings(tags)
	return tags
}

func (s *DogStatsdMetricsClient) Incr(name string, labels []metricsTypes.MetricsLabel, value float64) error {
	if err := s.check(name, metricsTypes.MetricsType_Incr); err != nil {
		return err
	}
	return s.client.Count(name, int64(value), formatTags(labels), s.sampleRate)
}

func (s *DogStatsdMetricsClient) Gauge(name string, value float64, labels []metricsTypes.MetricsLabel) error {
	if err := s.check(name, metricsTypes.MetricsType_Gauge); err != nil {
		return err
	}
	return s.client.Gauge(name, value, formatTags(labels), s.sampleRate)
}

func (s *DogStatsdMetricsClient) Timing(name string, value time.Duration, labels []metricsTypes.MetricsLabel) error {
	if err := s.check(name, metricsTypes.MetricsType_Timing); err != nil {
		return err
	}
	return s.client.Timing(name, value, formatTags(labels), s.sampleRate)
}

func (s *DogStatsdMetricsClient) Flush() {
	if err := s.client.Flush(); err != nil {
		s.logger.Sugar().Errorw("Failed to flush dogstatsd metrics client", zap.Error(err))
	}
}
