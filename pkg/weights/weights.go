// Package weights holds the per-epoch table mapping event types to integer unit weights.
//
// A WeightConfig is closed: it is validated once when an epoch is created and
// never mutated afterwards. Looking up an event type that is not in the table
// is a configuration error rather than an implicit weight of zero.
package weights

import (
	"fmt"
	"sort"
	"strings"

	"github.com/epochledger/epochledger/pkg/ledgerErrors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type WeightConfig struct {
	weights map[string]int64
}

func NewWeightConfig(weights map[string]int64) (*WeightConfig, error) {
	if len(weights) == 0 {
		return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidWeightConfig, "weight config must contain at least one event type")
	}
	closed := make(map[string]int64, len(weights))
	for eventType, weight := range weights {
		if strings.TrimSpace(eventType) == "" {
			return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidWeightConfig, "event type must not be empty")
		}
		if weight < 0 {
			return nil, ledgerErrors.Validation(ledgerErrors.ErrInvalidWeightConfig, "weight for '%s' must not be negative, got %d", eventType, weight)
		}
		closed[eventType] = weight
	}
	return &WeightConfig{weights: closed}, nil
}

// Weight returns the unit weight for eventType.
func (w *WeightConfig) Weight(eventType string) (int64, error) {
	weight, ok := w.weights[eventType]
	if !ok {
		return 0, ledgerErrors.Configuration(ledgerErrors.ErrUnknownEventType, "event type '%s'", eventType)
	}
	return weight, nil
}

func (w *WeightConfig) EventTypes() []string {
	types := make([]string, 0, len(w.weights))
	for t := range w.weights {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// ToMap returns a copy suitable for persisting alongside the epoch.
func (w *WeightConfig) ToMap() map[string]int64 {
	m := make(map[string]int64, len(w.weights))
	for k, v := range w.weights {
		m[k] = v
	}
	return m
}

func (w *WeightConfig) String() string {
	parts := make([]string, 0, len(w.weights))
	for _, t := range w.EventTypes() {
		parts = append(parts, fmt.Sprintf("%s=%d", t, w.weights[t]))
	}
	return strings.Join(parts, ",")
}

type weightFile struct {
	Weights map[string]int64 `koanf:"weights"`
}

// LoadWeightConfigFile reads a YAML (or JSON) document of the form
//
//	weights:
//	  pr_merged: 8000
//	  review_submitted: 2000
func LoadWeightConfigFile(path string) (*WeightConfig, error) {
	// event types may contain dots, so use a delimiter that cannot appear in them
	k := koanf.New("/")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("failed to load weight config '%s': %w", path, err)
	}

	var wf weightFile
	if err := k.UnmarshalWithConf("", &wf, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to parse weight config '%s': %w", path, err)
	}
	return NewWeightConfig(wf.Weights)
}
