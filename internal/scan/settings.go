package scan

import (
	"fmt"
	"sync/atomic"
)

// EarlyTermination controls whether a scan may stop before end-of-stream
// once a high-confidence verdict is reached on a prefix.
type EarlyTermination struct {
	Enabled   bool    `json:"enabled" yaml:"enabled"`
	Threshold float64 `json:"threshold" yaml:"threshold"`
	MinBytes  int64   `json:"min_bytes" yaml:"min_bytes"`
}

// Settings is the shared, hot-reloadable scan configuration. In-flight scans
// poll it once per chunk, so an update takes effect at the next chunk
// boundary of every running scan. That is intentional, not a race.
type Settings struct {
	ConfidenceThreshold float64          `json:"confidence_threshold" yaml:"confidence_threshold"`
	Temperature         float64          `json:"temperature" yaml:"temperature"`
	MinLogLevel         RiskLevel        `json:"min_log_level" yaml:"min_log_level"`
	EarlyTermination    EarlyTermination `json:"early_termination" yaml:"early_termination"`
}

func DefaultSettings() Settings {
	return Settings{
		ConfidenceThreshold: 0.7,
		Temperature:         1.0,
		MinLogLevel:         RiskLow,
		EarlyTermination: EarlyTermination{
			Enabled:   true,
			Threshold: 0.9,
			MinBytes:  1024,
		},
	}
}

func (s Settings) Validate() error {
	if s.ConfidenceThreshold < 0 || s.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence_threshold must be in [0,1], got %v", s.ConfidenceThreshold)
	}
	if s.Temperature <= 0 {
		return fmt.Errorf("temperature must be positive, got %v", s.Temperature)
	}
	if s.EarlyTermination.Threshold < 0 || s.EarlyTermination.Threshold > 1 {
		return fmt.Errorf("early_termination.threshold must be in [0,1], got %v", s.EarlyTermination.Threshold)
	}
	if s.EarlyTermination.MinBytes < 0 {
		return fmt.Errorf("early_termination.min_bytes must be non-negative, got %d", s.EarlyTermination.MinBytes)
	}
	if s.MinLogLevel < RiskBenign || s.MinLogLevel > RiskCritical {
		return fmt.Errorf("min_log_level out of range: %d", int(s.MinLogLevel))
	}
	return nil
}

// SettingsStore publishes Settings to concurrent readers. Get is lock-free
// and always returns a complete snapshot: readers see either the old or the
// new value, never a torn mix of fields.
type SettingsStore struct {
	current atomic.Pointer[Settings]
}

func NewSettingsStore(initial Settings) (*SettingsStore, error) {
	if err := initial.Validate(); err != nil {
		return nil, err
	}
	store := &SettingsStore{}
	store.current.Store(&initial)
	return store, nil
}

func (s *SettingsStore) Get() Settings {
	return *s.current.Load()
}

// Replace validates next and swaps it in atomically, returning the previous
// and applied values for audit. Invalid settings are rejected before any
// field is applied.
func (s *SettingsStore) Replace(next Settings) (Settings, Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, Settings{}, err
	}
	old := s.current.Swap(&next)
	return *old, next, nil
}
