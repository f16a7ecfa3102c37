package scan

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// RiskLevel is the discrete bucket derived from a scan probability.
type RiskLevel int

const (
	RiskBenign RiskLevel = iota
	RiskLow
	RiskMedium
	RiskHigh
	RiskCritical
)

func (r RiskLevel) String() string {
	switch r {
	case RiskBenign:
		return "benign"
	case RiskLow:
		return "low"
	case RiskMedium:
		return "medium"
	case RiskHigh:
		return "high"
	case RiskCritical:
		return "critical"
	default:
		return fmt.Sprintf("risk(%d)", int(r))
	}
}

// Action returns the gateway action associated with a level.
func (r RiskLevel) Action() string {
	switch r {
	case RiskBenign:
		return "allow"
	case RiskLow:
		return "log"
	case RiskMedium:
		return "log+warn"
	case RiskHigh:
		return "log+alert"
	default:
		return "block+alert"
	}
}

func ParseRiskLevel(value string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "benign":
		return RiskBenign, nil
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	case "critical":
		return RiskCritical, nil
	default:
		return RiskBenign, fmt.Errorf("unknown risk level: %q", value)
	}
}

func (r RiskLevel) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

func (r *RiskLevel) UnmarshalJSON(data []byte) error {
	var value string
	if err := json.Unmarshal(data, &value); err != nil {
		return err
	}
	level, err := ParseRiskLevel(value)
	if err != nil {
		return err
	}
	*r = level
	return nil
}

func (r RiskLevel) MarshalYAML() (any, error) {
	return r.String(), nil
}

func (r *RiskLevel) UnmarshalYAML(node *yaml.Node) error {
	var value string
	if err := node.Decode(&value); err != nil {
		return err
	}
	level, err := ParseRiskLevel(value)
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// Thresholds are the ordered probability boundaries between risk buckets.
// Boundary values belong to the upper bucket.
type Thresholds struct {
	BenignMax float64 `json:"benign_max" yaml:"benign_max"`
	LowMax    float64 `json:"low_max" yaml:"low_max"`
	MediumMax float64 `json:"medium_max" yaml:"medium_max"`
	HighMax   float64 `json:"high_max" yaml:"high_max"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		BenignMax: 0.3,
		LowMax:    0.5,
		MediumMax: 0.7,
		HighMax:   0.9,
	}
}

func (t Thresholds) Validate() error {
	bounds := []float64{t.BenignMax, t.LowMax, t.MediumMax, t.HighMax}
	prev := 0.0
	for i, bound := range bounds {
		if bound <= prev || bound >= 1 {
			return fmt.Errorf("risk thresholds must be strictly increasing in (0,1), got %v", bounds)
		}
		prev = bounds[i]
	}
	return nil
}

// Classify maps a probability to a risk level. It is pure and total for any
// finite probability; out-of-range inputs are a caller bug, not a runtime
// condition, and fall into the nearest bucket.
func Classify(p float64, t Thresholds) RiskLevel {
	switch {
	case p < t.BenignMax:
		return RiskBenign
	case p < t.LowMax:
		return RiskLow
	case p < t.MediumMax:
		return RiskMedium
	case p < t.HighMax:
		return RiskHigh
	default:
		return RiskCritical
	}
}
