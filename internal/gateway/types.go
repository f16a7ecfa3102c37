package gateway

import (
	"time"

	"gatescan/internal/scan"
)

// ScanRequest is the sole inbound entry point the core exposes to whatever
// transport fronts it.
type ScanRequest struct {
	SourceKind       string `json:"source_kind"`
	Identifier       string `json:"identifier"`
	BlockOnDetection bool   `json:"block_on_detection"`

	EarlyTerminationOverride *bool `json:"early_termination_override,omitempty"`

	// Submitter keys the intake rate limiter; empty means anonymous.
	Submitter string `json:"submitter,omitempty"`
}

// ThreatRecord is the persisted evidence of a scan whose risk level crossed
// the logging threshold. Immutable once appended; the id is store-assigned,
// monotonically increasing, and never reused.
type ThreatRecord struct {
	ID           int64          `json:"id"`
	Source       string         `json:"source"`
	SourceType   string         `json:"source_type"`
	Probability  float64        `json:"probability"`
	BytesScanned int64          `json:"bytes_scanned"`
	RiskLevel    scan.RiskLevel `json:"risk_level"`
	Timestamp    string         `json:"timestamp"`
	Blocked      bool           `json:"blocked"`
	Details      string         `json:"details,omitempty"`
}

// ThreatQuery filters and paginates the threat list. An offset beyond the
// total yields an empty page with the correct total, not an error.
type ThreatQuery struct {
	RiskLevel  *scan.RiskLevel
	SourceType string
	Limit      int
	Offset     int
}

// ThreatAggregate is the store-wide rollup, computed from the same snapshot
// as any page returned alongside it.
type ThreatAggregate struct {
	GeneratedAt       string           `json:"generated_at"`
	Total             int64            `json:"total"`
	CountsPerLevel    map[string]int64 `json:"counts_per_risk_level"`
	TotalBytesScanned int64            `json:"total_bytes_scanned"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
