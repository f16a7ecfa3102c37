package scan

import "time"

// Request carries the per-scan options supplied by the caller. Settings that
// may change mid-scan live in SettingsStore, not here.
type Request struct {
	BlockOnDetection bool `json:"block_on_detection"`

	// EarlyTerminationOverride, when set, forces early termination on or off
	// for this scan regardless of the shared settings. It never changes the
	// termination threshold or minimum bytes.
	EarlyTerminationOverride *bool `json:"early_termination_override,omitempty"`
}

// Progress is the mutable per-scan state. It is owned by the scan's goroutine
// and never shared across scans.
type Progress struct {
	BytesScanned       int64
	ChunksProcessed    int
	CurrentProbability float64
	TerminatedEarly    bool
}

// Truncation reasons recorded on a Result when the stream was cut short by a
// configured ceiling rather than by end-of-input.
const (
	TruncatedSizeLimit = "size_limit"
	TruncatedTimeout   = "timeout"
)

// Result is the immutable outcome of one scan.
type Result struct {
	Source          string    `json:"source"`
	SourceType      string    `json:"source_type"`
	Probability     float64   `json:"probability"`
	RiskLevel       RiskLevel `json:"risk_level"`
	BytesScanned    int64     `json:"bytes_scanned"`
	Blocked         bool      `json:"blocked"`
	ScanTimeMS      int64     `json:"scan_time_ms"`
	TerminatedEarly bool      `json:"terminated_early"`
	Truncated       string    `json:"truncated,omitempty"`
	WindowDigest    string    `json:"window_digest,omitempty"`
	Timestamp       string    `json:"timestamp"`
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339)
}
