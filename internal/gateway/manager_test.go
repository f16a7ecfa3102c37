package gateway

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"gatescan/internal/scan"
)

type fixedScorer struct {
	raw float64
	err error
}

func (s fixedScorer) Name() string { return "fixed" }

func (s fixedScorer) Score(ctx context.Context, tokens []int) (float64, error) {
	return s.raw, s.err
}

// logit inverts the sigmoid so tests can pin exact probabilities.
func logit(p float64) float64 {
	return math.Log(p / (1 - p))
}

func testManager(t *testing.T, cfg Config, scorer scan.Scorer) (*ScanManager, *MemoryFileStore, *Notifier) {
	t.Helper()
	settings, err := scan.NewSettingsStore(cfg.Settings)
	if err != nil {
		t.Fatalf("NewSettingsStore: %v", err)
	}
	store, err := NewMemoryFileStore("")
	if err != nil {
		t.Fatalf("NewMemoryFileStore: %v", err)
	}
	engine := scan.NewEngine(scorer, settings,
		scan.WithWindowBytes(cfg.Scanner.WindowBytes),
		scan.WithThresholds(cfg.Risk),
	)
	notifier := NewNotifier()
	return NewScanManager(cfg, engine, settings, store, notifier, nil), store, notifier
}

func writePayload(t *testing.T, size int) string {
	t.Helper()
	payload := make([]byte, size)
	for i := range payload {
		payload[i] = byte(i * 31)
	}
	path := filepath.Join(t.TempDir(), "payload.bin")
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func TestSubmitRecordsThreatAndPublishesEvent(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.EarlyTermination = scan.EarlyTermination{Enabled: true, Threshold: 0.9, MinBytes: 1024}
	manager, store, notifier := testManager(t, cfg, fixedScorer{raw: logit(0.95)})

	events, cancel := notifier.Subscribe(4)
	defer cancel()

	result, err := manager.Submit(context.Background(), ScanRequest{
		SourceKind:       "file",
		Identifier:       writePayload(t, 4096),
		BlockOnDetection: true,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.TerminatedEarly {
		t.Fatalf("expected early termination at p=0.95")
	}
	if result.RiskLevel != scan.RiskCritical || !result.Blocked {
		t.Fatalf("got level=%s blocked=%v, want critical and blocked", result.RiskLevel, result.Blocked)
	}

	records, total, err := store.Query(context.Background(), ThreatQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 1 || len(records) != 1 {
		t.Fatalf("threat record count = %d/%d, want 1", len(records), total)
	}
	if records[0].RiskLevel != scan.RiskCritical || !records[0].Blocked {
		t.Fatalf("record %+v does not match the verdict", records[0])
	}

	select {
	case event := <-events:
		if event.Event != EventThreatDetected {
			t.Fatalf("event = %s, want %s", event.Event, EventThreatDetected)
		}
		if event.RiskLevel != scan.RiskCritical {
			t.Fatalf("event level = %s, want critical", event.RiskLevel)
		}
	default:
		t.Fatalf("no completion event published")
	}
}

func TestSubmitBenignBelowLogFloor(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.EarlyTermination.Enabled = false
	manager, store, notifier := testManager(t, cfg, fixedScorer{raw: logit(0.1)})

	events, cancel := notifier.Subscribe(4)
	defer cancel()

	result, err := manager.Submit(context.Background(), ScanRequest{
		SourceKind: "file",
		Identifier: writePayload(t, 2048),
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if result.RiskLevel != scan.RiskBenign || result.Blocked {
		t.Fatalf("got level=%s blocked=%v, want benign unblocked", result.RiskLevel, result.Blocked)
	}

	_, total, err := store.Query(context.Background(), ThreatQuery{Limit: 10})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if total != 0 {
		t.Fatalf("benign scan below min_log_level was recorded (%d records)", total)
	}

	select {
	case event := <-events:
		if event.Event != EventScanCompleted {
			t.Fatalf("event = %s, want %s", event.Event, EventScanCompleted)
		}
	default:
		t.Fatalf("no completion event published")
	}
}

func TestSubmitRateLimited(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Scanner.SubmitRPM = 1
	cfg.Settings.EarlyTermination.Enabled = false
	manager, _, _ := testManager(t, cfg, fixedScorer{raw: 0})

	path := writePayload(t, 512)
	if _, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: path, Submitter: "alice"}); err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	_, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: path, Submitter: "alice"})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("second Submit: got %v, want ErrRateLimited", err)
	}

	// Other submitters keep their own budget.
	if _, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: path, Submitter: "bob"}); err != nil {
		t.Fatalf("Submit from a different submitter: %v", err)
	}
}

func TestSubmitUnknownSourceKind(t *testing.T) {
	manager, _, _ := testManager(t, DefaultConfig(), fixedScorer{raw: 0})
	_, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "ftp", Identifier: "ftp://x"})
	if !errors.Is(err, ErrUnknownSourceKind) {
		t.Fatalf("got %v, want ErrUnknownSourceKind", err)
	}
}

func TestSubmitScoringFailureSurfacesTypedError(t *testing.T) {
	manager, store, _ := testManager(t, DefaultConfig(), fixedScorer{err: errors.New("backend down")})

	_, err := manager.Submit(context.Background(), ScanRequest{
		SourceKind: "file",
		Identifier: writePayload(t, 1024),
	})
	failure, ok := scan.AsError(err)
	if !ok || failure.Kind != scan.FailureScoring {
		t.Fatalf("got %v, want a scoring failure", err)
	}
	if _, total, _ := store.Query(context.Background(), ThreatQuery{Limit: 1}); total != 0 {
		t.Fatalf("failed scan must not leave a threat record")
	}
}

func TestUpdateSettingsAffectNextScan(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.EarlyTermination.Enabled = false
	manager, _, _ := testManager(t, cfg, fixedScorer{raw: logit(0.8)})
	path := writePayload(t, 2048)

	result, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: path, BlockOnDetection: true})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !result.Blocked {
		t.Fatalf("p=0.8 against threshold 0.7 should block")
	}

	old, applied, err := manager.UpdateConfidenceThreshold(0.85)
	if err != nil {
		t.Fatalf("UpdateConfidenceThreshold: %v", err)
	}
	if old.ConfidenceThreshold != 0.7 || applied.ConfidenceThreshold != 0.85 {
		t.Fatalf("threshold audit pair = %v -> %v", old.ConfidenceThreshold, applied.ConfidenceThreshold)
	}

	result, err = manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: path, BlockOnDetection: true})
	if err != nil {
		t.Fatalf("Submit after update: %v", err)
	}
	if result.Blocked {
		t.Fatalf("p=0.8 against the raised threshold 0.85 must not block")
	}

	if _, _, err := manager.UpdateConfidenceThreshold(1.5); err == nil {
		t.Fatalf("out-of-range threshold accepted")
	}
	if _, _, err := manager.UpdateEarlyTermination(true, 2, 0); err == nil {
		t.Fatalf("out-of-range early-termination threshold accepted")
	}
}

func TestThreatStatsPassthrough(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Settings.EarlyTermination.Enabled = false
	manager, _, _ := testManager(t, cfg, fixedScorer{raw: logit(0.82)})

	if _, err := manager.Submit(context.Background(), ScanRequest{SourceKind: "file", Identifier: writePayload(t, 1024)}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	stats, err := manager.ThreatStats(context.Background())
	if err != nil {
		t.Fatalf("ThreatStats: %v", err)
	}
	if stats.Total != 1 || stats.CountsPerLevel["high"] != 1 {
		t.Fatalf("stats %+v, want one high-risk record", stats)
	}
}
