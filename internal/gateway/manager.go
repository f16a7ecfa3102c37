package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"gatescan/internal/scan"
	"gatescan/internal/source"
)

var (
	ErrRateLimited       = errors.New("scan submission rate limit reached")
	ErrUnknownSourceKind = errors.New("unknown source kind")
)

// ScanManager is the inbound boundary of the engine: it admits scan
// requests, caps parallelism, runs the pipeline, persists threat records,
// and publishes completion events. Scans are independent; one scan failing
// or being canceled never touches another.
type ScanManager struct {
	cfg      Config
	engine   *scan.Engine
	settings *scan.SettingsStore
	store    ThreatStore
	notifier *Notifier
	obs      *Observability

	slots *semaphore.Weighted

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func NewScanManager(cfg Config, engine *scan.Engine, settings *scan.SettingsStore, store ThreatStore, notifier *Notifier, obs *Observability) *ScanManager {
	maxParallel := cfg.Scanner.MaxParallelScans
	if maxParallel <= 0 {
		maxParallel = 8
	}
	return &ScanManager{
		cfg:      cfg,
		engine:   engine,
		settings: settings,
		store:    store,
		notifier: notifier,
		obs:      obs,
		slots:    semaphore.NewWeighted(int64(maxParallel)),
		limiters: map[string]*rate.Limiter{},
	}
}

// Submit runs one scan to completion and returns its result. The verdict is
// returned even when persisting the threat record fails; logging is
// best-effort relative to the classification.
func (m *ScanManager) Submit(ctx context.Context, request ScanRequest) (scan.Result, error) {
	if !m.submitterLimiter(request.Submitter).Allow() {
		m.obs.MarkScan(ctx, "rate_limited")
		return scan.Result{}, ErrRateLimited
	}

	src, err := m.buildSource(request)
	if err != nil {
		return scan.Result{}, err
	}

	if err := m.slots.Acquire(ctx, 1); err != nil {
		return scan.Result{}, fmt.Errorf("acquire scan slot: %w", err)
	}
	defer m.slots.Release(1)

	result, err := m.engine.Scan(ctx, src, scan.Request{
		BlockOnDetection:         request.BlockOnDetection,
		EarlyTerminationOverride: request.EarlyTerminationOverride,
	})
	if err != nil {
		m.obs.MarkScan(ctx, "error")
		slog.Error("scan failed",
			"source", request.Identifier,
			"source_type", request.SourceKind,
			"error", err,
		)
		return scan.Result{}, err
	}

	m.obs.MarkScan(ctx, "completed")
	m.obs.MarkResult(ctx, result)

	logged := m.logThreat(ctx, result)
	m.notifier.Publish(eventFromResult(result, logged))
	return result, nil
}

// UpdateConfidenceThreshold swaps the shared confidence threshold, returning
// the old and new settings for audit. Values outside [0,1] are rejected
// before anything is applied.
func (m *ScanManager) UpdateConfidenceThreshold(value float64) (scan.Settings, scan.Settings, error) {
	next := m.settings.Get()
	next.ConfidenceThreshold = value
	return m.settings.Replace(next)
}

// UpdateEarlyTermination swaps the shared early-termination policy.
func (m *ScanManager) UpdateEarlyTermination(enabled bool, threshold float64, minBytes int64) (scan.Settings, scan.Settings, error) {
	next := m.settings.Get()
	next.EarlyTermination = scan.EarlyTermination{
		Enabled:   enabled,
		Threshold: threshold,
		MinBytes:  minBytes,
	}
	return m.settings.Replace(next)
}

// Threats exposes the paginated threat query boundary.
func (m *ScanManager) Threats(ctx context.Context, query ThreatQuery) ([]ThreatRecord, int64, error) {
	return m.store.Query(ctx, query)
}

// ThreatStats exposes the aggregate boundary.
func (m *ScanManager) ThreatStats(ctx context.Context) (ThreatAggregate, error) {
	return m.store.Aggregate(ctx)
}

func (m *ScanManager) logThreat(ctx context.Context, result scan.Result) bool {
	settings := m.settings.Get()
	if result.RiskLevel < settings.MinLogLevel {
		return false
	}
	record := ThreatRecord{
		Source:       result.Source,
		SourceType:   result.SourceType,
		Probability:  result.Probability,
		BytesScanned: result.BytesScanned,
		RiskLevel:    result.RiskLevel,
		Timestamp:    result.Timestamp,
		Blocked:      result.Blocked,
		Details:      threatDetails(result),
	}
	id, err := m.store.Append(ctx, record)
	if err != nil {
		// The verdict stands even when evidence logging fails.
		slog.Error("threat record write failed",
			"source", result.Source,
			"risk_level", result.RiskLevel.String(),
			"error", err,
		)
		return false
	}
	slog.Info("threat recorded",
		"id", id,
		"source", result.Source,
		"risk_level", result.RiskLevel.String(),
		"probability", result.Probability,
		"blocked", result.Blocked,
	)
	return true
}

func (m *ScanManager) buildSource(request ScanRequest) (source.ByteSource, error) {
	limits := source.Limits{
		MaxBytes:  m.cfg.Scanner.MaxSourceBytes,
		Timeout:   time.Duration(m.cfg.Scanner.TimeoutSec) * time.Second,
		ChunkSize: m.cfg.Scanner.ChunkBytes,
	}
	switch strings.ToLower(strings.TrimSpace(request.SourceKind)) {
	case source.KindURL:
		return source.NewURLSource(request.Identifier, limits), nil
	case source.KindFile:
		return source.NewFileSource(request.Identifier, limits), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, request.SourceKind)
	}
}

func (m *ScanManager) submitterLimiter(submitter string) *rate.Limiter {
	key := strings.TrimSpace(submitter)
	if key == "" {
		key = "anonymous"
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	limiter, ok := m.limiters[key]
	if !ok {
		rpm := m.cfg.Scanner.SubmitRPM
		if rpm <= 0 {
			rpm = 60
		}
		limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60), rpm)
		m.limiters[key] = limiter
	}
	return limiter
}

func eventFromResult(result scan.Result, logged bool) Event {
	name := EventScanCompleted
	if logged {
		name = EventThreatDetected
	}
	return Event{
		Event:        name,
		Source:       result.Source,
		SourceType:   result.SourceType,
		RiskLevel:    result.RiskLevel,
		Probability:  result.Probability,
		BytesScanned: result.BytesScanned,
		ScanTimeMS:   result.ScanTimeMS,
		Timestamp:    result.Timestamp,
	}
}

func threatDetails(result scan.Result) string {
	details := "action=" + result.RiskLevel.Action()
	if result.WindowDigest != "" {
		details += " window_digest=" + result.WindowDigest
	}
	if result.TerminatedEarly {
		details += " terminated_early=true"
	}
	if result.Truncated != "" {
		details += " truncated=" + result.Truncated
	}
	return details
}
