package scan

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/blake2b"

	"gatescan/internal/source"
)

// Engine runs the streaming detection pipeline: read chunk, update the
// rolling window, score, classify, decide continue/stop. Each Scan call owns
// its window and progress; an Engine is safe for concurrent scans as long as
// the Scorer is.
type Engine struct {
	scorer      Scorer
	settings    *SettingsStore
	thresholds  Thresholds
	windowBytes int
}

type Option func(*Engine)

// WithWindowBytes overrides the rolling-window capacity (and the fixed token
// length fed to the scorer).
func WithWindowBytes(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.windowBytes = n
		}
	}
}

// WithThresholds overrides the risk bucket boundaries. The caller is
// expected to have validated them.
func WithThresholds(t Thresholds) Option {
	return func(e *Engine) {
		e.thresholds = t
	}
}

func NewEngine(scorer Scorer, settings *SettingsStore, opts ...Option) *Engine {
	engine := &Engine{
		scorer:      scorer,
		settings:    settings,
		thresholds:  DefaultThresholds(),
		windowBytes: DefaultWindowBytes,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

func (e *Engine) Thresholds() Thresholds { return e.thresholds }

// Scan streams src through the pipeline and produces a verdict. The source
// is closed on every exit path. Mid-stream size-limit and timeout conditions
// finalize the scan with the last computed probability; source transport
// failures and scorer failures return a typed *Error with no result.
func (e *Engine) Scan(ctx context.Context, src source.ByteSource, req Request) (Result, error) {
	ctx, span := otel.Tracer("gatescan").Start(ctx, "scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.source_type", src.Kind()),
		attribute.String("scan.source", src.Identifier()),
	)

	start := time.Now()
	if err := src.Open(ctx); err != nil {
		_ = src.Close()
		if source.IsSizeLimit(err) || source.IsTimeout(err) {
			// The ceiling tripped before a single chunk was scored; finalize
			// with no evidence rather than failing the scan.
			return e.finalize(src, req, Progress{}, NewWindow(e.windowBytes), truncationReason(err), start), nil
		}
		span.RecordError(err)
		return Result{}, &Error{Kind: FailureSource, Err: fmt.Errorf("open %s source: %w", src.Kind(), err)}
	}
	defer src.Close()

	window := NewWindow(e.windowBytes)
	progress := Progress{}
	truncated := ""

loop:
	for {
		chunk, err := src.ReadChunk(ctx)
		switch {
		case err == io.EOF:
			break loop
		case err != nil && (source.IsSizeLimit(err) || source.IsTimeout(err)):
			// Terminal classification input: keep the last computed
			// probability, do not score the over-limit chunk.
			truncated = truncationReason(err)
			break loop
		case err != nil && ctx.Err() != nil:
			span.RecordError(err)
			return Result{}, &Error{Kind: FailureSource, Err: fmt.Errorf("scan canceled: %w", err)}
		case err != nil:
			span.RecordError(err)
			return Result{}, &Error{Kind: FailureSource, Err: fmt.Errorf("read %s source: %w", src.Kind(), err)}
		}
		if len(chunk) == 0 {
			continue
		}

		snapshot := window.Ingest(chunk)
		progress.BytesScanned += int64(len(chunk))
		progress.ChunksProcessed++

		// Settings are re-read every chunk on purpose: a threshold change
		// affects in-flight scans from the next chunk boundary.
		settings := e.settings.Get()

		raw, scoreErr := e.scorer.Score(ctx, Tokenize(snapshot, e.windowBytes))
		if scoreErr != nil {
			span.RecordError(scoreErr)
			return Result{}, &Error{Kind: FailureScoring, Err: fmt.Errorf("scorer %s: %w", e.scorer.Name(), scoreErr)}
		}
		progress.CurrentProbability = Probability(raw, settings.Temperature)

		policy := settings.EarlyTermination
		if req.EarlyTerminationOverride != nil {
			policy.Enabled = *req.EarlyTerminationOverride
		}
		if ShouldTerminate(progress, policy) {
			progress.TerminatedEarly = true
			break loop
		}
	}

	result := e.finalize(src, req, progress, window, truncated, start)
	span.SetAttributes(
		attribute.String("scan.risk_level", result.RiskLevel.String()),
		attribute.Float64("scan.probability", result.Probability),
		attribute.Int64("scan.bytes", result.BytesScanned),
		attribute.Bool("scan.blocked", result.Blocked),
		attribute.Bool("scan.terminated_early", result.TerminatedEarly),
	)
	return result, nil
}

func (e *Engine) finalize(src source.ByteSource, req Request, progress Progress, window *Window, truncated string, start time.Time) Result {
	// Blocked is evaluated against the confidence threshold in effect at
	// decision time, not at scan start.
	settings := e.settings.Get()
	p := progress.CurrentProbability
	level := Classify(p, e.thresholds)
	return Result{
		Source:          src.Identifier(),
		SourceType:      src.Kind(),
		Probability:     p,
		RiskLevel:       level,
		BytesScanned:    progress.BytesScanned,
		Blocked:         req.BlockOnDetection && p >= settings.ConfidenceThreshold,
		ScanTimeMS:      time.Since(start).Milliseconds(),
		TerminatedEarly: progress.TerminatedEarly,
		Truncated:       truncated,
		WindowDigest:    windowDigest(window),
		Timestamp:       nowRFC3339(),
	}
}

// windowDigest fingerprints the final window so a threat record carries
// reproducible evidence of what was actually scored.
func windowDigest(window *Window) string {
	if window == nil || window.Len() == 0 {
		return ""
	}
	sum := blake2b.Sum256(window.Bytes())
	return hex.EncodeToString(sum[:])
}

func truncationReason(err error) string {
	if source.IsSizeLimit(err) {
		return TruncatedSizeLimit
	}
	return TruncatedTimeout
}
