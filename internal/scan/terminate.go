package scan

// ShouldTerminate decides after a chunk whether the scan may stop before
// end-of-stream. The termination threshold is distinct from (and typically
// higher than) the confidence threshold: it exists to short-circuit obvious
// high-confidence threats after a small prefix instead of streaming the
// whole payload. A false early stop on an adversarial low-entropy prefix is
// an accepted trade for bounded latency.
func ShouldTerminate(progress Progress, policy EarlyTermination) bool {
	if !policy.Enabled {
		return false
	}
	if progress.BytesScanned < policy.MinBytes {
		return false
	}
	return progress.CurrentProbability >= policy.Threshold
}
