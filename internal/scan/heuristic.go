package scan

import (
	"context"
	"math"
)

// EntropyScorer is a non-ML fallback scorer. It fuses byte-distribution
// entropy with the share of control and high-bit bytes in the window, which
// together separate packed/encrypted payloads from plain text reasonably
// well. It exists so the engine runs without a scoring backend; it is not a
// substitute for a trained model.
type EntropyScorer struct{}

func (EntropyScorer) Name() string { return "entropy" }

func (EntropyScorer) Score(ctx context.Context, tokens []int) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var counts [256]int
	total := 0
	suspect := 0
	for _, token := range tokens {
		if token < 0 || token > 255 {
			continue
		}
		counts[token]++
		total++
		if isSuspectByte(byte(token)) {
			suspect++
		}
	}
	if total == 0 {
		return -8, nil
	}

	var entropy float64
	for _, count := range counts {
		if count > 0 {
			p := float64(count) / float64(total)
			entropy -= p * math.Log2(p)
		}
	}
	suspectRatio := float64(suspect) / float64(total)

	// Centered logit: plain ASCII text sits around entropy 4-5 with few
	// suspect bytes and lands well below zero; high-entropy binary with a
	// dense suspect share climbs above zero.
	raw := 1.1*(entropy-6.0) + 4.0*suspectRatio - 0.4
	return raw, nil
}

// isSuspectByte flags control bytes (except common whitespace) and the
// high-bit range typical of packed or encrypted content.
func isSuspectByte(b byte) bool {
	switch b {
	case '\t', '\n', '\r':
		return false
	}
	return b < 0x20 || b >= 0x80
}
