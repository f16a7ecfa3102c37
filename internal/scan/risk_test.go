package scan

import "testing"

func TestClassifyBuckets(t *testing.T) {
	thresholds := DefaultThresholds()
	cases := []struct {
		p    float64
		want RiskLevel
	}{
		{0, RiskBenign},
		{0.25, RiskBenign},
		{0.299, RiskBenign},
		{0.3, RiskLow},
		{0.49, RiskLow},
		{0.5, RiskMedium},
		{0.69, RiskMedium},
		{0.7, RiskHigh},
		{0.82, RiskHigh},
		{0.89, RiskHigh},
		{0.9, RiskCritical},
		{1, RiskCritical},
	}
	for _, tc := range cases {
		if got := Classify(tc.p, thresholds); got != tc.want {
			t.Fatalf("Classify(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}
}

func TestClassifyBoundariesBelongToUpperBucket(t *testing.T) {
	thresholds := DefaultThresholds()
	boundaries := map[float64]RiskLevel{
		0.3: RiskLow,
		0.5: RiskMedium,
		0.7: RiskHigh,
		0.9: RiskCritical,
	}
	for p, want := range boundaries {
		if got := Classify(p, thresholds); got != want {
			t.Fatalf("boundary %v classified as %s, want %s", p, got, want)
		}
	}
}

func TestClassifyMonotonic(t *testing.T) {
	thresholds := DefaultThresholds()
	prev := RiskBenign
	for i := 0; i <= 1000; i++ {
		p := float64(i) / 1000
		level := Classify(p, thresholds)
		if level < prev {
			t.Fatalf("classification decreased at p=%v: %s after %s", p, level, prev)
		}
		prev = level
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("default thresholds rejected: %v", err)
	}
	bad := []Thresholds{
		{BenignMax: 0.5, LowMax: 0.5, MediumMax: 0.7, HighMax: 0.9},
		{BenignMax: 0.3, LowMax: 0.2, MediumMax: 0.7, HighMax: 0.9},
		{BenignMax: 0, LowMax: 0.5, MediumMax: 0.7, HighMax: 0.9},
		{BenignMax: 0.3, LowMax: 0.5, MediumMax: 0.7, HighMax: 1},
	}
	for i, thresholds := range bad {
		if err := thresholds.Validate(); err == nil {
			t.Fatalf("case %d: expected validation error for %+v", i, thresholds)
		}
	}
}

func TestRiskLevelRoundTrip(t *testing.T) {
	for _, level := range []RiskLevel{RiskBenign, RiskLow, RiskMedium, RiskHigh, RiskCritical} {
		parsed, err := ParseRiskLevel(level.String())
		if err != nil {
			t.Fatalf("ParseRiskLevel(%s): %v", level, err)
		}
		if parsed != level {
			t.Fatalf("round trip changed %s to %s", level, parsed)
		}
	}
	if _, err := ParseRiskLevel("catastrophic"); err == nil {
		t.Fatalf("expected error for unknown level")
	}
}
