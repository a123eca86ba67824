package quality

import "testing"

func TestEvaluate_SingleViolation(t *testing.T) {
	report := Evaluate(
		map[string]float64{"accuracy": 0.5},
		[]Threshold{{Metric: "accuracy", MinValue: 0.8, Weight: 1}},
		0,
	)
	if report.Passed {
		t.Fatal("expected report to fail")
	}
	if len(report.Violations) != 1 || report.Violations[0] != "accuracy" {
		t.Fatalf("expected violations [accuracy], got %v", report.Violations)
	}
	if report.OverallScore != 0.5 {
		t.Errorf("expected overall score 0.5, got %v", report.OverallScore)
	}
}

func TestEvaluate_AllPass(t *testing.T) {
	report := Evaluate(
		map[string]float64{"accuracy": 0.9, "coverage": 0.85},
		[]Threshold{
			{Metric: "accuracy", MinValue: 0.8, Weight: 2},
			{Metric: "coverage", MinValue: 0.7, Weight: 1},
		},
		0.8,
	)
	if !report.Passed {
		t.Fatalf("expected pass, got violations %v score %v", report.Violations, report.OverallScore)
	}
	// (0.9*2 + 0.85*1) / 3
	want := (0.9*2 + 0.85) / 3
	if diff := report.OverallScore - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected score %v, got %v", want, report.OverallScore)
	}
}

func TestEvaluate_MissingMetricIsZero(t *testing.T) {
	report := Evaluate(
		map[string]float64{"accuracy": 0.95},
		[]Threshold{
			{Metric: "accuracy", MinValue: 0.8},
			{Metric: "completeness", MinValue: 0.5},
		},
		0,
	)
	if report.Passed {
		t.Fatal("expected missing metric to violate its floor")
	}
	if len(report.Violations) != 1 || report.Violations[0] != "completeness" {
		t.Fatalf("expected violations [completeness], got %v", report.Violations)
	}
}

func TestEvaluate_MissingMetricZeroFloorPasses(t *testing.T) {
	report := Evaluate(
		nil,
		[]Threshold{{Metric: "latency_score", MinValue: 0}},
		0,
	)
	if !report.Passed {
		t.Fatal("a zero floor should accept an absent metric")
	}
}

// A good metric cannot offset another one below its own floor, even when the
// weighted overall score clears the global minimum.
func TestEvaluate_NoOffsetting(t *testing.T) {
	report := Evaluate(
		map[string]float64{"accuracy": 1.0, "coverage": 0.4},
		[]Threshold{
			{Metric: "accuracy", MinValue: 0.8, Weight: 9},
			{Metric: "coverage", MinValue: 0.5, Weight: 1},
		},
		0.5,
	)
	if report.Passed {
		t.Fatal("expected failure despite high overall score")
	}
	if report.OverallScore < 0.9 {
		t.Errorf("expected overall score above 0.9, got %v", report.OverallScore)
	}
}

func TestEvaluate_GlobalMinimum(t *testing.T) {
	report := Evaluate(
		map[string]float64{"accuracy": 0.6, "coverage": 0.6},
		[]Threshold{
			{Metric: "accuracy", MinValue: 0.5},
			{Metric: "coverage", MinValue: 0.5},
		},
		0.9,
	)
	if report.Passed {
		t.Fatal("expected overall score below global minimum to fail")
	}
	if len(report.Violations) != 0 {
		t.Fatalf("expected no per-metric violations, got %v", report.Violations)
	}
}

func TestEvaluate_NoThresholds(t *testing.T) {
	report := Evaluate(map[string]float64{"anything": 0.1}, nil, 0.9)
	if !report.Passed {
		t.Fatal("no thresholds should always pass")
	}
}
