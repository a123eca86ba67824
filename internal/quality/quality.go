// Package quality gates task results against named numeric thresholds.
package quality

// Threshold is a named minimum acceptable value for a result metric, with a
// relative weight in the overall score.
type Threshold struct {
	Metric   string  `json:"metric" yaml:"metric"`
	MinValue float64 `json:"min_value" yaml:"min_value"`
	Weight   float64 `json:"weight" yaml:"weight"`
}

// Report is the verdict for one task result. It has no identity and no side
// effects; callers decide what a failed report means.
type Report struct {
	OverallScore float64  `json:"overall_score"`
	Passed       bool     `json:"passed"`
	Violations   []string `json:"violations,omitempty"`
}

// Evaluate checks every threshold against the supplied metric map. A metric
// absent from the map counts as 0. The overall score is the weighted mean of
// the thresholded metrics; Passed requires every per-metric floor to be met
// and the overall score to reach globalMin. A single metric below its own
// floor cannot be offset by others.
func Evaluate(metrics map[string]float64, thresholds []Threshold, globalMin float64) Report {
	if len(thresholds) == 0 {
		return Report{OverallScore: 1, Passed: true}
	}

	var weighted, totalWeight float64
	var violations []string

	for _, th := range thresholds {
		value := metrics[th.Metric]
		weight := th.Weight
		if weight == 0 {
			weight = 1
		}
		weighted += value * weight
		totalWeight += weight

		if value < th.MinValue {
			violations = append(violations, th.Metric)
		}
	}

	score := weighted / totalWeight
	return Report{
		OverallScore: score,
		Passed:       len(violations) == 0 && score >= globalMin,
		Violations:   violations,
	}
}
