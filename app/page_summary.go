package app

import (
	"qcgallery/domain/inspection"

	"github.com/montanaflynn/stats"
)

// PageSummary describes the confidence and latency of the rows on one page
type PageSummary struct {
	Count            int      `json:"count"`
	MeanConfidence   float64  `json:"mean_confidence"`
	MedianConfidence float64  `json:"median_confidence"`
	MinConfidence    float64  `json:"min_confidence"`
	MeanInferenceMS  float64  `json:"mean_inference_ms"`
	P95InferenceMS   float64  `json:"p95_inference_ms"`
	ModelVersions    []string `json:"model_versions"`
}

// SummarizePage computes the summary for items. An empty page yields a zero
// summary.
func SummarizePage(items []inspection.Inspection) (PageSummary, error) {
	summary := PageSummary{Count: len(items), ModelVersions: []string{}}
	if len(items) == 0 {
		return summary, nil
	}

	confidence := make(stats.Float64Data, 0, len(items))
	latency := make(stats.Float64Data, 0, len(items))
	seen := map[string]bool{}
	for _, it := range items {
		confidence = append(confidence, it.ConfidenceScore)
		latency = append(latency, float64(it.InferenceTimeMS))
		if it.ModelVersion != "" && !seen[it.ModelVersion] {
			seen[it.ModelVersion] = true
			summary.ModelVersions = append(summary.ModelVersions, it.ModelVersion)
		}
	}

	var err error
	if summary.MeanConfidence, err = confidence.Mean(); err != nil {
		return summary, err
	}
	if summary.MedianConfidence, err = confidence.Median(); err != nil {
		return summary, err
	}
	if summary.MinConfidence, err = confidence.Min(); err != nil {
		return summary, err
	}
	if summary.MeanInferenceMS, err = latency.Mean(); err != nil {
		return summary, err
	}
	if summary.P95InferenceMS, err = latency.Percentile(95); err != nil {
		return summary, err
	}
	return summary, nil
}
