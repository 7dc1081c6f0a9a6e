package metrics

import (
	"github.com/fpang/social-graph-bridge/internal/profiler"
)

// Metric names for profiled Graph API calls.
const (
	MetricGraphCalls        = "GraphCalls"
	MetricGraphCallsTotalMs = "GraphCallsTotalMs"
	MetricGraphCallFailures = "GraphCallFailures"
)

// GraphCalls builds a recorder for the Graph calls made while handling one
// operation. It returns nil when no call was recorded.
func GraphCalls(operation string, profiles []profiler.Profile) *Recorder {
	if len(profiles) == 0 {
		return nil
	}

	var total float64
	failures := 0
	for _, p := range profiles {
		if p.Duration != nil {
			total += float64(p.Duration.Microseconds()) / 1000
		}
		if p.Completed() && p.Outcome != profiler.OutcomeResponse {
			failures++
		}
	}

	return New(Namespace).
		Dimension("Operation", operation).
		Metric(MetricGraphCalls, float64(len(profiles)), UnitCount).
		Metric(MetricGraphCallsTotalMs, total, UnitMilliseconds).
		Metric(MetricGraphCallFailures, float64(failures), UnitCount)
}
