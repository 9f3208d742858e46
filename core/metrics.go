package core

import (
	"context"
	"fmt"
	"strings"
)

// Metric names are <prefix>.<operation>.total and
// <prefix>.<operation>.duration_ms, for example smarthome.directive.dispatch.total.
const (
	metricSuffixTotal    = "total"
	metricSuffixDuration = "duration_ms"
)

// metricTagKeys are the observed fields promoted to metric tags. Everything
// else stays in the log line only, which keeps label cardinality bounded.
var metricTagKeys = []string{"namespace", "name", "error_type"}

type NopMetricsRecorder struct{}

func (NopMetricsRecorder) IncCounter(context.Context, string, int64, map[string]string)         {}
func (NopMetricsRecorder) ObserveHistogram(context.Context, string, float64, map[string]string) {}

func metricName(prefix, operation, suffix string) string {
	return prefix + "." + operation + "." + suffix
}

func metricTags(operation, status string, fields map[string]any) map[string]string {
	tags := map[string]string{
		"operation": operation,
		"status":    status,
	}
	for _, key := range metricTagKeys {
		raw, ok := fields[key]
		if !ok || raw == nil {
			continue
		}
		if value := strings.TrimSpace(fmt.Sprint(raw)); value != "" {
			tags[key] = value
		}
	}
	return tags
}

func cloneTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return map[string]string{}
	}
	copied := make(map[string]string, len(tags))
	for key, value := range tags {
		copied[key] = value
	}
	return copied
}
