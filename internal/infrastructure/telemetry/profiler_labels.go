// Package telemetry provides Pyroscope continuous profiling integration.
package telemetry

import (
	"context"
	"maps"
	"sort"
	"strings"

	"github.com/grafana/pyroscope-go"
)

// Profiling label keys
const (
	ProfilingLabelRoute     = "route"
	ProfilingLabelMethod    = "method"
	ProfilingLabelCompanyID = "company_id"
	ProfilingLabelOperation = "operation"
	ProfilingLabelRegion    = "region"
)

// MaxLabelValueLength caps label values to keep profile cardinality bounded
const MaxLabelValueLength = 128

// HighCardinalityLabels are dropped from profiling labels.
// company_id is allowed; per-record ids are not.
var HighCardinalityLabels = map[string]bool{
	"user_id":       true,
	"request_id":    true,
	"trace_id":      true,
	"span_id":       true,
	"document_id":   true,
	"payment_id":    true,
	"cheque_id":     true,
	"allocation_id": true,
}

// WithProfilingLabels runs fn with Pyroscope labels attached to ctx.
// The labels map is copied before use.
func WithProfilingLabels(ctx context.Context, labels map[string]string, fn func(context.Context)) {
	pairs := sanitizeLabels(maps.Clone(labels))
	if len(pairs) == 0 {
		fn(ctx)
		return
	}
	pyroscope.TagWrapper(ctx, pyroscope.Labels(pairs...), fn)
}

// OperationLabels builds labels for one settlement operation
func OperationLabels(operation, companyID string) map[string]string {
	labels := map[string]string{ProfilingLabelOperation: operation}
	if companyID != "" {
		labels[ProfilingLabelCompanyID] = companyID
	}
	return labels
}

// HTTPRequestLabels builds labels for one HTTP request
func HTTPRequestLabels(route, method, companyID string) map[string]string {
	labels := make(map[string]string, 3)
	if route != "" {
		labels[ProfilingLabelRoute] = route
	}
	if method != "" {
		labels[ProfilingLabelMethod] = method
	}
	if companyID != "" {
		labels[ProfilingLabelCompanyID] = companyID
	}
	return labels
}

// sanitizeLabels drops empty and high-cardinality entries, truncates long
// values, normalises keys to snake_case and returns sorted key/value pairs.
func sanitizeLabels(labels map[string]string) []string {
	if len(labels) == 0 {
		return nil
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(labels)*2)
	for _, key := range keys {
		value := labels[key]
		if key == "" || value == "" || HighCardinalityLabels[key] {
			continue
		}
		if len(value) > MaxLabelValueLength {
			value = value[:MaxLabelValueLength]
		}
		sanitized := sanitizeLabelKey(key)
		if sanitized == "" {
			continue
		}
		pairs = append(pairs, sanitized, value)
	}
	return pairs
}

func sanitizeLabelKey(key string) string {
	key = strings.ToLower(key)
	key = strings.NewReplacer(" ", "_", "-", "_").Replace(key)

	var b strings.Builder
	for i := 0; i < len(key); i++ {
		c := key[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
