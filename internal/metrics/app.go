// Package metrics emits application counters through the telemetry system.
package metrics

import (
	"strconv"

	"github.com/aniquiz/aniquiz/internal/observability"
)

// Metric names following Prometheus conventions.
const (
	RoundsBuiltTotalName   = "quiz_rounds_built_total"
	RoundAttemptsTotalName = "quiz_round_attempts_total"
	ThrottleEventsName     = "anilist_throttle_events_total"
	CacheLookupsName       = "cache_lookups_total"
	ErrorsTotalName        = "errors_total"
	PanicsTotalName        = "panics_total"
	ErrorsByEndpointName   = "errors_by_endpoint"
)

// RecordRoundBuilt records a completed round build with its attempt count.
func RecordRoundBuilt(difficulty string, attempts int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			RoundsBuiltTotalName,
			1,
			map[string]string{
				"difficulty": difficulty,
				"attempts":   strconv.Itoa(attempts),
			},
		)
	}
}

// RecordThrottleEvent records a throttling signal surfaced to a caller.
func RecordThrottleEvent(operation string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ThrottleEventsName,
			1,
			map[string]string{"operation": operation},
		)
	}
}

// RecordCacheLookup records a cache lookup and whether it hit.
func RecordCacheLookup(namespace string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			CacheLookupsName,
			1,
			map[string]string{
				"namespace": namespace,
				"result":    result,
			},
		)
	}
}

// RecordError records an error with code and status.
func RecordError(errorCode string, httpStatus int) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsTotalName,
			1,
			map[string]string{
				"error_code":  errorCode,
				"http_status": strconv.Itoa(httpStatus),
			},
		)
	}
}

// RecordPanic records a panic recovery.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotalName, 1, nil)
	}
}

// RecordErrorByEndpoint records an error by endpoint.
func RecordErrorByEndpoint(endpoint string, errorCode string) {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(
			ErrorsByEndpointName,
			1,
			map[string]string{
				"endpoint":   endpoint,
				"error_code": errorCode,
			},
		)
	}
}
