package observability

import (
	"context"
	"time"
)

// RecordIngestion logs the outcome and latency of one batch write of
// buffered option quotes for a symbol.
func RecordIngestion(ctx context.Context, symbol string, duration time.Duration, err error) {
	fields := map[string]any{
		"name":       "ingestion_update",
		"symbol":     symbol,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordGreeksMismatch logs a vendor-vs-calculated Greeks discrepancy that
// exceeded the tolerance for the given field.
func RecordGreeksMismatch(ctx context.Context, symbol, field string, vendor, calculated float64) {
	LogEvent(ctx, "warn", "metric", map[string]any{
		"name":       "greeks_mismatch",
		"symbol":     symbol,
		"field":      field,
		"vendor":     vendor,
		"calculated": calculated,
	})
}

// RecordFlowFlush logs a flow-aggregator flush of tumbling-window buckets
// to the persistence adapter.
func RecordFlowFlush(ctx context.Context, bucketsFlushed int, duration time.Duration, err error) {
	fields := map[string]any{
		"name":       "flow_flush",
		"buckets":    bucketsFlushed,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordGEXCompute logs the outcome of one gamma-exposure recompute for a
// symbol/expiration pair.
func RecordGEXCompute(ctx context.Context, symbol, expiration string, duration time.Duration, err error) {
	fields := map[string]any{
		"name":       "gex_compute",
		"symbol":     symbol,
		"expiration": expiration,
		"latency_ms": duration.Milliseconds(),
		"success":    err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}

// RecordStreamReconnect logs a stream-manager reconnect attempt for a
// symbol, with the attempt number as supplied by the caller.
func RecordStreamReconnect(ctx context.Context, symbol string, attempt int, err error) {
	fields := map[string]any{
		"name":    "stream_reconnect",
		"symbol":  symbol,
		"attempt": attempt,
		"success": err == nil,
	}
	if err != nil {
		fields["error"] = err.Error()
	}
	LogEvent(ctx, "info", "metric", fields)
}
