package engine

import (
	"context"
	"log"
	"time"

	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
)

// runUnderlyingPoller refreshes each symbol's OHLC bar and spot-price cache
// entry on a fixed interval.
func (e *Engine) runUnderlyingPoller(ctx context.Context) {
	interval := time.Duration(e.cfg.Ingestion.UnderlyingUpdateInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	e.pollAllUnderlyings(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.pollAllUnderlyings(ctx)
		}
	}
}

func (e *Engine) pollAllUnderlyings(ctx context.Context) {
	for _, symbol := range e.cfg.Symbols {
		bars, err := e.client.GetBars(ctx, symbol)
		if err != nil {
			log.Printf("gex-ingest[%s]: underlying poll failed: %v", symbol, err)
			continue
		}
		if len(bars) == 0 {
			continue
		}
		bar := bars[0]

		row := store.UnderlyingQuoteRow{
			ObservedAt:  bar.TimeStamp,
			Symbol:      symbol,
			Open:        bar.Open,
			Close:       bar.Close,
			High:        bar.High,
			Low:         bar.Low,
			TotalVolume: bar.TotalVolume,
			UpVolume:    bar.UpVolume,
			DownVolume:  bar.DownVolume,
		}
		if err := e.store.UpsertUnderlying(ctx, row); err != nil {
			log.Printf("gex-ingest[%s]: underlying upsert failed: %v", symbol, err)
			continue
		}

		if err := e.spotCache.SetSpot(ctx, symbol, bar.Close); err != nil {
			log.Printf("gex-ingest[%s]: spot cache update failed: %v", symbol, err)
		}
	}
}

// runHeartbeatSupervisor checks every 30s whether any symbol has gone
// silent past heartbeat_timeout_s and, if so, cancels its stream so the
// owning stream-manager transitions to Reconnecting.
func (e *Engine) runHeartbeatSupervisor(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	timeout := time.Duration(e.cfg.Ingestion.HeartbeatTimeout) * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for symbol, state := range e.states {
				if state.idleFor() > timeout {
					log.Printf("gex-ingest[%s]: no activity for %s, forcing reconnect", symbol, state.idleFor())
					observability.RecordStreamReconnect(ctx, symbol, 0, nil)
					if e.metrics != nil {
						e.metrics.StreamReconnects.Inc("symbol", symbol)
					}
					state.cancel()
				}
			}
		}
	}
}

// runMetricsLogger writes one IngestionMetric row per symbol on a fixed
// interval, summarizing cumulative counters.
func (e *Engine) runMetricsLogger(ctx context.Context) {
	interval := time.Duration(e.cfg.Ingestion.MetricsInterval) * time.Second
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.writeAllMetrics(ctx)
		}
	}
}

func (e *Engine) writeAllMetrics(ctx context.Context) {
	for symbol, state := range e.states {
		received, stored, errs, heartbeats, lastHeartbeat, uptime := state.snapshot()
		row := store.IngestionMetricRow{
			ObservedAt:    time.Now().UTC(),
			Symbol:        symbol,
			Received:      received,
			Stored:        stored,
			Errors:        errs,
			Heartbeats:    heartbeats,
			LastHeartbeat: lastHeartbeat,
			UptimeMs:      uptime.Milliseconds(),
		}
		if err := e.store.InsertIngestionMetric(ctx, row); err != nil {
			log.Printf("gex-ingest[%s]: metrics write failed: %v", symbol, err)
		}
	}
}

// runFlowFlushLoop drains completed flow buckets on a fixed cadence (the
// flow window itself is 5 minutes; this checks more often so a bucket is
// flushed shortly after it closes).
func (e *Engine) runFlowFlushLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.flushDueBuckets(ctx)
		}
	}
}

func (e *Engine) flushDueBuckets(ctx context.Context) {
	start := time.Now()
	rows := e.flowAgg.FlushDue(time.Now())
	var err error
	if len(rows) > 0 {
		err = e.store.UpsertFlow(ctx, toFlowRows(rows))
		if err != nil {
			log.Printf("gex-ingest: flow flush failed for %d buckets: %v", len(rows), err)
		}
	}
	observability.RecordFlowFlush(ctx, len(rows), time.Since(start), err)
	if e.metrics != nil {
		e.metrics.FlowBucketsFlushed.Set(float64(len(rows)))
	}
}
