package engine

import (
	"context"
	"log"
	"math"
	"sync"
	"time"

	"jax-options-gex/libs/flow"
	"jax-options-gex/libs/greeks"
	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
	"jax-options-gex/libs/tsclient"
)

const greeksMismatchThreshold = 0.05

// runStreamManager owns the Starting -> Running -> Reconnecting loop for a
// single symbol. It never returns except when ctx is cancelled.
func (e *Engine) runStreamManager(ctx context.Context, symbol, expiration string) {
	state := e.states[symbol]

	for {
		if ctx.Err() != nil {
			return
		}

		streamCtx, cancel := context.WithCancel(ctx)
		state.setCancel(cancel)

		log.Printf("gex-ingest[%s]: starting stream (expiration=%s)", symbol, expiration)
		err := e.consumeStream(streamCtx, symbol, expiration, state)
		cancel()

		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("gex-ingest[%s]: stream ended with error: %v", symbol, err)
			state.recordError()
		}

		log.Printf("gex-ingest[%s]: reconnecting in %ds", symbol, e.cfg.Ingestion.ReconnectDelay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(e.cfg.Ingestion.ReconnectDelay) * time.Second):
		}
	}
}

// consumeStream opens one stream connection and processes frames until it
// ends; it owns the in-memory batch buffer for this connection's lifetime.
func (e *Engine) consumeStream(ctx context.Context, symbol, expiration string, state *symbolState) error {
	var batchMu sync.Mutex
	batch := make([]store.OptionQuoteRow, 0, e.cfg.Ingestion.BatchSize)

	flush := func() {
		batchMu.Lock()
		toFlush := batch
		batch = make([]store.OptionQuoteRow, 0, e.cfg.Ingestion.BatchSize)
		batchMu.Unlock()

		if len(toFlush) == 0 {
			return
		}
		start := time.Now()
		// WithoutCancel lets the deferred flush still write after the
		// stream context has been cancelled.
		err := e.store.UpsertOptions(context.WithoutCancel(ctx), toFlush)
		elapsed := time.Since(start)
		observability.RecordIngestion(ctx, symbol, elapsed, err)
		if e.metrics != nil {
			e.metrics.IngestLatency.ObserveDuration(elapsed, "symbol", symbol)
		}
		if err != nil {
			log.Printf("gex-ingest[%s]: batch write failed, dropping %d quotes: %v", symbol, len(toFlush), err)
			state.recordError()
			return
		}
		state.recordStored(int64(len(toFlush)))
	}
	defer flush()

	sink := func(frame tsclient.StreamFrame) {
		if frame.DropErr != nil {
			state.recordError()
			return
		}
		if frame.Heartbeat != nil {
			state.recordHeartbeat()
			return
		}
		if frame.Quote == nil {
			return
		}

		state.recordReceived()
		if e.metrics != nil {
			e.metrics.UpdatesHandled.Inc("symbol", symbol)
		}
		rows := e.parseQuoteFrame(symbol, expiration, *frame.Quote)
		if len(rows) == 0 {
			return
		}

		batchMu.Lock()
		batch = append(batch, rows...)
		full := len(batch) >= e.cfg.Ingestion.BatchSize
		batchMu.Unlock()

		if full {
			flush()
		}
	}

	var proximity *int
	if e.cfg.Ingestion.StrikeProximity != nil {
		proximity = e.cfg.Ingestion.StrikeProximity
	}
	return e.client.StreamOptionsChain(ctx, symbol, expiration, proximity, sink)
}

// parseQuoteFrame turns one vendor quote frame into zero or more persisted
// rows (one per leg) and forwards each to the flow aggregator.
func (e *Engine) parseQuoteFrame(symbol, expiration string, q tsclient.QuoteFrame) []store.OptionQuoteRow {
	now := time.Now().UTC()
	spot, _ := e.spotCache.GetSpot(context.Background(), symbol)

	rows := make([]store.OptionQuoteRow, 0, len(q.Legs))
	for _, leg := range q.Legs {
		if leg.Symbol == "" || leg.StrikePrice == 0 || leg.OptionType == "" {
			continue
		}

		optionType := "call"
		if leg.OptionType == "Put" {
			optionType = "put"
		}

		expTime, err := time.Parse("2006-01-02", expiration)
		if err != nil {
			continue
		}
		dte := int(math.Ceil(expTime.Sub(now).Hours() / 24))

		row := store.OptionQuoteRow{
			ObservedAt:      now,
			RootSymbol:      symbol,
			Strike:          leg.StrikePrice,
			Expiration:      expTime,
			OptionType:      optionType,
			DTE:             dte,
			Bid:             q.Bid,
			Ask:             q.Ask,
			Mid:             q.Mid,
			Last:            q.Last,
			Volume:          q.Volume,
			OpenInterest:    q.DailyOpenInterest,
			ImpliedVol:      q.ImpliedVolatility,
			UnderlyingPrice: spot,
		}
		row.SpreadPct = spreadPct(q.Bid, q.Ask, q.Mid)

		if spot > 0 && q.ImpliedVolatility > 0 {
			g := e.greeksCalc.Calculate(greeks.Params{
				Spot:       spot,
				Strike:     leg.StrikePrice,
				Expiration: greeks.ExpirationInstant(expTime, easternLocation),
				OptionType: greeks.OptionType(optionType),
				ImpliedVol: q.ImpliedVolatility,
				Now:        now,
			})
			row.Delta, row.Gamma, row.Theta, row.Vega, row.Rho = g.Delta, g.Gamma, g.Theta, g.Vega, g.Rho
			row.IsCalculated = true

			if e.cfg.Greeks.ValidateGreeks {
				e.validateGreeks(symbol, g, q)
			}
		} else {
			row.Delta, row.Gamma, row.Theta, row.Vega, row.Rho = q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho
			row.IsCalculated = false
		}

		rows = append(rows, row)

		e.flowAgg.AddQuote(flow.Quote{
			Symbol:          symbol,
			OptionType:      optionType,
			Strike:          leg.StrikePrice,
			Timestamp:       now,
			Volume:          q.Volume,
			Mid:             q.Mid,
			Bid:             q.Bid,
			Ask:             q.Ask,
			Last:            q.Last,
			UnderlyingPrice: spot,
			Delta:           row.Delta,
			Gamma:           row.Gamma,
			OpenInterest:    q.DailyOpenInterest,
		})
	}
	return rows
}

// greeksTolerance is the per-field relative-mismatch tolerance the engine
// cross-checks vendor-supplied Greeks against when validate_greeks is set.
var greeksTolerance = map[string]float64{
	"delta": 0.10,
	"gamma": 0.25,
	"theta": 0.20,
	"vega":  0.25,
}

// deepOTMDelta skips delta cross-validation on deep out-of-the-money
// contracts, where small absolute differences produce huge relative ones.
const deepOTMDelta = 0.05

// validateGreeks cross-checks vendor Greeks against the freshly calculated
// ones field by field and records a mismatch only when at least two fields
// disagree beyond their tolerance — a single noisy field isn't worth
// surfacing, but two together usually mean the vendor is using stale IV.
func (e *Engine) validateGreeks(symbol string, calculated greeks.Greeks, vendor tsclient.QuoteFrame) {
	fields := []struct {
		name       string
		vendor     float64
		calculated float64
	}{
		{"delta", vendor.Delta, calculated.Delta},
		{"gamma", vendor.Gamma, calculated.Gamma},
		{"theta", vendor.Theta, calculated.Theta},
		{"vega", vendor.Vega, calculated.Vega},
	}

	disagreements := 0
	for _, f := range fields {
		if f.vendor == 0 {
			continue
		}
		if f.name == "delta" && math.Abs(f.calculated) < deepOTMDelta {
			continue
		}
		if relativeDiff(f.vendor, f.calculated) > greeksTolerance[f.name] {
			disagreements++
		}
	}

	if disagreements >= 2 {
		observability.RecordGreeksMismatch(context.Background(), symbol, "multi-field", vendor.Delta, calculated.Delta)
		if e.metrics != nil {
			e.metrics.GreeksMismatches.Inc("field", "multi-field")
		}
	}
}

func relativeDiff(vendor, calculated float64) float64 {
	denom := math.Abs(vendor)
	if denom < greeksMismatchThreshold {
		denom = greeksMismatchThreshold
	}
	return math.Abs(vendor-calculated) / denom
}

const spreadPctEpsilon = 0.01

// spreadPct computes (ask-bid)/max(mid,ε) per spec §4.3 when both sides of
// the market are quoted; nil otherwise. mid falls back to (bid+ask)/2 when
// the vendor didn't supply one.
func spreadPct(bid, ask, mid float64) *float64 {
	if bid <= 0 || ask <= 0 {
		return nil
	}
	if mid <= 0 {
		mid = (bid + ask) / 2
	}
	if mid < spreadPctEpsilon {
		mid = spreadPctEpsilon
	}
	v := (ask - bid) / mid
	return &v
}
