// Package scheduler drives periodic per-symbol GEX recomputation, gated on
// regular trading hours.
package scheduler

import (
	"context"
	"log"
	"time"

	"jax-options-gex/libs/gex"
	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
	"jax-options-gex/services/gex-scheduler/internal/config"
)

// marketClosedSleep is how long the scheduler sleeps between checks while
// the market is closed, rather than busy-polling at interval_seconds.
const marketClosedSleep = 5 * time.Minute

// Scheduler computes and persists one GEX snapshot per configured symbol on
// each cycle the market is open.
type Scheduler struct {
	store   *store.Store
	cfg     *config.Config
	metrics *observability.GEXMetrics

	cycles       int64
	successes    int64
	skipped      int64
	failures     int64
}

// New builds a Scheduler. metrics may be nil.
func New(st *store.Store, cfg *config.Config, metrics *observability.GEXMetrics) *Scheduler {
	return &Scheduler{store: st, cfg: cfg, metrics: metrics}
}

// Run blocks until ctx is cancelled, recomputing GEX for every configured
// symbol on each open-market cycle and sleeping interval_seconds in between
// (or marketClosedSleep while the market is closed).
func (s *Scheduler) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		now := time.Now()
		if !marketOpen(now) {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(marketClosedSleep):
			}
			continue
		}

		s.runCycle(ctx, now)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(s.cfg.IntervalSeconds) * time.Second):
		}
	}
}

func (s *Scheduler) runCycle(ctx context.Context, now time.Time) {
	expiration := resolveTargetExpiration(s.cfg.TargetExpiration, now)
	s.cycles++

	for _, symbol := range s.cfg.Symbols {
		start := time.Now()
		snap, err := gex.Calculate(ctx, s.store, symbol, expiration, nil, now.UTC())
		elapsed := time.Since(start)

		switch {
		case err == gex.ErrNoData:
			s.skipped++
			continue
		case err != nil:
			s.failures++
			log.Printf("gex-scheduler[%s]: compute failed: %v", symbol, err)
			continue
		}

		row := store.GEXSnapshotRow{
			ObservedAt: snap.ObservedAt, Symbol: snap.Symbol, Expiration: snap.Expiration,
			UnderlyingPrice: snap.UnderlyingPrice, TotalGammaExposure: snap.TotalGammaExposure,
			CallGamma: snap.CallGamma, PutGamma: snap.PutGamma, NetGEX: snap.NetGEX,
			MaxGammaStrike: snap.MaxGammaStrike, MaxGammaValue: snap.MaxGammaValue,
			GammaFlipPoint: snap.GammaFlipPoint, MaxPain: snap.MaxPain, PutCallRatio: snap.PutCallRatio,
			VannaExposure: snap.VannaExposure, CharmExposure: snap.CharmExposure,
			CallVolume: snap.CallVolume, PutVolume: snap.PutVolume,
			CallOI: snap.CallOI, PutOI: snap.PutOI, TotalContracts: snap.TotalContracts,
		}

		if err := s.store.UpsertGEX(ctx, row); err != nil {
			s.failures++
			log.Printf("gex-scheduler[%s]: snapshot write failed: %v", symbol, err)
			continue
		}

		s.successes++
		observability.RecordGEXCompute(ctx, symbol, expiration, elapsed, nil)
		if s.metrics != nil {
			s.metrics.GEXComputeLatency.ObserveDuration(elapsed, "symbol", symbol)
			s.metrics.NetGEX.Set(snap.NetGEX, "symbol", symbol, "expiration", expiration)
		}
	}

	if s.cycles%int64(s.cfg.StatsEveryNCycles) == 0 {
		log.Printf("gex-scheduler: stats cycles=%d successes=%d skipped=%d failures=%d",
			s.cycles, s.successes, s.skipped, s.failures)
	}
}
