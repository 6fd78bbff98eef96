// Package engine owns the long-running ingestion loop: per-symbol stream
// managers, the underlying poller, the heartbeat supervisor, the metrics
// logger, and the flow-bucket flush loop.
package engine

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jax-options-gex/libs/flow"
	"jax-options-gex/libs/greeks"
	"jax-options-gex/libs/observability"
	"jax-options-gex/libs/store"
	"jax-options-gex/libs/tsclient"
	"jax-options-gex/services/gex-ingest/internal/config"
)

// Engine wires the upstream client, Greeks calculator, flow aggregator, and
// persistence adapter into the running ingestion pipeline.
type Engine struct {
	client     *tsclient.Client
	greeksCalc *greeks.Calculator
	flowAgg    *flow.Aggregator
	store      *store.Store
	spotCache  *tsclient.SpotCache
	cfg        *config.Config
	metrics    *observability.GEXMetrics

	mu     sync.Mutex
	states map[string]*symbolState
}

// New builds an Engine from its fully-constructed dependencies. metrics may
// be nil, in which case Prometheus counters are simply not updated.
func New(client *tsclient.Client, greeksCalc *greeks.Calculator, flowAgg *flow.Aggregator, st *store.Store, spotCache *tsclient.SpotCache, cfg *config.Config, metrics *observability.GEXMetrics) *Engine {
	return &Engine{
		client:     client,
		greeksCalc: greeksCalc,
		flowAgg:    flowAgg,
		store:      st,
		spotCache:  spotCache,
		cfg:        cfg,
		metrics:    metrics,
		states:     make(map[string]*symbolState),
	}
}

// Run spawns every background task and blocks until ctx is cancelled; each
// task handles its own errors and returns nil, so Run returns nil. On return
// it performs a best-effort final flush.
func (e *Engine) Run(ctx context.Context) error {
	targetExpiration := resolveTargetExpiration(e.cfg.Ingestion.TargetExpiration, time.Now())
	log.Printf("gex-ingest: target expiration resolved to %s", targetExpiration)

	for _, symbol := range e.cfg.Symbols {
		e.states[symbol] = newSymbolState()
	}

	g, gctx := errgroup.WithContext(ctx)

	for _, symbol := range e.cfg.Symbols {
		symbol := symbol
		g.Go(func() error {
			e.runStreamManager(gctx, symbol, targetExpiration)
			return nil
		})
	}

	g.Go(func() error {
		e.runUnderlyingPoller(gctx)
		return nil
	})
	g.Go(func() error {
		e.runHeartbeatSupervisor(gctx)
		return nil
	})
	g.Go(func() error {
		e.runMetricsLogger(gctx)
		return nil
	})
	g.Go(func() error {
		e.runFlowFlushLoop(gctx)
		return nil
	})

	err := g.Wait()

	e.shutdown(context.Background())
	return err
}

// shutdown forces a final flow flush and metrics write; batch buffers are
// flushed by their owning stream managers as they unwind.
func (e *Engine) shutdown(ctx context.Context) {
	rows := e.flowAgg.FlushAll()
	if len(rows) > 0 {
		if err := e.store.UpsertFlow(ctx, toFlowRows(rows)); err != nil {
			log.Printf("gex-ingest: final flow flush failed: %v", err)
		}
	}
	e.writeAllMetrics(ctx)
	log.Printf("gex-ingest: shutdown complete")
}

func toFlowRows(rows []flow.Row) []store.FlowRow {
	out := make([]store.FlowRow, len(rows))
	for i, r := range rows {
		out[i] = store.FlowRow{
			BucketStart: r.BucketStart, BucketEnd: r.BucketEnd,
			Symbol: r.Symbol, OptionType: r.OptionType,
			TotalVolume: r.TotalVolume, SweepVolume: r.SweepVolume, BlockVolume: r.BlockVolume,
			OIChange: r.OIChange, StartingOI: r.StartingOI, EndingOI: r.EndingOI,
			TotalPremium: r.TotalPremium.InexactFloat64(), AvgPremium: r.AvgPremium.InexactFloat64(), VWAPPremium: r.VWAPPremium.InexactFloat64(),
			TotalNotional: r.TotalNotional.InexactFloat64(), AvgUnderlyingPrice: r.AvgUnderlyingPrice.InexactFloat64(),
			DeltaWeightedVolume: r.DeltaWeightedVolume.InexactFloat64(), NetDeltaExposure: r.NetDeltaExposure.InexactFloat64(),
			GammaWeightedVolume: r.GammaWeightedVolume.InexactFloat64(),
			BuyVolume:           r.BuyVolume, SellVolume: r.SellVolume, NetFlow: r.NetFlow,
			ATMVolume: r.ATMVolume, OTMVolume: r.OTMVolume, ITMVolume: r.ITMVolume,
			AvgTradeSize: r.AvgTradeSize.InexactFloat64(), MaxTradeSize: r.MaxTradeSize,
			TradeCount: r.TradeCount, UniqueStrikes: r.UniqueStrikes,
		}
	}
	return out
}

// symbolState tracks per-symbol liveness and cumulative counters, plus the
// cancel function the heartbeat supervisor uses to force a reconnect.
type symbolState struct {
	mu            sync.Mutex
	lastActivity  time.Time
	cancelStream  context.CancelFunc
	startedAt     time.Time
	received      int64
	stored        int64
	errors        int64
	heartbeats    int64
	lastHeartbeat time.Time
}

func newSymbolState() *symbolState {
	return &symbolState{lastActivity: time.Now(), startedAt: time.Now()}
}

func (s *symbolState) touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *symbolState) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

func (s *symbolState) setCancel(cancel context.CancelFunc) {
	s.mu.Lock()
	s.cancelStream = cancel
	s.mu.Unlock()
}

func (s *symbolState) cancel() {
	s.mu.Lock()
	c := s.cancelStream
	s.mu.Unlock()
	if c != nil {
		c()
	}
}

func (s *symbolState) recordHeartbeat() {
	s.mu.Lock()
	s.heartbeats++
	s.lastHeartbeat = time.Now()
	s.lastActivity = s.lastHeartbeat
	s.mu.Unlock()
}

func (s *symbolState) recordReceived() {
	s.mu.Lock()
	s.received++
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

func (s *symbolState) recordStored(n int64) {
	s.mu.Lock()
	s.stored += n
	s.mu.Unlock()
}

func (s *symbolState) recordError() {
	s.mu.Lock()
	s.errors++
	s.mu.Unlock()
}

func (s *symbolState) snapshot() (received, stored, errs, heartbeats int64, lastHeartbeat time.Time, uptime time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.stored, s.errors, s.heartbeats, s.lastHeartbeat, time.Since(s.startedAt)
}
