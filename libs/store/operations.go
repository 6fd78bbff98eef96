package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"jax-options-gex/libs/gex"
)

const (
	upsertOptionQuery = `
		INSERT INTO options_quotes
			(observed_at, root_symbol, strike, expiration, option_type, dte,
			 bid, ask, mid, last, spread_pct, volume, open_interest, implied_vol,
			 delta, gamma, theta, vega, rho, is_calculated, underlying_price)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21)
		ON CONFLICT (observed_at, root_symbol, strike, expiration, option_type) DO UPDATE SET
			bid = EXCLUDED.bid, ask = EXCLUDED.ask, mid = EXCLUDED.mid, last = EXCLUDED.last,
			spread_pct = EXCLUDED.spread_pct, volume = EXCLUDED.volume,
			open_interest = EXCLUDED.open_interest, implied_vol = EXCLUDED.implied_vol,
			delta = EXCLUDED.delta, gamma = EXCLUDED.gamma, theta = EXCLUDED.theta,
			vega = EXCLUDED.vega, rho = EXCLUDED.rho, is_calculated = EXCLUDED.is_calculated,
			underlying_price = EXCLUDED.underlying_price
	`

	upsertUnderlyingQuery = `
		INSERT INTO underlying_quotes
			(observed_at, symbol, open, close, high, low, total_volume, up_volume, down_volume)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (observed_at, symbol) DO UPDATE SET
			open = EXCLUDED.open, close = EXCLUDED.close, high = EXCLUDED.high, low = EXCLUDED.low,
			total_volume = EXCLUDED.total_volume, up_volume = EXCLUDED.up_volume,
			down_volume = EXCLUDED.down_volume
	`

	upsertFlowQuery = `
		INSERT INTO option_flow_metrics
			(bucket_start, bucket_end, symbol, option_type,
			 total_volume, sweep_volume, block_volume,
			 oi_change, starting_oi, ending_oi,
			 total_premium, avg_premium, vwap_premium,
			 total_notional, avg_underlying_price,
			 delta_weighted_volume, net_delta_exposure, gamma_weighted_volume,
			 buy_volume, sell_volume, net_flow,
			 atm_volume, otm_volume, itm_volume,
			 avg_trade_size, max_trade_size, trade_count, unique_strikes)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26,$27,$28)
		ON CONFLICT (bucket_start, symbol, option_type) DO UPDATE SET
			total_volume = EXCLUDED.total_volume, sweep_volume = EXCLUDED.sweep_volume,
			block_volume = EXCLUDED.block_volume, oi_change = EXCLUDED.oi_change,
			starting_oi = EXCLUDED.starting_oi, ending_oi = EXCLUDED.ending_oi,
			total_premium = EXCLUDED.total_premium, avg_premium = EXCLUDED.avg_premium,
			vwap_premium = EXCLUDED.vwap_premium, total_notional = EXCLUDED.total_notional,
			avg_underlying_price = EXCLUDED.avg_underlying_price,
			delta_weighted_volume = EXCLUDED.delta_weighted_volume,
			net_delta_exposure = EXCLUDED.net_delta_exposure,
			gamma_weighted_volume = EXCLUDED.gamma_weighted_volume,
			buy_volume = EXCLUDED.buy_volume, sell_volume = EXCLUDED.sell_volume,
			net_flow = EXCLUDED.net_flow, atm_volume = EXCLUDED.atm_volume,
			otm_volume = EXCLUDED.otm_volume, itm_volume = EXCLUDED.itm_volume,
			avg_trade_size = EXCLUDED.avg_trade_size, max_trade_size = EXCLUDED.max_trade_size,
			trade_count = EXCLUDED.trade_count, unique_strikes = EXCLUDED.unique_strikes
	`

	upsertGEXQuery = `
		INSERT INTO gex_metrics
			(observed_at, symbol, expiration, underlying_price, total_gamma_exposure,
			 call_gamma, put_gamma, net_gex, max_gamma_strike, max_gamma_value,
			 gamma_flip_point, max_pain, put_call_ratio, vanna_exposure, charm_exposure,
			 call_volume, put_volume, call_oi, put_oi, total_contracts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)
		ON CONFLICT (observed_at, symbol, expiration) DO UPDATE SET
			underlying_price = EXCLUDED.underlying_price,
			total_gamma_exposure = EXCLUDED.total_gamma_exposure,
			call_gamma = EXCLUDED.call_gamma, put_gamma = EXCLUDED.put_gamma,
			net_gex = EXCLUDED.net_gex, max_gamma_strike = EXCLUDED.max_gamma_strike,
			max_gamma_value = EXCLUDED.max_gamma_value, gamma_flip_point = EXCLUDED.gamma_flip_point,
			max_pain = EXCLUDED.max_pain, put_call_ratio = EXCLUDED.put_call_ratio,
			vanna_exposure = EXCLUDED.vanna_exposure, charm_exposure = EXCLUDED.charm_exposure,
			call_volume = EXCLUDED.call_volume, put_volume = EXCLUDED.put_volume,
			call_oi = EXCLUDED.call_oi, put_oi = EXCLUDED.put_oi,
			total_contracts = EXCLUDED.total_contracts
	`

	insertIngestionMetricQuery = `
		INSERT INTO ingestion_metrics
			(observed_at, symbol, received, stored, errors, heartbeats, last_heartbeat, uptime_ms)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`

	insertUptimeProbeQuery = `
		INSERT INTO service_uptime_checks (observed_at, service_name, is_up)
		VALUES ($1,$2,$3)
	`

	readLatestOptionsQuery = `
		SELECT DISTINCT ON (strike, option_type)
			strike, option_type, gamma, delta, vega, open_interest, volume, observed_at
		FROM options_quotes
		WHERE root_symbol = $1 AND expiration = $2 AND gamma > 0 AND observed_at >= $3
		ORDER BY strike, option_type, observed_at DESC
	`

	readLatestUnderlyingQuery = `
		SELECT close FROM underlying_quotes
		WHERE symbol = $1
		ORDER BY observed_at DESC
		LIMIT 1
	`
)

// UpsertOptions bulk-upserts a batch of option quotes within a single
// transaction; any failure rolls back the whole batch per spec §4.H.
func (s *Store) UpsertOptions(ctx context.Context, batch []OptionQuoteRow) error {
	if len(batch) == 0 {
		return ErrEmptyBatch
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertOptionQuery)
		if err != nil {
			return fmt.Errorf("prepare option upsert: %w", err)
		}
		defer stmt.Close()

		for _, q := range batch {
			if _, err := stmt.ExecContext(ctx,
				q.ObservedAt, q.RootSymbol, q.Strike, q.Expiration, q.OptionType, q.DTE,
				q.Bid, q.Ask, q.Mid, q.Last, q.SpreadPct, q.Volume, q.OpenInterest, q.ImpliedVol,
				q.Delta, q.Gamma, q.Theta, q.Vega, q.Rho, q.IsCalculated, q.UnderlyingPrice,
			); err != nil {
				return fmt.Errorf("upsert option %s %v %s: %w", q.RootSymbol, q.Strike, q.OptionType, err)
			}
		}
		return nil
	})
}

// UpsertUnderlying upserts a single underlying OHLC bar.
func (s *Store) UpsertUnderlying(ctx context.Context, row UnderlyingQuoteRow) error {
	_, err := s.db.ExecContext(ctx, upsertUnderlyingQuery,
		row.ObservedAt, row.Symbol, row.Open, row.Close, row.High, row.Low,
		row.TotalVolume, row.UpVolume, row.DownVolume)
	if err != nil {
		return fmt.Errorf("upsert underlying %s: %w", row.Symbol, err)
	}
	return nil
}

// UpsertFlow bulk-upserts completed flow buckets within a single transaction.
func (s *Store) UpsertFlow(ctx context.Context, rows []FlowRow) error {
	if len(rows) == 0 {
		return ErrEmptyBatch
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, upsertFlowQuery)
		if err != nil {
			return fmt.Errorf("prepare flow upsert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rows {
			if _, err := stmt.ExecContext(ctx,
				r.BucketStart, r.BucketEnd, r.Symbol, r.OptionType,
				r.TotalVolume, r.SweepVolume, r.BlockVolume,
				r.OIChange, r.StartingOI, r.EndingOI,
				r.TotalPremium, r.AvgPremium, r.VWAPPremium,
				r.TotalNotional, r.AvgUnderlyingPrice,
				r.DeltaWeightedVolume, r.NetDeltaExposure, r.GammaWeightedVolume,
				r.BuyVolume, r.SellVolume, r.NetFlow,
				r.ATMVolume, r.OTMVolume, r.ITMVolume,
				r.AvgTradeSize, r.MaxTradeSize, r.TradeCount, r.UniqueStrikes,
			); err != nil {
				return fmt.Errorf("upsert flow bucket %s %s %v: %w", r.Symbol, r.OptionType, r.BucketStart, err)
			}
		}
		return nil
	})
}

// UpsertGEX upserts one GEX snapshot.
func (s *Store) UpsertGEX(ctx context.Context, snap GEXSnapshotRow) error {
	_, err := s.db.ExecContext(ctx, upsertGEXQuery,
		snap.ObservedAt, snap.Symbol, snap.Expiration, snap.UnderlyingPrice, snap.TotalGammaExposure,
		snap.CallGamma, snap.PutGamma, snap.NetGEX, snap.MaxGammaStrike, snap.MaxGammaValue,
		snap.GammaFlipPoint, snap.MaxPain, snap.PutCallRatio, snap.VannaExposure, snap.CharmExposure,
		snap.CallVolume, snap.PutVolume, snap.CallOI, snap.PutOI, snap.TotalContracts)
	if err != nil {
		return fmt.Errorf("upsert gex snapshot %s %s: %w", snap.Symbol, snap.Expiration, err)
	}
	return nil
}

// InsertIngestionMetric appends one periodic ingestion-metric row.
func (s *Store) InsertIngestionMetric(ctx context.Context, row IngestionMetricRow) error {
	_, err := s.db.ExecContext(ctx, insertIngestionMetricQuery,
		row.ObservedAt, row.Symbol, row.Received, row.Stored, row.Errors,
		row.Heartbeats, row.LastHeartbeat, row.UptimeMs)
	if err != nil {
		return fmt.Errorf("insert ingestion metric %s: %w", row.Symbol, err)
	}
	return nil
}

// InsertUptimeProbe appends one liveness sample.
func (s *Store) InsertUptimeProbe(ctx context.Context, row UptimeProbeRow) error {
	_, err := s.db.ExecContext(ctx, insertUptimeProbeQuery, row.ObservedAt, row.ServiceName, row.IsUp)
	if err != nil {
		return fmt.Errorf("insert uptime probe %s: %w", row.ServiceName, err)
	}
	return nil
}

// ReadLatestOptions returns the most recent row per (strike, option_type)
// for symbol/expiration whose gamma is positive and whose observed_at falls
// within the recency window ending now. It satisfies gex.Reader.
func (s *Store) ReadLatestOptions(ctx context.Context, symbol, expiration string, recency time.Duration) ([]gex.OptionRow, error) {
	cutoff := time.Now().UTC().Add(-recency)
	rows, err := s.db.QueryContext(ctx, readLatestOptionsQuery, symbol, expiration, cutoff)
	if err != nil {
		return nil, fmt.Errorf("read latest options %s %s: %w", symbol, expiration, err)
	}
	defer rows.Close()

	var out []gex.OptionRow
	for rows.Next() {
		var r gex.OptionRow
		if err := rows.Scan(&r.Strike, &r.OptionType, &r.Gamma, &r.Delta, &r.Vega, &r.OpenInterest, &r.Volume, &r.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan option row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReadLatestUnderlying returns the most recent close price for symbol, for
// use as the GEX calculator's spot override. If no underlying bar has been
// ingested yet (routine before the poller's first tick), it returns
// gex.ErrNoData so callers skip the symbol for this cycle instead of treating
// it as a failure.
func (s *Store) ReadLatestUnderlying(ctx context.Context, symbol string) (float64, error) {
	var close float64
	err := s.db.QueryRowContext(ctx, readLatestUnderlyingQuery, symbol).Scan(&close)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, gex.ErrNoData
	}
	if err != nil {
		return 0, fmt.Errorf("read latest underlying %s: %w", symbol, err)
	}
	return close, nil
}

// withTx runs fn within a transaction, committing on success and rolling
// back on any error (including a panic, which it re-raises after rollback).
func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
