package gex

import (
	"context"
	"errors"
	"sort"
	"time"
)

// DefaultRecencyWindow is the lookback used when the caller does not supply
// one: rows whose last_updated is older than this are excluded.
const DefaultRecencyWindow = 4 * time.Hour

// ErrNoData is returned when no rows with gamma > 0 exist for the requested
// symbol/expiration within the recency window; the caller should skip this
// symbol for the cycle, not treat it as fatal.
var ErrNoData = errors.New("gex: no option rows available for snapshot")

// Calculate builds a GEX snapshot for symbol/expiration as of now, reading
// the latest quote per (strike, option_type) from reader. priceOverride, if
// non-nil, is used as spot instead of the latest underlying close.
func Calculate(ctx context.Context, reader Reader, symbol, expiration string, priceOverride *float64, now time.Time) (*Snapshot, error) {
	rows, err := reader.ReadLatestOptions(ctx, symbol, expiration, DefaultRecencyWindow)
	if err != nil {
		return nil, err
	}
	rows = filterPositiveGamma(rows)
	if len(rows) == 0 {
		return nil, ErrNoData
	}

	spot, err := resolveSpot(ctx, reader, symbol, priceOverride)
	if err != nil {
		return nil, err
	}

	profiles := buildProfiles(rows, spot)

	snap := &Snapshot{
		ObservedAt:      now,
		Symbol:          symbol,
		Expiration:      expiration,
		UnderlyingPrice: spot,
	}

	strikes := sortedStrikes(profiles)
	for _, strike := range strikes {
		p := profiles[strike]
		snap.CallGamma += p.CallGamma
		snap.PutGamma += p.PutGamma
		snap.CallOI += p.CallOI
		snap.PutOI += p.PutOI
		snap.CallVolume += p.CallVolume
		snap.PutVolume += p.PutVolume

		if p.TotalGamma() > snap.MaxGammaValue {
			snap.MaxGammaValue = p.TotalGamma()
			snap.MaxGammaStrike = strike
		}
	}
	snap.TotalGammaExposure = snap.CallGamma + snap.PutGamma
	snap.NetGEX = snap.CallGamma - snap.PutGamma
	snap.TotalContracts = snap.CallVolume + snap.PutVolume

	if snap.CallOI > 0 {
		snap.PutCallRatio = float64(snap.PutOI) / float64(snap.CallOI)
	}

	snap.GammaFlipPoint = findGammaFlip(profiles, strikes)
	snap.MaxPain = findMaxPain(profiles, strikes)

	vanna, charm := accumulateVannaCharm(rows)
	snap.VannaExposure = vanna
	snap.CharmExposure = charm

	return snap, nil
}

func filterPositiveGamma(rows []OptionRow) []OptionRow {
	out := rows[:0:0]
	for _, r := range rows {
		if r.Gamma > 0 {
			out = append(out, r)
		}
	}
	return out
}

func resolveSpot(ctx context.Context, reader Reader, symbol string, priceOverride *float64) (float64, error) {
	if priceOverride != nil {
		return *priceOverride, nil
	}
	return reader.ReadLatestUnderlying(ctx, symbol)
}

// buildProfiles aggregates gamma exposure, OI, and volume per strike.
// gamma_exposure = gamma * open_interest * 100 * spot, per contract.
func buildProfiles(rows []OptionRow, spot float64) map[float64]*StrikeGammaProfile {
	profiles := make(map[float64]*StrikeGammaProfile)
	for _, r := range rows {
		p, ok := profiles[r.Strike]
		if !ok {
			p = &StrikeGammaProfile{Strike: r.Strike}
			profiles[r.Strike] = p
		}

		exposure := r.Gamma * float64(r.OpenInterest) * contractMultiplier * spot
		if r.OptionType == "put" {
			p.PutGamma += exposure
			p.PutOI += r.OpenInterest
			p.PutVolume += r.Volume
		} else {
			p.CallGamma += exposure
			p.CallOI += r.OpenInterest
			p.CallVolume += r.Volume
		}
	}
	return profiles
}

func sortedStrikes(profiles map[float64]*StrikeGammaProfile) []float64 {
	strikes := make([]float64, 0, len(profiles))
	for k := range profiles {
		strikes = append(strikes, k)
	}
	sort.Float64s(strikes)
	return strikes
}

// findGammaFlip walks ascending strikes for the first adjacent sign change
// in net gamma and linearly interpolates the zero crossing.
func findGammaFlip(profiles map[float64]*StrikeGammaProfile, strikes []float64) *float64 {
	for i := 0; i < len(strikes)-1; i++ {
		a := profiles[strikes[i]].NetGamma()
		b := profiles[strikes[i+1]].NetGamma()
		if (a >= 0) == (b >= 0) {
			continue
		}
		k0, k1 := strikes[i], strikes[i+1]
		absA, absB := abs(a), abs(b)
		flip := k0 + (k1-k0)*absA/(absA+absB)
		return &flip
	}
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func accumulateVannaCharm(rows []OptionRow) (vanna, charm float64) {
	for _, r := range rows {
		oi := float64(r.OpenInterest)
		vanna += r.Vega * r.Delta * oi
		charm += r.Gamma * r.Delta * oi
	}
	return vanna, charm
}
