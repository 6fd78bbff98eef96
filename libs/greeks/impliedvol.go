package greeks

import (
	"errors"
	"math"
)

// ErrNoImpliedVolSolution is returned when bisection cannot bracket a root
// within the search bounds (price inconsistent with any vol in [1%, 500%]).
var ErrNoImpliedVolSolution = errors.New("greeks: no implied vol solution in search range")

const (
	ivLowerBound = 0.01
	ivUpperBound = 5.0
	ivTolerance  = 1e-6
	ivMaxIter    = 100
)

// ImpliedVolFromOptionPrice backs out implied volatility from an observed
// option price via bisection. The ingestion engine does not call this at
// ingest time (Greeks are computed from vendor-supplied implied vol, never
// solved for); it exists for parity with the reference calculator and for
// testing. Solves for sigma such that the Black-Scholes
// price (without dividend adjustment, matching the reference solver) equals
// price, using bisection over [1%, 500%] implied vol.
func (c *Calculator) ImpliedVolFromOptionPrice(price, spot, strike, t float64, optionType OptionType) (float64, error) {
	if t <= 0 {
		return 0, ErrNoImpliedVolSolution
	}

	objective := func(sigma float64) float64 {
		return theoreticalPrice(spot, strike, t, c.riskFreeRate, sigma, optionType) - price
	}

	lo, hi := ivLowerBound, ivUpperBound
	fLo, fHi := objective(lo), objective(hi)
	if math.IsNaN(fLo) || math.IsNaN(fHi) || fLo*fHi > 0 {
		return 0, ErrNoImpliedVolSolution
	}

	for i := 0; i < ivMaxIter; i++ {
		mid := (lo + hi) / 2
		fMid := objective(mid)
		if math.Abs(fMid) < ivTolerance || (hi-lo)/2 < ivTolerance {
			return round(mid, 6), nil
		}
		if fLo*fMid <= 0 {
			hi, fHi = mid, fMid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return round((lo+hi)/2, 6), nil
}

// theoreticalPrice prices a European option under plain Black-Scholes (no
// dividend term), matching the reference implied-vol solver.
func theoreticalPrice(s, k, t, r, sigma float64, optionType OptionType) float64 {
	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	if optionType == Put {
		return k*math.Exp(-r*t)*standardNormal.CDF(-d2) - s*standardNormal.CDF(-d1)
	}
	return s*standardNormal.CDF(d1) - k*math.Exp(-r*t)*standardNormal.CDF(d2)
}
