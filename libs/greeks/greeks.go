// Package greeks computes Black-Scholes option Greeks with a continuous
// dividend yield, matching the formulas the ingestion engine cross-checks
// vendor-supplied Greeks against.
package greeks

import (
	"math"
	"time"

	"gonum.org/v1/gonum/stat/distuv"
)

// OptionType distinguishes calls from puts.
type OptionType string

const (
	Call OptionType = "call"
	Put  OptionType = "put"
)

// minTimeToExpiration is the 1-hour floor on T, expressed in years, applied
// to avoid the d1/d2 denominator blowing up for options seconds from expiry.
const minTimeToExpiration = 1.0 / 365.25 / 24.0

// secondsPerYear uses a 365.25-day year, matching the vendor's own
// time-to-expiration convention.
const secondsPerYear = 365.25 * 24 * 3600

var standardNormal = distuv.Normal{Mu: 0, Sigma: 1}

// Params describes one option contract at one instant in time.
type Params struct {
	Spot       float64
	Strike     float64
	Expiration time.Time // the contract's 16:00 ET expiration instant
	OptionType OptionType
	ImpliedVol float64
	Now        time.Time
}

// Greeks holds the five sensitivities the engine persists alongside a quote.
type Greeks struct {
	Delta float64
	Gamma float64
	Theta float64
	Vega  float64
	Rho   float64
}

// Calculator holds the risk-free rate and dividend yield used across all
// contracts it prices; both are fixed at construction per spec §4.C.
type Calculator struct {
	riskFreeRate  float64
	dividendYield float64
}

// NewCalculator builds a Calculator with the given annualized risk-free rate
// and continuous dividend yield.
func NewCalculator(riskFreeRate, dividendYield float64) *Calculator {
	return &Calculator{riskFreeRate: riskFreeRate, dividendYield: dividendYield}
}

// Calculate returns the Black-Scholes Greeks for p. It never errors: expired
// or at-expiry contracts fall back to the degenerate Greeks in expiredGreeks.
func (c *Calculator) Calculate(p Params) Greeks {
	t := timeToExpiration(p.Now, p.Expiration)
	if t <= 0 {
		return expiredGreeks(p.Spot, p.Strike, p.OptionType)
	}
	if t < minTimeToExpiration {
		t = minTimeToExpiration
	}

	s, k, sigma := p.Spot, p.Strike, p.ImpliedVol
	r, q := c.riskFreeRate, c.dividendYield

	sqrtT := math.Sqrt(t)
	d1 := (math.Log(s/k) + (r-q+0.5*sigma*sigma)*t) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT

	discQ := math.Exp(-q * t)
	discR := math.Exp(-r * t)
	pdfD1 := standardNormal.Prob(d1)

	gamma := pdfD1 * discQ / (s * sigma * sqrtT)
	vega := s * discQ * pdfD1 * sqrtT / 100

	var delta, theta, rho float64
	switch p.OptionType {
	case Put:
		delta = -discQ * standardNormal.CDF(-d1)
		theta = (-s*pdfD1*sigma*discQ/(2*sqrtT) +
			r*k*discR*standardNormal.CDF(-d2) -
			q*s*discQ*standardNormal.CDF(-d1)) / 365
		rho = -k * t * discR * standardNormal.CDF(-d2) / 100
	default: // Call
		delta = discQ * standardNormal.CDF(d1)
		theta = (-s*pdfD1*sigma*discQ/(2*sqrtT) -
			r*k*discR*standardNormal.CDF(d2) +
			q*s*discQ*standardNormal.CDF(d1)) / 365
		rho = k * t * discR * standardNormal.CDF(d2) / 100
	}

	return Greeks{
		Delta: round(delta, 6),
		Gamma: round(gamma, 8),
		Theta: round(theta, 6),
		Vega:  round(vega, 6),
		Rho:   round(rho, 6),
	}
}

// timeToExpiration returns T in years, floored at 0. now and expiration must
// both be instants (expiration already resolved to 16:00 ET by the caller).
func timeToExpiration(now, expiration time.Time) float64 {
	diff := expiration.Sub(now).Seconds()
	t := diff / secondsPerYear
	if t < 0 {
		return 0
	}
	return t
}

// expiredGreeks returns the degenerate Greeks for a contract at or past
// expiration: delta is 1 (call) or -1 (put) if in the money, else 0; every
// other Greek is 0.
func expiredGreeks(spot, strike float64, optionType OptionType) Greeks {
	var itm bool
	if optionType == Put {
		itm = spot < strike
	} else {
		itm = spot > strike
	}

	delta := 0.0
	if itm {
		if optionType == Put {
			delta = -1.0
		} else {
			delta = 1.0
		}
	}
	return Greeks{Delta: delta}
}

func round(v float64, decimals int) float64 {
	mult := math.Pow(10, float64(decimals))
	return math.Round(v*mult) / mult
}

// ExpirationInstant builds the 16:00 America/New_York instant for an
// expiration date, the convention options use for their final settlement
// time per spec §4.C.
func ExpirationInstant(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), 16, 0, 0, 0, loc)
}
