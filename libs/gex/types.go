// Package gex computes per-symbol gamma-exposure snapshots from the most
// recently observed options chain: net gamma exposure, the max-gamma
// strike, the gamma-flip point, max pain, and the put/call ratio.
package gex

import (
	"context"
	"time"
)

const contractMultiplier = 100

// OptionRow is the minimal shape of a persisted option quote the calculator
// needs, read fresh per (strike, option_type) for a given expiration.
type OptionRow struct {
	Strike       float64
	OptionType   string // "call" or "put"
	Gamma        float64
	Delta        float64
	Vega         float64
	OpenInterest int64
	Volume       int64
	LastUpdated  time.Time
}

// Reader is the read side of the persistence adapter the calculator depends
// on; libs/store.Store satisfies it.
type Reader interface {
	ReadLatestOptions(ctx context.Context, symbol, expiration string, recency time.Duration) ([]OptionRow, error)
	ReadLatestUnderlying(ctx context.Context, symbol string) (float64, error)
}

// StrikeGammaProfile is the intermediate per-strike aggregate built while
// scanning the chain; it is never persisted on its own.
type StrikeGammaProfile struct {
	Strike      float64
	CallGamma   float64
	PutGamma    float64
	CallOI      int64
	PutOI       int64
	CallVolume  int64
	PutVolume   int64
}

// NetGamma returns call minus put dollar-gamma at this strike.
func (p StrikeGammaProfile) NetGamma() float64 { return p.CallGamma - p.PutGamma }

// TotalGamma returns call plus put dollar-gamma at this strike.
func (p StrikeGammaProfile) TotalGamma() float64 { return p.CallGamma + p.PutGamma }

// Snapshot is the persisted per-expiration GEX summary.
type Snapshot struct {
	ObservedAt time.Time
	Symbol     string
	Expiration string

	UnderlyingPrice     float64
	TotalGammaExposure  float64
	CallGamma           float64
	PutGamma            float64
	NetGEX              float64
	MaxGammaStrike      float64
	MaxGammaValue       float64
	GammaFlipPoint      *float64
	MaxPain             float64
	PutCallRatio        float64
	VannaExposure       float64
	CharmExposure       float64
	CallVolume          int64
	PutVolume           int64
	CallOI              int64
	PutOI               int64
	TotalContracts      int64
}
