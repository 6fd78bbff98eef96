// Package flow aggregates streaming option quotes into 5-minute tumbling
// windows, tracking premium, notional, delta/gamma-weighted flow, buy/sell
// pressure, and strike distribution per (symbol, option_type) bucket.
package flow

import (
	"time"

	"github.com/shopspring/decimal"
)

const bucketInterval = 5 * time.Minute

// Quote is the minimal shape the aggregator needs out of a parsed option
// update; callers project their richer quote type down to this.
type Quote struct {
	Symbol          string
	OptionType      string // "call" or "put"
	Strike          float64
	Timestamp       time.Time
	Volume          int64
	Mid             float64
	Bid             float64
	Ask             float64
	Last            float64
	UnderlyingPrice float64
	Delta           float64
	Gamma           float64
	OpenInterest    int64
}

// bucketKey identifies one 5-minute accumulator.
type bucketKey struct {
	symbol      string
	optionType  string
	bucketStart time.Time
}

// Bucket accumulates one 5-minute window's worth of quotes for one
// (symbol, option_type) pair.
type Bucket struct {
	Symbol      string
	OptionType  string
	BucketStart time.Time
	BucketEnd   time.Time

	TotalVolume  int64
	SweepVolume  int64
	BlockVolume  int64
	TradeCount   int64

	PremiumSum       decimal.Decimal
	PremiumVolumeSum decimal.Decimal

	NotionalSum       decimal.Decimal
	UnderlyingPriceSum decimal.Decimal
	PriceCount         int64

	DeltaWeightedSum decimal.Decimal
	GammaWeightedSum decimal.Decimal

	BuyVolume  int64
	SellVolume int64

	ATMVolume int64
	ITMVolume int64
	OTMVolume int64

	MaxTradeSize   int64
	uniqueStrikes  map[float64]struct{}
	oiSamples      []int64
}

func newBucket(symbol, optionType string, bucketStart time.Time) *Bucket {
	return &Bucket{
		Symbol:            symbol,
		OptionType:        optionType,
		BucketStart:       bucketStart,
		BucketEnd:         bucketStart.Add(bucketInterval),
		PremiumSum:        decimal.Zero,
		PremiumVolumeSum:  decimal.Zero,
		NotionalSum:       decimal.Zero,
		UnderlyingPriceSum: decimal.Zero,
		DeltaWeightedSum:  decimal.Zero,
		GammaWeightedSum:  decimal.Zero,
		uniqueStrikes:     make(map[float64]struct{}),
	}
}

// Row is the finalized, flush-ready representation of a completed bucket,
// matching the option_flow_metrics columns.
type Row struct {
	BucketStart time.Time
	BucketEnd   time.Time
	Symbol      string
	OptionType  string

	TotalVolume int64
	SweepVolume int64
	BlockVolume int64

	OIChange  int64
	StartingOI int64
	EndingOI   int64

	TotalPremium decimal.Decimal
	AvgPremium   decimal.Decimal
	VWAPPremium  decimal.Decimal

	TotalNotional      decimal.Decimal
	AvgUnderlyingPrice decimal.Decimal

	DeltaWeightedVolume decimal.Decimal
	NetDeltaExposure    decimal.Decimal
	GammaWeightedVolume decimal.Decimal

	BuyVolume  int64
	SellVolume int64
	NetFlow    int64

	ATMVolume int64
	OTMVolume int64
	ITMVolume int64

	AvgTradeSize  decimal.Decimal
	MaxTradeSize  int64
	TradeCount    int64
	UniqueStrikes int
}

// bucketTimestamp floors t's minute to the nearest multiple of 5, per the
// bucket-alignment invariant.
func bucketTimestamp(t time.Time) time.Time {
	t = t.UTC()
	minute := (t.Minute() / 5) * 5
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), minute, 0, 0, time.UTC)
}
