package flow

import (
	"math"

	"github.com/shopspring/decimal"
)

const (
	blockVolumeThreshold = 100
	atmPctThreshold      = 0.02
	buyThreshold         = 0.6
	sweepBuyThreshold    = 0.9
	sellThreshold        = 0.4
	sweepSellThreshold   = 0.1
	contractMultiplier   = 100
)

// addQuote folds one quote's contribution into the bucket. Non-positive
// volume is filtered by the caller (Aggregator.AddQuote) before this is
// reached.
func (b *Bucket) addQuote(q Quote) {
	volume := q.Volume
	b.TradeCount++
	b.TotalVolume += volume

	if volume >= blockVolumeThreshold {
		b.BlockVolume += volume
	}

	if q.Mid > 0 {
		premium := decimal.NewFromFloat(q.Mid).
			Mul(decimal.NewFromInt(volume)).
			Mul(decimal.NewFromInt(contractMultiplier))
		b.PremiumSum = b.PremiumSum.Add(premium)
		b.PremiumVolumeSum = b.PremiumVolumeSum.Add(premium.Mul(decimal.NewFromInt(volume)))
	}

	if q.UnderlyingPrice > 0 {
		notional := decimal.NewFromInt(volume).
			Mul(decimal.NewFromFloat(q.UnderlyingPrice)).
			Mul(decimal.NewFromInt(contractMultiplier))
		b.NotionalSum = b.NotionalSum.Add(notional)
		b.UnderlyingPriceSum = b.UnderlyingPriceSum.Add(decimal.NewFromFloat(q.UnderlyingPrice))
		b.PriceCount++
	}

	if q.Delta != 0 {
		weighted := decimal.NewFromInt(volume).
			Mul(decimal.NewFromFloat(math.Abs(q.Delta))).
			Mul(decimal.NewFromFloat(q.UnderlyingPrice)).
			Mul(decimal.NewFromInt(contractMultiplier))
		b.DeltaWeightedSum = b.DeltaWeightedSum.Add(weighted)
	}

	if q.Gamma > 0 {
		b.GammaWeightedSum = b.GammaWeightedSum.Add(decimal.NewFromInt(volume).Mul(decimal.NewFromFloat(q.Gamma)))
	}

	b.classifyDirection(q, volume)
	b.classifyStrike(q, volume)

	if volume > b.MaxTradeSize {
		b.MaxTradeSize = volume
	}
	if q.OpenInterest > 0 {
		b.oiSamples = append(b.oiSamples, q.OpenInterest)
	}
}

// classifyDirection infers buy/sell pressure and sweep classification from
// where last sits within the bid/ask spread.
func (b *Bucket) classifyDirection(q Quote, volume int64) {
	if !(q.Bid > 0 && q.Ask > 0 && q.Last > 0) {
		return
	}
	spread := q.Ask - q.Bid
	if spread <= 0 {
		return
	}

	pct := (q.Last - q.Bid) / spread
	switch {
	case pct > buyThreshold:
		b.BuyVolume += volume
		if pct > sweepBuyThreshold {
			b.SweepVolume += volume
		}
	case pct < sellThreshold:
		b.SellVolume += volume
		if pct < sweepSellThreshold {
			b.SweepVolume += volume
		}
	default:
		half := volume / 2
		b.BuyVolume += half
		b.SellVolume += volume - half
	}
}

// classifyStrike buckets volume into ATM/ITM/OTM relative to the
// underlying's spot price at quote time.
func (b *Bucket) classifyStrike(q Quote, volume int64) {
	if !(q.Strike > 0 && q.UnderlyingPrice > 0) {
		return
	}
	b.uniqueStrikes[q.Strike] = struct{}{}

	pctDiff := math.Abs(q.Strike-q.UnderlyingPrice) / q.UnderlyingPrice
	isCall := b.OptionType == "call"
	isITM := q.Strike < q.UnderlyingPrice
	if !isCall {
		isITM = q.Strike > q.UnderlyingPrice
	}

	switch {
	case pctDiff <= atmPctThreshold:
		b.ATMVolume += volume
	case isITM:
		b.ITMVolume += volume
	default:
		b.OTMVolume += volume
	}
}

// toRow finalizes the bucket into a persisted Row, deriving averages, VWAP,
// net flow, and OI delta from the accumulated sums.
func (b *Bucket) toRow() Row {
	row := Row{
		BucketStart: b.BucketStart,
		BucketEnd:   b.BucketEnd,
		Symbol:      b.Symbol,
		OptionType:  b.OptionType,

		TotalVolume: b.TotalVolume,
		SweepVolume: b.SweepVolume,
		BlockVolume: b.BlockVolume,

		TotalPremium:        b.PremiumSum,
		TotalNotional:       b.NotionalSum,
		DeltaWeightedVolume: b.DeltaWeightedSum,
		GammaWeightedVolume: b.GammaWeightedSum,

		BuyVolume:  b.BuyVolume,
		SellVolume: b.SellVolume,
		NetFlow:    b.BuyVolume - b.SellVolume,

		ATMVolume: b.ATMVolume,
		OTMVolume: b.OTMVolume,
		ITMVolume: b.ITMVolume,

		MaxTradeSize:  b.MaxTradeSize,
		TradeCount:    b.TradeCount,
		UniqueStrikes: len(b.uniqueStrikes),
	}

	if b.TotalVolume > 0 {
		totalVol := decimal.NewFromInt(b.TotalVolume)
		row.AvgPremium = b.PremiumSum.Div(totalVol)
		row.VWAPPremium = b.PremiumVolumeSum.Div(totalVol.Mul(totalVol))
	}
	if b.PriceCount > 0 {
		row.AvgUnderlyingPrice = b.UnderlyingPriceSum.Div(decimal.NewFromInt(b.PriceCount))
	}
	if b.TradeCount > 0 {
		row.AvgTradeSize = decimal.NewFromInt(b.TotalVolume).Div(decimal.NewFromInt(b.TradeCount))
	}

	if len(b.oiSamples) > 0 {
		row.StartingOI = b.oiSamples[0]
		row.EndingOI = b.oiSamples[len(b.oiSamples)-1]
		row.OIChange = row.EndingOI - row.StartingOI
	}

	row.NetDeltaExposure = b.DeltaWeightedSum
	if b.OptionType == "put" {
		row.NetDeltaExposure = b.DeltaWeightedSum.Neg()
	}

	return row
}
