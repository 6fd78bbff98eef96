package flow

import (
	"testing"
	"time"
)

func TestBucketTimestamp_FloorsToFiveMinutes(t *testing.T) {
	ts := time.Date(2024, 2, 5, 14, 27, 31, 0, time.UTC)
	got := bucketTimestamp(ts)
	want := time.Date(2024, 2, 5, 14, 25, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if got.Minute()%5 != 0 {
		t.Fatalf("bucket start not aligned to 5 minutes: %v", got)
	}
}

func TestAggregator_AddQuote_IgnoresNonPositiveVolume(t *testing.T) {
	agg := NewAggregator()
	agg.AddQuote(Quote{Symbol: "SPY", OptionType: "call", Timestamp: time.Now(), Volume: 0})
	if agg.ActiveBuckets() != 0 {
		t.Fatalf("expected no buckets created for zero volume quote")
	}
}

func TestAggregator_FlushDue_OnlyFlushesCompletedBuckets(t *testing.T) {
	agg := NewAggregator()
	old := time.Date(2024, 2, 5, 14, 10, 0, 0, time.UTC)
	current := time.Date(2024, 2, 5, 14, 27, 0, 0, time.UTC)

	agg.AddQuote(baseQuote("SPY", "call", old, 10))
	agg.AddQuote(baseQuote("SPY", "call", current, 5))

	rows := agg.FlushDue(current)
	if len(rows) != 1 {
		t.Fatalf("expected exactly 1 completed bucket flushed, got %d", len(rows))
	}
	if agg.ActiveBuckets() != 1 {
		t.Fatalf("expected current bucket to remain active, got %d", agg.ActiveBuckets())
	}
}

func TestAggregator_FlushAll_DrainsEverything(t *testing.T) {
	agg := NewAggregator()
	agg.AddQuote(baseQuote("SPY", "call", time.Now(), 10))
	agg.AddQuote(baseQuote("QQQ", "put", time.Now(), 20))

	rows := agg.FlushAll()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows flushed, got %d", len(rows))
	}
	if agg.ActiveBuckets() != 0 {
		t.Fatalf("expected no buckets left after FlushAll")
	}
}

func TestBucket_VolumeInvariant(t *testing.T) {
	agg := NewAggregator()
	ts := time.Date(2024, 2, 5, 14, 0, 0, 0, time.UTC)

	agg.AddQuote(Quote{
		Symbol: "SPY", OptionType: "call", Timestamp: ts, Volume: 150,
		Bid: 1.0, Ask: 1.2, Last: 1.18, Mid: 1.1,
		Strike: 600, UnderlyingPrice: 601, OpenInterest: 500,
	})

	rows := agg.FlushAll()
	if len(rows) != 1 {
		t.Fatalf("expected 1 row")
	}
	r := rows[0]
	if r.TotalVolume != 150 {
		t.Fatalf("expected total_volume 150, got %d", r.TotalVolume)
	}
	if r.BlockVolume != 150 {
		t.Fatalf("expected block_volume 150 for volume>=100, got %d", r.BlockVolume)
	}
	if r.BuyVolume+r.SellVolume > r.TotalVolume {
		t.Fatalf("buy+sell volume exceeds total: %d+%d > %d", r.BuyVolume, r.SellVolume, r.TotalVolume)
	}
	if r.ATMVolume+r.ITMVolume+r.OTMVolume > r.TotalVolume {
		t.Fatalf("atm+itm+otm exceeds total")
	}
}

func TestBucket_NetDeltaExposure_NegatedForPuts(t *testing.T) {
	agg := NewAggregator()
	ts := time.Date(2024, 2, 5, 14, 0, 0, 0, time.UTC)

	agg.AddQuote(Quote{
		Symbol: "SPY", OptionType: "put", Timestamp: ts, Volume: 10,
		Delta: -0.4, UnderlyingPrice: 600,
	})

	rows := agg.FlushAll()
	r := rows[0]
	if !r.DeltaWeightedVolume.IsPositive() {
		t.Fatalf("expected positive raw delta-weighted sum, got %v", r.DeltaWeightedVolume)
	}
	if !r.NetDeltaExposure.IsNegative() {
		t.Fatalf("expected negative net delta exposure for put, got %v", r.NetDeltaExposure)
	}
}

func baseQuote(symbol, optionType string, ts time.Time, volume int64) Quote {
	return Quote{Symbol: symbol, OptionType: optionType, Timestamp: ts, Volume: volume}
}
