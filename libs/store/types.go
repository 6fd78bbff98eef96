package store

import "time"

// OptionQuoteRow is one persisted row in options_quotes.
type OptionQuoteRow struct {
	ObservedAt      time.Time
	RootSymbol      string
	Strike          float64
	Expiration      time.Time
	OptionType      string
	DTE             int
	Bid, Ask, Mid, Last float64
	SpreadPct       *float64
	Volume          int64
	OpenInterest    int64
	ImpliedVol      float64
	Delta, Gamma, Theta, Vega, Rho float64
	IsCalculated    bool
	UnderlyingPrice float64
}

// UnderlyingQuoteRow is one persisted row in underlying_quotes.
type UnderlyingQuoteRow struct {
	ObservedAt time.Time
	Symbol     string
	Open       float64
	Close      float64
	High       float64
	Low        float64
	TotalVolume int64
	UpVolume    int64
	DownVolume  int64
}

// FlowRow is one persisted row in option_flow_metrics; it mirrors
// libs/flow.Row but is declared independently so the store package doesn't
// depend on the aggregator package for its public API.
type FlowRow struct {
	BucketStart, BucketEnd time.Time
	Symbol, OptionType     string

	TotalVolume, SweepVolume, BlockVolume int64
	OIChange, StartingOI, EndingOI        int64

	TotalPremium, AvgPremium, VWAPPremium float64
	TotalNotional, AvgUnderlyingPrice     float64

	DeltaWeightedVolume, NetDeltaExposure, GammaWeightedVolume float64

	BuyVolume, SellVolume, NetFlow int64
	ATMVolume, OTMVolume, ITMVolume int64

	AvgTradeSize           float64
	MaxTradeSize           int64
	TradeCount             int64
	UniqueStrikes          int
}

// GEXSnapshotRow is one persisted row in gex_metrics.
type GEXSnapshotRow struct {
	ObservedAt time.Time
	Symbol     string
	Expiration string

	UnderlyingPrice    float64
	TotalGammaExposure float64
	CallGamma, PutGamma float64
	NetGEX             float64
	MaxGammaStrike     float64
	MaxGammaValue      float64
	GammaFlipPoint     *float64
	MaxPain            float64
	PutCallRatio       float64
	VannaExposure      float64
	CharmExposure      float64
	CallVolume, PutVolume int64
	CallOI, PutOI         int64
	TotalContracts        int64
}

// IngestionMetricRow is one append-only row in ingestion_metrics.
type IngestionMetricRow struct {
	ObservedAt     time.Time
	Symbol         string
	Received       int64
	Stored         int64
	Errors         int64
	Heartbeats     int64
	LastHeartbeat  time.Time
	UptimeMs       int64
}

// UptimeProbeRow is one append-only row in service_uptime_checks.
type UptimeProbeRow struct {
	ObservedAt  time.Time
	ServiceName string
	IsUp        bool
}
