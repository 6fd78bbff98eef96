package tsclient

import "time"

// Bar is one OHLCV entry from /marketdata/barcharts.
type Bar struct {
	Open         float64   `json:"Open,string"`
	High         float64   `json:"High,string"`
	Low          float64   `json:"Low,string"`
	Close        float64   `json:"Close,string"`
	TimeStamp    time.Time `json:"TimeStamp"`
	TotalVolume  int64     `json:"TotalVolume,string"`
	UpVolume     int64     `json:"UpVolume,string"`
	DownVolume   int64     `json:"DownVolume,string"`
	IsRealtime   bool      `json:"IsRealtime"`
}

type barsResponse struct {
	Bars []Bar `json:"Bars"`
}

// Expiration is one entry from /marketdata/options/expirations.
type Expiration struct {
	Date time.Time `json:"Date"`
}

type expirationsResponse struct {
	Expirations []Expiration `json:"Expirations"`
}

type strikesResponse struct {
	Strikes [][]float64 `json:"Strikes"`
}

// Leg describes one option contract within a quote frame.
type Leg struct {
	Symbol      string `json:"Symbol"`
	StrikePrice float64 `json:"StrikePrice,string"`
	OptionType  string `json:"OptionType"` // "Call" or "Put"
	Expiration  string `json:"Expiration"`
}

// QuoteFrame is the vendor's options-chain stream quote shape.
type QuoteFrame struct {
	Legs              []Leg   `json:"Legs"`
	Bid               float64 `json:"Bid,string"`
	Ask               float64 `json:"Ask,string"`
	Mid               float64 `json:"Mid,string"`
	Last              float64 `json:"Last,string"`
	Volume            int64   `json:"Volume,string"`
	DailyOpenInterest int64   `json:"DailyOpenInterest,string"`
	ImpliedVolatility float64 `json:"ImpliedVolatility,string"`
	Delta             float64 `json:"Delta,string"`
	Gamma             float64 `json:"Gamma,string"`
	Theta             float64 `json:"Theta,string"`
	Vega              float64 `json:"Vega,string"`
	Rho               float64 `json:"Rho,string"`
}

// HeartbeatFrame is emitted when no market data is flowing; it still
// constitutes liveness evidence.
type HeartbeatFrame struct {
	Heartbeat int       `json:"Heartbeat"`
	Timestamp time.Time `json:"Timestamp"`
}

// StreamFrame is the tagged union of the frame shapes the options stream can
// emit. Exactly one of Quote, Heartbeat, or DropErr is non-nil: DropErr
// signals a malformed line that was skipped rather than delivered, so the
// sink can still count it as a protocol-level drop.
type StreamFrame struct {
	Quote     *QuoteFrame
	Heartbeat *HeartbeatFrame
	DropErr   error
}
