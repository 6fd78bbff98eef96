package gex

import (
	"context"
	"testing"
	"time"
)

type fakeReader struct {
	rows []OptionRow
	spot float64
}

func (f *fakeReader) ReadLatestOptions(ctx context.Context, symbol, expiration string, recency time.Duration) ([]OptionRow, error) {
	return f.rows, nil
}

func (f *fakeReader) ReadLatestUnderlying(ctx context.Context, symbol string) (float64, error) {
	return f.spot, nil
}

func TestCalculate_MaxPainTwoStrikes(t *testing.T) {
	reader := &fakeReader{
		spot: 105,
		rows: []OptionRow{
			{Strike: 100, OptionType: "put", Gamma: 0.01, OpenInterest: 10},
			{Strike: 110, OptionType: "call", Gamma: 0.01, OpenInterest: 10},
		},
	}

	snap, err := Calculate(context.Background(), reader, "SPY", "2024-06-21", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.MaxPain != 110 {
		t.Fatalf("expected max_pain=110, got %v", snap.MaxPain)
	}
}

func TestCalculate_GammaFlipInterpolation(t *testing.T) {
	// Strike 495 net=+200 needs call_gamma=200,put_gamma=0; strike 500
	// net=-100 needs call_gamma=0,put_gamma=100. With spot=1 and
	// open_interest=1, gamma_exposure = gamma*100, so gamma 2 and 1 give 200 and 100.
	reader := &fakeReader{
		spot: 1,
		rows: []OptionRow{
			{Strike: 495, OptionType: "call", Gamma: 2, OpenInterest: 1},
			{Strike: 500, OptionType: "put", Gamma: 1, OpenInterest: 1},
		},
	}

	snap, err := Calculate(context.Background(), reader, "SPY", "2024-06-21", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.GammaFlipPoint == nil {
		t.Fatal("expected a gamma flip point")
	}
	want := 495 + 5*200.0/(200.0+100.0)
	if diff := *snap.GammaFlipPoint - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("expected gamma_flip_point ~%v, got %v", want, *snap.GammaFlipPoint)
	}
}

func TestCalculate_NoData_ReturnsErrNoData(t *testing.T) {
	reader := &fakeReader{spot: 100}
	_, err := Calculate(context.Background(), reader, "SPY", "2024-06-21", nil, time.Now())
	if err != ErrNoData {
		t.Fatalf("expected ErrNoData, got %v", err)
	}
}

func TestCalculate_InvariantsHold(t *testing.T) {
	reader := &fakeReader{
		spot: 600,
		rows: []OptionRow{
			{Strike: 595, OptionType: "call", Gamma: 0.02, OpenInterest: 50, Volume: 10},
			{Strike: 595, OptionType: "put", Gamma: 0.015, OpenInterest: 30, Volume: 5},
			{Strike: 605, OptionType: "call", Gamma: 0.01, OpenInterest: 20, Volume: 8},
		},
	}

	snap, err := Calculate(context.Background(), reader, "SPY", "2024-06-21", nil, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.TotalGammaExposure != snap.CallGamma+snap.PutGamma {
		t.Fatalf("invariant violated: total != call+put")
	}
	if snap.NetGEX != snap.CallGamma-snap.PutGamma {
		t.Fatalf("invariant violated: net_gex != call-put")
	}
	if snap.PutCallRatio < 0 {
		t.Fatalf("invariant violated: put_call_ratio < 0")
	}
	if snap.GammaFlipPoint != nil {
		minS, maxS := 595.0, 605.0
		if *snap.GammaFlipPoint < minS || *snap.GammaFlipPoint > maxS {
			t.Fatalf("gamma_flip_point %v outside strike range [%v, %v]", *snap.GammaFlipPoint, minS, maxS)
		}
	}
}
