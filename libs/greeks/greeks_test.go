package greeks

import (
	"math"
	"testing"
	"time"
)

var ny = func() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		panic(err)
	}
	return loc
}()

func TestCalculate_ATMZeroDTECall(t *testing.T) {
	calc := NewCalculator(0.045, 0.013)
	now := time.Date(2024, 6, 21, 9, 30, 0, 0, ny)
	exp := ExpirationInstant(now, ny)

	g := calc.Calculate(Params{
		Spot:       600,
		Strike:     600,
		Expiration: exp,
		OptionType: Call,
		ImpliedVol: 0.15,
		Now:        now,
	})

	if g.Delta < 0.45 || g.Delta > 0.56 {
		t.Errorf("expected delta near 0.51, got %v", g.Delta)
	}
	if g.Gamma <= 0 {
		t.Errorf("expected gamma > 0, got %v", g.Gamma)
	}
	if g.Vega <= 0 {
		t.Errorf("expected vega > 0, got %v", g.Vega)
	}
	if g.Theta >= 0 {
		t.Errorf("expected theta < 0, got %v", g.Theta)
	}
}

func TestCalculate_CallPutParity(t *testing.T) {
	calc := NewCalculator(0.045, 0.013)
	now := time.Date(2024, 6, 21, 9, 30, 0, 0, ny)
	exp := now.AddDate(0, 0, 30)

	call := calc.Calculate(Params{Spot: 450, Strike: 440, Expiration: exp, OptionType: Call, ImpliedVol: 0.18, Now: now})
	put := calc.Calculate(Params{Spot: 450, Strike: 440, Expiration: exp, OptionType: Put, ImpliedVol: 0.18, Now: now})

	tYears := timeToExpiration(now, exp)
	expected := math.Exp(-0.013 * tYears)

	if diff := math.Abs((call.Delta - put.Delta) - expected); diff > 1e-4 {
		t.Errorf("call-put delta parity violated: call=%v put=%v expected diff=%v", call.Delta, put.Delta, expected)
	}
}

func TestCalculate_ExpiredITMCall(t *testing.T) {
	calc := NewCalculator(0.045, 0.013)
	now := time.Date(2024, 6, 21, 16, 0, 1, 0, ny)
	exp := time.Date(2024, 6, 21, 16, 0, 0, 0, ny)

	g := calc.Calculate(Params{Spot: 610, Strike: 600, Expiration: exp, OptionType: Call, ImpliedVol: 0.15, Now: now})
	if g.Delta != 1.0 {
		t.Errorf("expected delta=1 for expired ITM call, got %v", g.Delta)
	}
	if g.Gamma != 0 || g.Vega != 0 || g.Theta != 0 || g.Rho != 0 {
		t.Errorf("expected all other greeks 0, got %+v", g)
	}
}

func TestCalculate_ExpiredOTMPut(t *testing.T) {
	calc := NewCalculator(0.045, 0.013)
	now := time.Date(2024, 6, 21, 16, 0, 1, 0, ny)
	exp := time.Date(2024, 6, 21, 16, 0, 0, 0, ny)

	g := calc.Calculate(Params{Spot: 610, Strike: 600, Expiration: exp, OptionType: Put, ImpliedVol: 0.15, Now: now})
	if g.Delta != 0 {
		t.Errorf("expected delta=0 for deep OTM expired put, got %v", g.Delta)
	}
}

func TestImpliedVolFromOptionPrice_RoundTrips(t *testing.T) {
	calc := NewCalculator(0.045, 0.013)
	t0 := 30.0 / 365.0
	price := theoreticalPrice(100, 100, t0, 0.045, 0.22, Call)

	iv, err := calc.ImpliedVolFromOptionPrice(price, 100, 100, t0, Call)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(iv-0.22) > 1e-3 {
		t.Errorf("expected iv ~0.22, got %v", iv)
	}
}
