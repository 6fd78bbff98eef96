package scheduler

import (
	"testing"
	"time"
)

func TestMarketOpen_DuringSession(t *testing.T) {
	tue := time.Date(2026, 3, 17, 10, 30, 0, 0, easternLocation)
	if !marketOpen(tue) {
		t.Fatalf("expected market open at 10:30am ET on a weekday")
	}
}

func TestMarketOpen_BeforeOpen(t *testing.T) {
	tue := time.Date(2026, 3, 17, 9, 0, 0, 0, easternLocation)
	if marketOpen(tue) {
		t.Fatalf("expected market closed before 09:30 ET")
	}
}

func TestMarketOpen_AfterClose(t *testing.T) {
	tue := time.Date(2026, 3, 17, 16, 0, 0, 0, easternLocation)
	if marketOpen(tue) {
		t.Fatalf("expected market closed at exactly 16:00 ET (half-open interval)")
	}
}

func TestMarketOpen_Weekend(t *testing.T) {
	sat := time.Date(2026, 3, 21, 10, 30, 0, 0, easternLocation)
	if marketOpen(sat) {
		t.Fatalf("expected market closed on Saturday")
	}
}

func TestResolveTargetExpiration_ExplicitDatePassesThrough(t *testing.T) {
	got := resolveTargetExpiration("2026-03-20", time.Now())
	if got != "2026-03-20" {
		t.Fatalf("expected explicit date to pass through, got %q", got)
	}
}
