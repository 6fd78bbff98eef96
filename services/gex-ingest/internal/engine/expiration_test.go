package engine

import (
	"testing"
	"time"
)

func TestResolveTargetExpiration_PassesThroughExplicitDate(t *testing.T) {
	got := resolveTargetExpiration("2026-03-20", time.Now())
	if got != "2026-03-20" {
		t.Fatalf("expected explicit date to pass through, got %q", got)
	}
}

func TestResolveTargetExpiration_TodayBeforeClose(t *testing.T) {
	now := time.Date(2026, 3, 17, 14, 0, 0, 0, easternLocation) // 2:00pm ET, Tuesday
	got := resolveTargetExpiration("today", now)
	if got != "2026-03-17" {
		t.Fatalf("expected today's date, got %q", got)
	}
}

func TestResolveTargetExpiration_TodayAfterCloseRollsToNextWeekday(t *testing.T) {
	now := time.Date(2026, 3, 20, 17, 0, 0, 0, easternLocation) // 5:00pm ET, Friday
	got := resolveTargetExpiration("today", now)
	if got != "2026-03-23" { // following Monday
		t.Fatalf("expected next weekday (Monday), got %q", got)
	}
}

func TestNextWeekday_SkipsWeekend(t *testing.T) {
	friday := time.Date(2026, 3, 20, 12, 0, 0, 0, easternLocation)
	got := nextWeekday(friday)
	if got.Weekday() != time.Monday {
		t.Fatalf("expected Monday, got %s", got.Weekday())
	}
}
