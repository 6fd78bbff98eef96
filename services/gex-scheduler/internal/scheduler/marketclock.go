package scheduler

import "time"

var easternLocation = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// marketOpen reports whether now falls within regular trading hours
// (Mon-Fri, 09:30-16:00 ET), DST-aware via the loaded zone database entry.
func marketOpen(now time.Time) bool {
	et := now.In(easternLocation)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	open := time.Date(et.Year(), et.Month(), et.Day(), 9, 30, 0, 0, easternLocation)
	close := time.Date(et.Year(), et.Month(), et.Day(), 16, 0, 0, 0, easternLocation)
	return !et.Before(open) && et.Before(close)
}

// resolveTargetExpiration mirrors the engine's rule so both processes pick
// the same expiration for "today": the current ET date before 16:00 ET,
// otherwise the next weekday.
func resolveTargetExpiration(configured string, now time.Time) string {
	if configured != "today" {
		return configured
	}

	et := now.In(easternLocation)
	if et.Hour() < 16 {
		return et.Format("2006-01-02")
	}
	return nextWeekday(et).Format("2006-01-02")
}

func nextWeekday(t time.Time) time.Time {
	next := t.AddDate(0, 0, 1)
	for next.Weekday() == time.Saturday || next.Weekday() == time.Sunday {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
