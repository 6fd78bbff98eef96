package engine

import "time"

var easternLocation = mustLoadEastern()

func mustLoadEastern() *time.Location {
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		return time.UTC
	}
	return loc
}

// resolveTargetExpiration turns the configured target_expiration value
// ("today" or an explicit YYYY-MM-DD) into a concrete expiration date.
// "today" means the current ET date if the current ET time is before
// 16:00, otherwise the next weekday.
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
