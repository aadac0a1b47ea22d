package gamification

import "time"

// StreakResult is the decision produced by EvaluateStreak.
type StreakResult struct {
	NewStreak    int
	IsNewDay     bool
	ShouldUpdate bool
}

// EvaluateStreak decides whether a learning event on the calendar day of now
// extends, resets, or leaves the streak unchanged. Time of day is ignored;
// only calendar-day distance matters.
//
//	lastActivity == nil  -> first ever activity: streak starts at 1
//	same day             -> no-op (idempotent within a day)
//	yesterday            -> streak extends by 1
//	two or more days ago -> streak resets to 1
//
// A lastActivity in the future (clock skew between writer and reader) is
// treated as already-active-today rather than a reset: the streak must never
// be destroyed by a clock anomaly.
func EvaluateStreak(now time.Time, lastActivity *time.Time, current int) StreakResult {
	if lastActivity == nil {
		return StreakResult{NewStreak: 1, IsNewDay: true, ShouldUpdate: true}
	}

	diff := daysBetween(*lastActivity, now)
	switch {
	case diff <= 0:
		return StreakResult{NewStreak: current, IsNewDay: false, ShouldUpdate: false}
	case diff == 1:
		return StreakResult{NewStreak: current + 1, IsNewDay: true, ShouldUpdate: true}
	default:
		return StreakResult{NewStreak: 1, IsNewDay: true, ShouldUpdate: true}
	}
}

// daysBetween returns the number of calendar days from a to b in UTC,
// negative when b is before a.
func daysBetween(a, b time.Time) int {
	da := truncateToDay(a)
	db := truncateToDay(b)
	return int(db.Sub(da).Hours() / 24)
}

// truncateToDay drops the time-of-day component in UTC.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DayKey formats t as the canonical per-day aggregate key (UTC calendar day).
func DayKey(t time.Time) string {
	return truncateToDay(t).Format("2006-01-02")
}
