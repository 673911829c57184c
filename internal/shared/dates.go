package shared

import "time"

// Day truncates t to midnight UTC. All date comparisons in the engine run
// at day granularity.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole days from a to b after day truncation.
// Negative when b precedes a.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)).Hours() / 24)
}

// NextAnniversary returns the next occurrence of ref's (month, day) on or
// after today. The year stored on ref is ignored.
func NextAnniversary(ref, today time.Time) time.Time {
	today = Day(today)
	next := time.Date(today.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	if next.Before(today) {
		next = time.Date(today.Year()+1, ref.Month(), ref.Day(), 0, 0, 0, 0, time.UTC)
	}
	return next
}
