package ledger

import "time"

const day = 24 * time.Hour

// DaysBetween counts started days between start and end; a partial day counts as a whole one.
func DaysBetween(start, end time.Time) int64 {
	d := end.Sub(start)
	days := int64(d / day)
	if d%day != 0 {
		days++
	}
	return days
}

// Cost is days × quantity × rate.
func Cost(start, end time.Time, quantity int64, perUnitPerDay float64) float64 {
	return float64(DaysBetween(start, end)*quantity) * perUnitPerDay
}
