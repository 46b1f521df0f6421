package ledger

import (
	"time"

	"github.com/mcclellann/pundLedger/pkg/models"
)

// dueDate returns the date n cadence units after anchor. Monthly steps are
// calendar months counted from the anchor and clamped to the month end, so a
// pund started on the 31st stays on the last day of short months.
func dueDate(anchor time.Time, cadence models.PundType, n int) time.Time {
	anchor = models.Date(anchor)
	switch cadence {
	case models.PundTypeDaily:
		return anchor.AddDate(0, 0, n)
	case models.PundTypeWeekly:
		return anchor.AddDate(0, 0, 7*n)
	default:
		y, m, d := anchor.Date()
		first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
		if last := daysIn(first); d > last {
			d = last
		}
		return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
	}
}

func daysIn(monthStart time.Time) int {
	return monthStart.AddDate(0, 1, -1).Day()
}
