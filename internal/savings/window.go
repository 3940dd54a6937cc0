package savings

import (
	"fmt"
	"time"

	"smartsave/internal/core"
)

// RollingDays is the length of the rolling "this month" window.
const RollingDays = 30

// Window is a closed interval of epoch milliseconds.
type Window struct {
	Start int64
	End   int64
}

func (w Window) Contains(ts int64) bool { return ts >= w.Start && ts <= w.End }

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s]",
		time.UnixMilli(w.Start).UTC().Format(time.RFC3339Nano),
		time.UnixMilli(w.End).UTC().Format(time.RFC3339Nano))
}

// RollingWindow ends at the last millisecond of now's UTC day and starts at
// midnight 30 days earlier.
func RollingWindow(now time.Time) Window {
	end := endOfDay(now.UTC())
	start := startOfDay(end.AddDate(0, 0, -RollingDays))
	return Window{Start: start.UnixMilli(), End: end.UnixMilli()}
}

// CalendarMonthWindow spans the whole UTC calendar month.
func CalendarMonthWindow(year, month int) (Window, error) {
	if month < 1 || month > 12 {
		return Window{}, fmt.Errorf("%w: %d", core.ErrInvalidMonth, month)
	}
	start := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: start.UnixMilli(), End: monthEnd(year, month).UnixMilli()}, nil
}

// monthEnd returns the last millisecond of the month. Out-of-range months
// are normalized, so monthEnd(2024, 0) is the end of December 2023.
func monthEnd(year, month int) time.Time {
	return time.Date(year, time.Month(month)+1, 1, 0, 0, 0, 0, time.UTC).Add(-time.Millisecond)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), time.UTC)
}
