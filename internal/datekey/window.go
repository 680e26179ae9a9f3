package datekey

import "time"

// Window is the inclusive range of days a planner lets the user page through.
type Window struct {
	Start time.Time
	End   time.Time
}

// YearFrom returns the window that opens on today's date and closes on the
// same date one year later.
func YearFrom(today time.Time) Window {
	start := Midnight(today)
	y, m, d := start.Date()
	return Window{
		Start: start,
		End:   time.Date(y+1, m, d, 0, 0, 0, 0, start.Location()),
	}
}

// NewWindow returns a window of days consecutive days starting at start.
// A non-positive length yields a single-day window.
func NewWindow(start time.Time, days int) Window {
	if days < 1 {
		days = 1
	}
	start = Midnight(start)
	return Window{Start: start, End: AddDays(start, days-1)}
}

// Contains reports whether t's day lies inside the window.
func (w Window) Contains(t time.Time) bool {
	day := Midnight(t)
	return !day.Before(w.Start) && !day.After(w.End)
}

// Len returns the number of days in the window without listing them.
func (w Window) Len() int {
	if w.End.Before(w.Start) {
		return 0
	}
	sy, sm, sd := w.Start.Date()
	ey, em, ed := w.End.Date()
	// Whole UTC days between the calendar dates; local DST shifts drop out.
	start := time.Date(sy, sm, sd, 0, 0, 0, 0, time.UTC)
	end := time.Date(ey, em, ed, 0, 0, 0, 0, time.UTC)
	return int(end.Sub(start)/(24*time.Hour)) + 1
}

// Keys lists every date key of the window in order.
func (w Window) Keys() []string {
	var out []string
	for d := w.Start; !d.After(w.End); d = AddDays(d, 1) {
		out = append(out, Format(d))
	}
	return out
}

// Step moves from t by n days. Navigation that would leave the window is
// refused and t's day is returned with ok=false.
func (w Window) Step(t time.Time, n int) (time.Time, bool) {
	next := AddDays(t, n)
	if !w.Contains(next) {
		return Midnight(t), false
	}
	return next, true
}

// Clamp pins t's day to the nearest edge of the window.
func (w Window) Clamp(t time.Time) time.Time {
	day := Midnight(t)
	switch {
	case day.Before(w.Start):
		return w.Start
	case day.After(w.End):
		return w.End
	default:
		return day
	}
}
