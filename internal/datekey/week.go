package datekey

import "time"

// DaysPerWeek is the length of a week window.
const DaysPerWeek = 7

// WeekStart returns the Monday that opens t's week. Sunday belongs to the
// week that started six days earlier.
func WeekStart(t time.Time) time.Time {
	wd := int(t.Weekday())
	offset := wd - 1
	if wd == 0 {
		offset = 6
	}
	return AddDays(t, -offset)
}

// WeekWindow returns the seven consecutive days of anchor's week, Monday first.
func WeekWindow(anchor time.Time) [DaysPerWeek]time.Time {
	var out [DaysPerWeek]time.Time
	start := WeekStart(anchor)
	for i := range out {
		out[i] = AddDays(start, i)
	}
	return out
}

// WeekKeys returns the date keys of anchor's week window.
func WeekKeys(anchor time.Time) [DaysPerWeek]string {
	var out [DaysPerWeek]string
	for i, d := range WeekWindow(anchor) {
		out[i] = Format(d)
	}
	return out
}
