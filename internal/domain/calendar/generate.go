package calendar

import (
	"time"
)

// Generate builds one Day per date of year. holidays maps YYYY-MM-DD to a
// holiday name; dates outside year are ignored.
func Generate(year int, holidays map[string]string) []*Day {
	start := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	days := make([]*Day, 0, 366)
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, NewDay(d, holidays))
	}
	return days
}

// NewDay derives the calendar attributes of date.
func NewDay(date time.Time, holidays map[string]string) *Day {
	date = Truncate(date)
	isoYear, isoWeek := date.ISOWeek()
	wd := date.Weekday()
	day := &Day{
		Date:      date,
		Weekday:   wd,
		ISOYear:   isoYear,
		ISOWeek:   isoWeek,
		IsWeekend: wd == time.Saturday || wd == time.Sunday,
	}
	if name, ok := holidays[date.Format(DateLayout)]; ok {
		day.IsHoliday = true
		if name != "" {
			n := name
			day.HolidayName = &n
		}
	}
	return day
}

// WeekStart returns the Monday of the ISO week containing t.
func WeekStart(t time.Time) time.Time {
	t = Truncate(t)
	offset := (int(t.Weekday()) + 6) % 7
	return t.AddDate(0, 0, -offset)
}

// DefaultRange is the current ISO week plus the four weeks after it.
func DefaultRange(now time.Time) (time.Time, time.Time) {
	from := WeekStart(now)
	return from, from.AddDate(0, 0, 5*7-1)
}
