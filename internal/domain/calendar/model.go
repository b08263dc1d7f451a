package calendar

import (
	"fmt"
	"time"
)

// DateLayout is the wire and query format of a calendar date.
const DateLayout = "2006-01-02"

// Day maps to the calendar_day table. Date is always midnight UTC.
type Day struct {
	Date        time.Time    `db:"day" json:"date"`
	Weekday     time.Weekday `db:"weekday" json:"weekday"`
	ISOYear     int          `db:"iso_year" json:"iso_year"`
	ISOWeek     int          `db:"iso_week" json:"iso_week"`
	IsWeekend   bool         `db:"is_weekend" json:"is_weekend"`
	IsHoliday   bool         `db:"is_holiday" json:"is_holiday"`
	HolidayName *string      `db:"holiday_name" json:"holiday_name,omitempty"`
}

// Workday reports whether staff can be scheduled on the day.
func (d *Day) Workday() bool {
	return !d.IsWeekend && !d.IsHoliday
}

// ParseDate parses a YYYY-MM-DD string into a UTC date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected %s", s, DateLayout)
	}
	return t, nil
}

// Truncate drops the clock part of t, keeping its calendar date.
func Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Index is an in-memory lookup of calendar days by date.
type Index struct {
	days map[time.Time]*Day
}

func NewIndex(days []*Day) *Index {
	idx := &Index{days: make(map[time.Time]*Day, len(days))}
	for _, d := range days {
		idx.days[Truncate(d.Date)] = d
	}
	return idx
}

// Get returns the day for date, or nil when the index has no such day.
func (i *Index) Get(date time.Time) *Day {
	return i.days[Truncate(date)]
}

func (i *Index) Len() int { return len(i.days) }

// Missing lists the dates in [from, to] that the index does not cover.
func (i *Index) Missing(from, to time.Time) []time.Time {
	var out []time.Time
	for d := Truncate(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if _, ok := i.days[d]; !ok {
			out = append(out, d)
		}
	}
	return out
}

// Days returns the indexed days within [from, to] in date order.
func (i *Index) Days(from, to time.Time) []*Day {
	var out []*Day
	for d := Truncate(from); !d.After(to); d = d.AddDate(0, 0, 1) {
		if day, ok := i.days[d]; ok {
			out = append(out, day)
		}
	}
	return out
}
