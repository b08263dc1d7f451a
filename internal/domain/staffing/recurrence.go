package staffing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
)

// Resolve expands recurring entries over the workdays of [from, to].
// Entries of staff outside schedulable are skipped. A day qualifies when its
// weekday matches, it is neither weekend nor holiday, the entry's cycle-week
// parity holds for the day's ISO week, and the day is in the entry's active
// range. Full-day entries yield one candidate per half-day.
func Resolve(entries []*roster.ScheduleEntry, schedulable map[uuid.UUID]bool, idx *calendar.Index, from, to time.Time) []Candidate {
	days := idx.Days(from, to)
	var out []Candidate
	for _, e := range entries {
		if e.Kind != roster.EntryRecurring || e.Weekday == nil || !schedulable[e.StaffID] {
			continue
		}
		for _, d := range days {
			if d.Weekday != *e.Weekday || !d.Workday() {
				continue
			}
			if !e.OccursInWeek(d.ISOWeek) || !e.ActiveOn(d.Date) {
				continue
			}
			out = appendHalves(out, e, d.Date)
		}
	}
	return out
}

func appendHalves(out []Candidate, e *roster.ScheduleEntry, date time.Time) []Candidate {
	for _, p := range e.Period.Halves() {
		out = append(out, Candidate{
			EntryID:      e.ID,
			StaffID:      e.StaffID,
			DepartmentID: e.DepartmentID,
			ActivityID:   e.ActivityID,
			Date:         date,
			Period:       p,
		})
	}
	return out
}
