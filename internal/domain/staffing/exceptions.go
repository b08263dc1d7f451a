package staffing

import (
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
)

type overrideKey struct {
	parent uuid.UUID
	date   time.Time
}

// ApplyExceptions removes the recurring candidates superseded by overrides
// and appends one candidate set per override and added entry dated within
// [from, to]. Two overrides of the same parent and date are a ConflictError.
func ApplyExceptions(cands []Candidate, dated []*roster.ScheduleEntry, schedulable map[uuid.UUID]bool, from, to time.Time) ([]Candidate, error) {
	overridden := make(map[overrideKey]uuid.UUID)
	var extra []*roster.ScheduleEntry

	for _, e := range dated {
		if e.SpecificDate == nil || !schedulable[e.StaffID] {
			continue
		}
		date := calendar.Truncate(*e.SpecificDate)
		if date.Before(from) || date.After(to) {
			continue
		}
		switch e.Kind {
		case roster.EntryOverride:
			if e.ParentID == nil {
				continue
			}
			k := overrideKey{parent: *e.ParentID, date: date}
			if prev, dup := overridden[k]; dup {
				return nil, apperr.Conflict("schedule entry",
					"overrides %s and %s both replace entry %s on %s",
					prev, e.ID, *e.ParentID, date.Format(calendar.DateLayout))
			}
			overridden[k] = e.ID
			extra = append(extra, e)
		case roster.EntryAdded:
			extra = append(extra, e)
		}
	}

	out := make([]Candidate, 0, len(cands)+2*len(extra))
	for _, c := range cands {
		if _, ok := overridden[overrideKey{parent: c.EntryID, date: c.Date}]; ok {
			continue
		}
		out = append(out, c)
	}
	for _, e := range extra {
		out = appendHalves(out, e, calendar.Truncate(*e.SpecificDate))
	}
	return out, nil
}
