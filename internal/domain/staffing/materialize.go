package staffing

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/roster"
)

// Plan is the schedule-derived state a regeneration writes.
type Plan struct {
	Units   []*WorkUnit
	Doctors []*Assignment
	byKey   map[UnitKey]*WorkUnit
}

// Unit returns the planned unit for k, or nil.
func (p *Plan) Unit(k UnitKey) *WorkUnit {
	return p.byKey[k]
}

// Materialize groups candidates into work units by natural key and attaches
// one published doctor assignment per distinct staff member. Candidates
// without a department produce no unit. Output order is deterministic.
func Materialize(cands []Candidate, now time.Time) *Plan {
	staffByKey := make(map[UnitKey]map[uuid.UUID]bool)
	for _, c := range cands {
		if c.DepartmentID == nil {
			continue
		}
		k := UnitKey{DepartmentID: *c.DepartmentID, Date: c.Date, Period: c.Period}
		if c.ActivityID != nil {
			k.ActivityID = *c.ActivityID
		}
		if staffByKey[k] == nil {
			staffByKey[k] = make(map[uuid.UUID]bool)
		}
		staffByKey[k][c.StaffID] = true
	}

	keys := make([]UnitKey, 0, len(staffByKey))
	for k := range staffByKey {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keyLess(keys[i], keys[j]) })

	plan := &Plan{byKey: make(map[UnitKey]*WorkUnit, len(keys))}
	for _, k := range keys {
		u := &WorkUnit{
			ID:           uuid.New(),
			DepartmentID: k.DepartmentID,
			Date:         k.Date,
			Period:       k.Period,
			Kind:         k.Kind(),
			CreatedAt:    now,
		}
		if k.ActivityID != uuid.Nil {
			act := k.ActivityID
			u.ActivityID = &act
		}
		plan.Units = append(plan.Units, u)
		plan.byKey[k] = u

		for _, staffID := range sortedIDs(staffByKey[k]) {
			plan.Doctors = append(plan.Doctors, &Assignment{
				ID:         uuid.New(),
				WorkUnitID: uuid.NullUUID{UUID: u.ID, Valid: true},
				StaffID:    staffID,
				Kind:       AssignDoctor,
				Origin:     OriginSchedule,
				Status:     StatusPublished,
				CreatedAt:  now,
				UpdatedAt:  now,
			})
		}
	}
	return plan
}

func keyLess(a, b UnitKey) bool {
	if !a.Date.Equal(b.Date) {
		return a.Date.Before(b.Date)
	}
	if a.Period != b.Period {
		return periodOrder(a.Period) < periodOrder(b.Period)
	}
	if c := bytes.Compare(a.DepartmentID[:], b.DepartmentID[:]); c != 0 {
		return c < 0
	}
	return bytes.Compare(a.ActivityID[:], b.ActivityID[:]) < 0
}

func periodOrder(p roster.Period) int {
	if p == roster.PeriodAM {
		return 0
	}
	return 1
}

func sortedIDs(set map[uuid.UUID]bool) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return bytes.Compare(ids[i][:], ids[j][:]) < 0 })
	return ids
}
