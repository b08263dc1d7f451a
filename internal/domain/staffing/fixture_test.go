package staffing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
)

// Monday 2026-03-02 is in ISO week 10, Monday 2026-03-09 in ISO week 11.
var fixedNow = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func date(s string) time.Time {
	d, err := calendar.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func ptr[T any](v T) *T { return &v }

type fixture struct {
	store *memStore
	svc   *Service

	cardio  uuid.UUID
	surgery uuid.UUID
	bypass  uuid.UUID
	skill   uuid.UUID
	role    uuid.UUID

	drA, drB, drC *roster.Staff
	sec1, sec2    *roster.Staff
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newMemStore()
	f := &fixture{
		store:   s,
		cardio:  uuid.New(),
		surgery: uuid.New(),
		bypass:  uuid.New(),
		skill:   uuid.New(),
		role:    uuid.New(),
	}
	s.labels[f.cardio] = "Cardiology"
	s.labels[f.surgery] = "Surgery"
	s.labels[f.bypass] = "Bypass"
	s.labels[f.skill] = "Reception"
	s.labels[f.role] = "Front desk"

	f.drA = f.addStaff(t, "Dr A", roster.StaffDoctor)
	f.drB = f.addStaff(t, "Dr B", roster.StaffDoctor)
	f.drC = f.addStaff(t, "Dr C", roster.StaffClinical)
	f.sec1 = f.addStaff(t, "Sec One", roster.StaffSecretary)
	f.sec2 = f.addStaff(t, "Sec Two", roster.StaffSecretary)

	f.svc = NewService(memTx{s}, newStubCalendar(nil, 2026), s.repos())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func (f *fixture) addStaff(t *testing.T, name string, kind roster.StaffKind) *roster.Staff {
	t.Helper()
	st := &roster.Staff{Name: name, Kind: kind, Active: true}
	require.NoError(t, f.store.repos().Staff.Create(context.Background(), st))
	return st
}

func (f *fixture) addRecurring(staff *roster.Staff, dept uuid.UUID, activity *uuid.UUID, wd time.Weekday, p roster.Period) *roster.ScheduleEntry {
	e := &roster.ScheduleEntry{
		ID:           uuid.New(),
		StaffID:      staff.ID,
		Kind:         roster.EntryRecurring,
		DepartmentID: &dept,
		ActivityID:   activity,
		Period:       p,
		Weekday:      &wd,
		CycleWeeks:   1,
	}
	f.store.entries = append(f.store.entries, e)
	return e
}

func (f *fixture) addTier(min, max, qty int) {
	f.store.tiers = append(f.store.tiers, &Tier{
		ID: uuid.New(), DepartmentID: f.cardio, SkillID: f.skill, RoleID: f.role,
		MinDoctors: min, MaxDoctors: max, Quantity: qty,
	})
}

// unit returns the stored unit with the given natural key, or nil.
func (f *fixture) unit(dept uuid.UUID, day string, p roster.Period, activity *uuid.UUID) *WorkUnit {
	k := UnitKey{DepartmentID: dept, Date: date(day), Period: p}
	if activity != nil {
		k.ActivityID = *activity
	}
	for _, u := range f.store.units {
		if u.Key() == k {
			return u
		}
	}
	return nil
}

func (f *fixture) regenerate(t *testing.T, from, to string) *RegenerationResult {
	t.Helper()
	res, err := f.svc.Regenerate(context.Background(), date(from), date(to))
	require.NoError(t, err)
	return res
}

// state is a comparable view of the schedule-derived rows.
type state struct {
	units   map[UnitKey]bool
	doctors map[string]bool
}

func (f *fixture) state() state {
	st := state{units: make(map[UnitKey]bool), doctors: make(map[string]bool)}
	for _, u := range f.store.units {
		st.units[u.Key()] = true
	}
	for _, a := range f.store.assignments {
		if a.Kind == AssignDoctor && a.WorkUnitID.Valid {
			u := f.store.units[a.WorkUnitID.UUID]
			st.doctors[u.Key().String()+" "+a.StaffID.String()+" "+string(a.Status)] = true
		}
	}
	return st
}
