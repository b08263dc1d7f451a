package staffing

import (
	"bytes"
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// memStore is an in-memory implementation of every repository the service
// uses. Its transactor snapshots the whole store and restores it when the
// callback fails.
type memStore struct {
	units       map[uuid.UUID]*WorkUnit
	assignments map[uuid.UUID]*Assignment
	issues      []*Issue
	tiers       []*Tier
	labels      map[uuid.UUID]string
	staff       map[uuid.UUID]*roster.Staff
	entries     []*roster.ScheduleEntry
	leaves      []*roster.Leave

	locks   int
	commits int
	// ledgerLocks records the staff passed to each LockForLedger call.
	ledgerLocks [][]uuid.UUID
	// failOn makes the named operation fail with errInjected.
	failOn string
}

var errInjected = errors.New("injected failure")

func newMemStore() *memStore {
	return &memStore{
		units:       make(map[uuid.UUID]*WorkUnit),
		assignments: make(map[uuid.UUID]*Assignment),
		labels:      make(map[uuid.UUID]string),
		staff:       make(map[uuid.UUID]*roster.Staff),
	}
}

func (s *memStore) repos() Repositories {
	return Repositories{
		Units:       &memUnits{s},
		Assignments: &memAssignments{s},
		Issues:      &memIssues{s},
		Tiers:       &memTiers{s},
		Labels:      &memLabels{s},
		Staff:       &memStaff{s},
		Entries:     &memEntries{s},
		Leaves:      &memLeaves{s},
	}
}

type snapshot struct {
	units       map[uuid.UUID]*WorkUnit
	assignments map[uuid.UUID]*Assignment
	issues      []*Issue
	leaves      []*roster.Leave
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		units:       make(map[uuid.UUID]*WorkUnit, len(s.units)),
		assignments: make(map[uuid.UUID]*Assignment, len(s.assignments)),
		issues:      append([]*Issue(nil), s.issues...),
		leaves:      append([]*roster.Leave(nil), s.leaves...),
	}
	for id, u := range s.units {
		cp := *u
		snap.units[id] = &cp
	}
	for id, a := range s.assignments {
		cp := *a
		snap.assignments[id] = &cp
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.units, s.assignments, s.issues, s.leaves = snap.units, snap.assignments, snap.issues, snap.leaves
}

func (s *memStore) fail(op string) error {
	if s.failOn == op {
		return errInjected
	}
	return nil
}

type memTxKey struct{}

type memTx struct{ s *memStore }

func (t memTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memTxKey{}) != nil {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	snap := t.s.snapshot()
	if err := fn(context.WithValue(ctx, memTxKey{}, true)); err != nil {
		t.s.restore(snap)
		return err
	}
	t.s.commits++
	return nil
}

// stubCalendar serves calendar indexes built from generated years.
type stubCalendar struct {
	days []*calendar.Day
}

func newStubCalendar(holidays map[string]string, years ...int) *stubCalendar {
	c := &stubCalendar{}
	for _, y := range years {
		c.days = append(c.days, calendar.Generate(y, holidays)...)
	}
	return c
}

func (c *stubCalendar) Index(_ context.Context, from, to time.Time) (*calendar.Index, error) {
	idx := calendar.NewIndex(c.days)
	if missing := idx.Missing(from, to); len(missing) > 0 {
		return nil, apperr.Validation("range", "calendar index has no entry for %s", missing[0].Format(calendar.DateLayout))
	}
	return idx, nil
}

// =========== Work units ===========

type memUnits struct{ s *memStore }

func (r *memUnits) Create(_ context.Context, u *WorkUnit) error {
	if err := r.s.fail("units.create"); err != nil {
		return err
	}
	for _, existing := range r.s.units {
		if existing.Key() == u.Key() {
			return apperr.Conflict("work unit", "%s already exists", u.Key())
		}
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	cp := *u
	r.s.units[u.ID] = &cp
	return nil
}

func (r *memUnits) GetByID(_ context.Context, id uuid.UUID) (*WorkUnit, error) {
	u, ok := r.s.units[id]
	if !ok {
		return nil, apperr.NotFound("work unit")
	}
	cp := *u
	return &cp, nil
}

func (r *memUnits) ListRange(_ context.Context, from, to time.Time) ([]*WorkUnit, error) {
	var out []*WorkUnit
	for _, u := range r.s.units {
		if !u.Date.Before(from) && !u.Date.After(to) {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return keyLess(out[i].Key(), out[j].Key()) })
	return out, nil
}

func (r *memUnits) DeleteRange(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	for id, u := range r.s.units {
		if u.Date.Before(from) || u.Date.After(to) {
			continue
		}
		delete(r.s.units, id)
		n++
		for _, a := range r.s.assignments {
			if a.WorkUnitID.Valid && a.WorkUnitID.UUID == id {
				a.WorkUnitID = uuid.NullUUID{}
			}
		}
		for _, i := range r.s.issues {
			if i.WorkUnitID.Valid && i.WorkUnitID.UUID == id {
				i.WorkUnitID = uuid.NullUUID{}
			}
		}
	}
	return n, nil
}

func (r *memUnits) LockForRegeneration(ctx context.Context) error {
	if ctx.Value(memTxKey{}) == nil {
		return errors.New("no transaction in context")
	}
	r.s.locks++
	return nil
}

// =========== Assignments ===========

type memAssignments struct{ s *memStore }

func (r *memAssignments) Create(_ context.Context, a *Assignment) error {
	if err := r.s.fail("assignments.create"); err != nil {
		return err
	}
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.Active() && a.WorkUnitID.Valid {
		for _, other := range r.s.assignments {
			if other.Active() && other.WorkUnitID == a.WorkUnitID && other.StaffID == a.StaffID {
				return apperr.Conflict("assignment", "staff %s is already assigned to work unit %s", a.StaffID, a.WorkUnitID.UUID)
			}
		}
	}
	cp := *a
	r.s.assignments[a.ID] = &cp
	return nil
}

func (r *memAssignments) LockForLedger(ctx context.Context, staffIDs ...uuid.UUID) error {
	if ctx.Value(memTxKey{}) == nil {
		return errors.New("no transaction in context")
	}
	r.s.ledgerLocks = append(r.s.ledgerLocks, append([]uuid.UUID(nil), staffIDs...))
	return nil
}

func (r *memAssignments) GetByID(_ context.Context, id uuid.UUID) (*Assignment, error) {
	a, ok := r.s.assignments[id]
	if !ok {
		return nil, apperr.NotFound("assignment")
	}
	cp := *a
	return &cp, nil
}

func (r *memAssignments) ListByUnits(_ context.Context, unitIDs []uuid.UUID) ([]*Assignment, error) {
	want := make(map[uuid.UUID]bool, len(unitIDs))
	for _, id := range unitIDs {
		want[id] = true
	}
	var out []*Assignment
	for _, a := range r.s.assignments {
		if a.WorkUnitID.Valid && want[a.WorkUnitID.UUID] {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0 })
	return out, nil
}

func (r *memAssignments) UpdateStatus(_ context.Context, id uuid.UUID, from, to Status) error {
	a, ok := r.s.assignments[id]
	if !ok {
		return apperr.NotFound("assignment")
	}
	if a.Status != from {
		return apperr.Conflict("assignment", "assignment %s is no longer %s", id, from)
	}
	a.Status = to
	return nil
}

func (r *memAssignments) Reattach(_ context.Context, id uuid.UUID, unitID uuid.NullUUID, status Status) error {
	a, ok := r.s.assignments[id]
	if !ok {
		return apperr.NotFound("assignment")
	}
	a.WorkUnitID, a.Status = unitID, status
	return nil
}

func (r *memAssignments) DeleteScheduledInRange(_ context.Context, from, to time.Time) (int64, error) {
	var n int64
	for id, a := range r.s.assignments {
		if a.Origin != OriginSchedule || !a.WorkUnitID.Valid {
			continue
		}
		u, ok := r.s.units[a.WorkUnitID.UUID]
		if !ok || u.Date.Before(from) || u.Date.After(to) {
			continue
		}
		delete(r.s.assignments, id)
		n++
	}
	return n, nil
}

// =========== Issues, tiers, labels ===========

type memIssues struct{ s *memStore }

func (r *memIssues) Create(_ context.Context, i *Issue) error {
	if err := r.s.fail("issues.create"); err != nil {
		return err
	}
	i.ID = uuid.New()
	cp := *i
	r.s.issues = append(r.s.issues, &cp)
	return nil
}

func (r *memIssues) List(_ context.Context, f IssueFilter, limit, offset int) ([]*Issue, int, error) {
	var matched []*Issue
	for _, i := range r.s.issues {
		if f.Type != "" && i.Type != f.Type {
			continue
		}
		if f.StaffID != nil && i.StaffID != *f.StaffID {
			continue
		}
		if f.From != nil && (i.Date == nil || i.Date.Before(*f.From)) {
			continue
		}
		if f.To != nil && (i.Date == nil || i.Date.After(*f.To)) {
			continue
		}
		matched = append(matched, i)
	}
	total := len(matched)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

type memTiers struct{ s *memStore }

func (r *memTiers) ListByDepartments(_ context.Context, departmentIDs []uuid.UUID) ([]*Tier, error) {
	want := make(map[uuid.UUID]bool)
	for _, id := range departmentIDs {
		want[id] = true
	}
	var out []*Tier
	for _, t := range r.s.tiers {
		if want[t.DepartmentID] {
			out = append(out, t)
		}
	}
	return out, nil
}

type memLabels struct{ s *memStore }

func (r *memLabels) Labels(context.Context) (map[uuid.UUID]string, error) {
	return r.s.labels, nil
}

// =========== Roster ===========

type memStaff struct{ s *memStore }

func (r *memStaff) Create(_ context.Context, st *roster.Staff) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	r.s.staff[st.ID] = st
	r.s.labels[st.ID] = st.Name
	return nil
}

func (r *memStaff) GetByID(_ context.Context, id uuid.UUID) (*roster.Staff, error) {
	st, ok := r.s.staff[id]
	if !ok {
		return nil, apperr.NotFound("staff")
	}
	return st, nil
}

func (r *memStaff) ListSchedulable(context.Context) ([]*roster.Staff, error) {
	var out []*roster.Staff
	for _, st := range r.s.staff {
		if st.Schedulable() {
			out = append(out, st)
		}
	}
	return out, nil
}

type memEntries struct{ s *memStore }

func (r *memEntries) Create(_ context.Context, e *roster.ScheduleEntry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	r.s.entries = append(r.s.entries, e)
	return nil
}

func (r *memEntries) GetByID(_ context.Context, id uuid.UUID) (*roster.ScheduleEntry, error) {
	for _, e := range r.s.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, apperr.NotFound("schedule entry")
}

func (r *memEntries) FindOverride(_ context.Context, parentID uuid.UUID, date time.Time) (*roster.ScheduleEntry, error) {
	for _, e := range r.s.entries {
		if e.Kind == roster.EntryOverride && e.ParentID != nil && *e.ParentID == parentID &&
			e.SpecificDate != nil && e.SpecificDate.Equal(date) {
			return e, nil
		}
	}
	return nil, nil
}

func (r *memEntries) Delete(_ context.Context, id uuid.UUID) error {
	for i, e := range r.s.entries {
		if e.ID == id {
			r.s.entries = append(r.s.entries[:i], r.s.entries[i+1:]...)
			return nil
		}
	}
	return apperr.NotFound("schedule entry")
}

func (r *memEntries) ListByStaff(_ context.Context, staffID uuid.UUID, limit, offset int) ([]*roster.ScheduleEntry, int, error) {
	var out []*roster.ScheduleEntry
	for _, e := range r.s.entries {
		if e.StaffID == staffID {
			out = append(out, e)
		}
	}
	return out, len(out), nil
}

func (r *memEntries) ListRecurring(_ context.Context, from, to time.Time) ([]*roster.ScheduleEntry, error) {
	var out []*roster.ScheduleEntry
	for _, e := range r.s.entries {
		if e.Kind != roster.EntryRecurring {
			continue
		}
		if (e.ActiveFrom != nil && e.ActiveFrom.After(to)) || (e.ActiveUntil != nil && e.ActiveUntil.Before(from)) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (r *memEntries) ListDated(_ context.Context, from, to time.Time) ([]*roster.ScheduleEntry, error) {
	var out []*roster.ScheduleEntry
	for _, e := range r.s.entries {
		if e.Kind == roster.EntryRecurring || e.SpecificDate == nil {
			continue
		}
		if e.SpecificDate.Before(from) || e.SpecificDate.After(to) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type memLeaves struct{ s *memStore }

func (r *memLeaves) Create(_ context.Context, l *roster.Leave) error {
	if err := r.s.fail("leaves.create"); err != nil {
		return err
	}
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.s.leaves = append(r.s.leaves, l)
	return nil
}

func (r *memLeaves) ListOverlapping(_ context.Context, from, to time.Time) ([]*roster.Leave, error) {
	var out []*roster.Leave
	for _, l := range r.s.leaves {
		if !l.StartDate.After(to) && !l.EndDate.Before(from) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *memLeaves) ListByStaff(_ context.Context, staffID uuid.UUID, limit, offset int) ([]*roster.Leave, int, error) {
	var out []*roster.Leave
	for _, l := range r.s.leaves {
		if l.StaffID == staffID {
			out = append(out, l)
		}
	}
	return out, len(out), nil
}
