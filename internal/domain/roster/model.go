package roster

import (
	"time"

	"github.com/google/uuid"
)

// Period is a half-day slot. Templates may also use PeriodFullDay.
type Period string

const (
	PeriodAM      Period = "AM"
	PeriodPM      Period = "PM"
	PeriodFullDay Period = "FULL_DAY"
)

func (p Period) Valid() bool {
	return p == PeriodAM || p == PeriodPM || p == PeriodFullDay
}

// Halves expands a period into the half-days it covers.
func (p Period) Halves() []Period {
	switch p {
	case PeriodAM:
		return []Period{PeriodAM}
	case PeriodPM:
		return []Period{PeriodPM}
	case PeriodFullDay:
		return []Period{PeriodAM, PeriodPM}
	}
	return nil
}

type StaffKind string

const (
	StaffDoctor    StaffKind = "DOCTOR"
	StaffClinical  StaffKind = "CLINICAL"
	StaffSecretary StaffKind = "SECRETARY"
)

// Staff maps to the staff table.
type Staff struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Kind      StaffKind `db:"kind" json:"kind"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Clinical reports whether the staff member staffs work units as a doctor.
func (s *Staff) Clinical() bool {
	return s.Kind == StaffDoctor || s.Kind == StaffClinical
}

// Schedulable reports whether the staff member's templates feed regeneration.
func (s *Staff) Schedulable() bool {
	return s.Active && s.Clinical()
}

type EntryKind string

const (
	EntryRecurring EntryKind = "RECURRING"
	EntryOverride  EntryKind = "OVERRIDE"
	EntryAdded     EntryKind = "ADDED"
)

// ScheduleEntry maps to the schedule_entry table. Recurring entries use
// Weekday, CycleWeeks, WeekOffset and the optional active range; dated
// entries use SpecificDate, and overrides also carry ParentID.
type ScheduleEntry struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	StaffID      uuid.UUID     `db:"staff_id" json:"staff_id"`
	Kind         EntryKind     `db:"kind" json:"kind"`
	DepartmentID *uuid.UUID    `db:"department_id" json:"department_id,omitempty"`
	ActivityID   *uuid.UUID    `db:"activity_id" json:"activity_id,omitempty"`
	Period       Period        `db:"period" json:"period"`
	Weekday      *time.Weekday `db:"weekday" json:"weekday,omitempty"`
	CycleWeeks   int           `db:"cycle_weeks" json:"cycle_weeks"`
	WeekOffset   int           `db:"week_offset" json:"week_offset"`
	ActiveFrom   *time.Time    `db:"active_from" json:"active_from,omitempty"`
	ActiveUntil  *time.Time    `db:"active_until" json:"active_until,omitempty"`
	SpecificDate *time.Time    `db:"specific_date" json:"specific_date,omitempty"`
	ParentID     *uuid.UUID    `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// ActiveOn reports whether date falls within the entry's optional active range.
func (e *ScheduleEntry) ActiveOn(date time.Time) bool {
	if e.ActiveFrom != nil && date.Before(*e.ActiveFrom) {
		return false
	}
	if e.ActiveUntil != nil && date.After(*e.ActiveUntil) {
		return false
	}
	return true
}

// OccursInWeek applies cycle-week parity to an ISO week number.
func (e *ScheduleEntry) OccursInWeek(isoWeek int) bool {
	if e.CycleWeeks <= 1 {
		return true
	}
	return (isoWeek-1)%e.CycleWeeks == e.WeekOffset
}

// Leave maps to the leave table. A nil Period is a full-day absence.
type Leave struct {
	ID        uuid.UUID `db:"id" json:"id"`
	StaffID   uuid.UUID `db:"staff_id" json:"staff_id"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
	Period    *Period   `db:"period" json:"period,omitempty"`
	Reason    *string   `db:"reason" json:"reason,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Covers reports whether the leave applies to the given date and half-day.
func (l *Leave) Covers(date time.Time, period Period) bool {
	if date.Before(l.StartDate) || date.After(l.EndDate) {
		return false
	}
	return l.Period == nil || *l.Period == period
}

// Periods returns the half-days the leave applies to on each covered date.
func (l *Leave) Periods() []Period {
	if l.Period == nil {
		return []Period{PeriodAM, PeriodPM}
	}
	return []Period{*l.Period}
}
