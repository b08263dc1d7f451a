package staffing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/roster"
)

type UnitKind string

const (
	UnitConsultation UnitKind = "CONSULTATION"
	UnitSurgery      UnitKind = "SURGERY"
)

// WorkUnit maps to the work_unit table. Period is always a half-day.
type WorkUnit struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	DepartmentID uuid.UUID     `db:"department_id" json:"department_id"`
	Date         time.Time     `db:"day" json:"date"`
	Period       roster.Period `db:"period" json:"period"`
	Kind         UnitKind      `db:"kind" json:"kind"`
	ActivityID   *uuid.UUID    `db:"activity_id" json:"activity_id,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

func (u *WorkUnit) Key() UnitKey {
	k := UnitKey{DepartmentID: u.DepartmentID, Date: u.Date, Period: u.Period}
	if u.ActivityID != nil {
		k.ActivityID = *u.ActivityID
	}
	return k
}

// UnitKey is the natural key of a work unit. A nil ActivityID marks a
// consultation unit.
type UnitKey struct {
	DepartmentID uuid.UUID
	Date         time.Time
	Period       roster.Period
	ActivityID   uuid.UUID
}

func (k UnitKey) Kind() UnitKind {
	if k.ActivityID == uuid.Nil {
		return UnitConsultation
	}
	return UnitSurgery
}

func (k UnitKey) String() string {
	s := fmt.Sprintf("%s %s %s %s", k.Kind(), k.DepartmentID, k.Date.Format("2006-01-02"), k.Period)
	if k.ActivityID != uuid.Nil {
		s += " " + k.ActivityID.String()
	}
	return s
}

type AssignmentKind string

const (
	AssignDoctor    AssignmentKind = "DOCTOR"
	AssignSecretary AssignmentKind = "SECRETARY"
)

type Origin string

const (
	OriginSchedule Origin = "SCHEDULE"
	OriginManual   Origin = "MANUAL"
)

type Status string

const (
	StatusProposed    Status = "PROPOSED"
	StatusConfirmed   Status = "CONFIRMED"
	StatusPublished   Status = "PUBLISHED"
	StatusCancelled   Status = "CANCELLED"
	StatusInvalidated Status = "INVALIDATED"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	return s == StatusCancelled || s == StatusInvalidated
}

// rank orders the forward lifecycle; terminal states have no rank.
func (s Status) rank() int {
	switch s {
	case StatusProposed:
		return 1
	case StatusConfirmed:
		return 2
	case StatusPublished:
		return 3
	}
	return 0
}

// Assignment maps to the assignment table. WorkUnitID is null once the unit
// the assignment pointed to has been removed by a regeneration.
type Assignment struct {
	ID         uuid.UUID      `db:"id" json:"id"`
	WorkUnitID uuid.NullUUID  `db:"work_unit_id" json:"work_unit_id"`
	StaffID    uuid.UUID      `db:"staff_id" json:"staff_id"`
	Kind       AssignmentKind `db:"kind" json:"kind"`
	RoleID     *uuid.UUID     `db:"role_id" json:"role_id,omitempty"`
	SkillID    *uuid.UUID     `db:"skill_id" json:"skill_id,omitempty"`
	Origin     Origin         `db:"origin" json:"origin"`
	Status     Status         `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// Active reports whether the assignment still counts towards staffing.
func (a *Assignment) Active() bool {
	return !a.Status.Terminal()
}

// Tier maps to the staffing_tier table.
type Tier struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DepartmentID uuid.UUID `db:"department_id" json:"department_id"`
	SkillID      uuid.UUID `db:"skill_id" json:"skill_id"`
	RoleID       uuid.UUID `db:"role_id" json:"role_id"`
	MinDoctors   int       `db:"min_doctors" json:"min_doctors"`
	MaxDoctors   int       `db:"max_doctors" json:"max_doctors"`
	Quantity     int       `db:"quantity" json:"quantity"`
}

// Matches reports whether doctors falls in the tier's inclusive range.
func (t *Tier) Matches(doctors int) bool {
	return doctors >= t.MinDoctors && doctors <= t.MaxDoctors
}

type IssueType string

const (
	IssueAbsenceConflict    IssueType = "ABSENCE_CONFLICT"
	IssueOrphanedAssignment IssueType = "ORPHANED_ASSIGNMENT"
)

// Issue maps to the scheduling_issue table. Rows are append-only.
type Issue struct {
	ID           uuid.UUID      `db:"id" json:"id"`
	Type         IssueType      `db:"issue_type" json:"type"`
	WorkUnitID   uuid.NullUUID  `db:"work_unit_id" json:"work_unit_id"`
	AssignmentID uuid.NullUUID  `db:"assignment_id" json:"assignment_id"`
	StaffID      uuid.UUID      `db:"staff_id" json:"staff_id"`
	RoleID       *uuid.UUID     `db:"role_id" json:"role_id,omitempty"`
	Date         *time.Time     `db:"day" json:"date,omitempty"`
	Period       *roster.Period `db:"period" json:"period,omitempty"`
	Description  string         `db:"description" json:"description"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// IssueFilter narrows issue listings. Zero fields are ignored.
type IssueFilter struct {
	From    *time.Time
	To      *time.Time
	StaffID *uuid.UUID
	Type    IssueType
}

// Candidate is one half-day of schedule-derived presence produced by the
// expansion pipeline.
type Candidate struct {
	EntryID      uuid.UUID
	StaffID      uuid.UUID
	DepartmentID *uuid.UUID
	ActivityID   *uuid.UUID
	Date         time.Time
	Period       roster.Period
}

// Need is the requirement of one (skill, role) pair on a work unit.
type Need struct {
	SkillID  uuid.UUID `json:"skill_id"`
	RoleID   uuid.UUID `json:"role_id"`
	Needed   int       `json:"needed"`
	Assigned int       `json:"assigned"`
	Gap      int       `json:"gap"`
}

// UnitStaffing is the staffing view of a work unit.
type UnitStaffing struct {
	Unit        *WorkUnit     `json:"unit"`
	Doctors     []*Assignment `json:"doctors"`
	Secretaries []*Assignment `json:"secretaries"`
	DoctorCount int           `json:"doctor_count"`
	Needs       []Need        `json:"needs"`
}

// RegenerationResult summarizes one regeneration run.
type RegenerationResult struct {
	From              time.Time `json:"from"`
	To                time.Time `json:"to"`
	Units             int       `json:"units"`
	DoctorAssignments int       `json:"doctor_assignments"`
	RelinkedManual    int       `json:"relinked_manual"`
	OrphanedManual    int       `json:"orphaned_manual"`
}

// LeaveResult is returned by a leave declaration, including zero counts.
type LeaveResult struct {
	Leave       *roster.Leave `json:"leave"`
	Invalidated int           `json:"invalidated"`
	Issues      int           `json:"issues"`
}
