package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/platform/apperr"
)

type Service struct {
	staff   StaffRepository
	entries EntryRepository
	leaves  LeaveRepository
	logger  zerolog.Logger
}

func NewService(staff StaffRepository, entries EntryRepository, leaves LeaveRepository) *Service {
	return &Service{staff: staff, entries: entries, leaves: leaves, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// -- Staff --

func (s *Service) CreateStaff(ctx context.Context, st *Staff) error {
	if st.Name == "" {
		return apperr.Validation("name", "is required")
	}
	switch st.Kind {
	case StaffDoctor, StaffClinical, StaffSecretary:
	default:
		return apperr.Validation("kind", "must be DOCTOR, CLINICAL or SECRETARY")
	}
	return s.staff.Create(ctx, st)
}

func (s *Service) GetStaff(ctx context.Context, id uuid.UUID) (*Staff, error) {
	return s.staff.GetByID(ctx, id)
}

// -- Schedule entries --

// CreateEntry validates e against its kind and stores it.
func (s *Service) CreateEntry(ctx context.Context, e *ScheduleEntry) error {
	if e.StaffID == uuid.Nil {
		return apperr.Validation("staff_id", "is required")
	}
	if !e.Period.Valid() {
		return apperr.Validation("period", "must be AM, PM or FULL_DAY")
	}
	if e.ActivityID != nil && e.DepartmentID == nil {
		return apperr.Validation("department_id", "is required when an activity is set")
	}
	if _, err := s.staff.GetByID(ctx, e.StaffID); err != nil {
		return err
	}

	switch e.Kind {
	case EntryRecurring:
		if err := validateRecurring(e); err != nil {
			return err
		}
	case EntryOverride:
		if err := s.validateOverride(ctx, e); err != nil {
			return err
		}
	case EntryAdded:
		if e.SpecificDate == nil {
			return apperr.Validation("specific_date", "is required for ADDED entries")
		}
		if e.ParentID != nil {
			return apperr.Validation("parent_id", "is only allowed on OVERRIDE entries")
		}
		e.Weekday, e.CycleWeeks, e.WeekOffset = nil, 1, 0
	default:
		return apperr.Validation("kind", "must be RECURRING, OVERRIDE or ADDED")
	}

	if err := s.entries.Create(ctx, e); err != nil {
		return err
	}
	s.logger.Info().Str("entry_id", e.ID.String()).Str("staff_id", e.StaffID.String()).
		Str("kind", string(e.Kind)).Msg("schedule entry created")
	return nil
}

func validateRecurring(e *ScheduleEntry) error {
	if e.Weekday == nil || *e.Weekday < 0 || *e.Weekday > 6 {
		return apperr.Validation("weekday", "is required for RECURRING entries (0=Sunday .. 6=Saturday)")
	}
	if e.CycleWeeks == 0 {
		e.CycleWeeks = 1
	}
	if e.CycleWeeks < 1 {
		return apperr.Validation("cycle_weeks", "must be at least 1")
	}
	if e.WeekOffset < 0 || e.WeekOffset >= e.CycleWeeks {
		return apperr.Validation("week_offset", "must be between 0 and cycle_weeks-1")
	}
	if e.ActiveFrom != nil && e.ActiveUntil != nil && e.ActiveUntil.Before(*e.ActiveFrom) {
		return apperr.Validation("active_until", "must not be before active_from")
	}
	if e.SpecificDate != nil || e.ParentID != nil {
		return apperr.Validation("specific_date", "is not allowed on RECURRING entries")
	}
	return nil
}

func (s *Service) validateOverride(ctx context.Context, e *ScheduleEntry) error {
	if e.ParentID == nil {
		return apperr.Validation("parent_id", "is required for OVERRIDE entries")
	}
	if e.SpecificDate == nil {
		return apperr.Validation("specific_date", "is required for OVERRIDE entries")
	}
	parent, err := s.entries.GetByID(ctx, *e.ParentID)
	if err != nil {
		return err
	}
	if parent.Kind != EntryRecurring {
		return apperr.Validation("parent_id", "must reference a RECURRING entry")
	}
	if parent.StaffID != e.StaffID {
		return apperr.Validation("parent_id", "must belong to the same staff member")
	}
	existing, err := s.entries.FindOverride(ctx, *e.ParentID, *e.SpecificDate)
	switch {
	case err == nil && existing != nil:
		return apperr.Conflict("schedule entry", "entry %s already has an override on %s",
			e.ParentID, e.SpecificDate.Format("2006-01-02"))
	case err != nil && !errors.Is(err, apperr.ErrNotFound):
		return err
	}
	e.Weekday, e.CycleWeeks, e.WeekOffset = nil, 1, 0
	return nil
}

func (s *Service) GetEntry(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *Service) DeleteEntry(ctx context.Context, id uuid.UUID) error {
	return s.entries.Delete(ctx, id)
}

func (s *Service) ListEntriesByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*ScheduleEntry, int, error) {
	return s.entries.ListByStaff(ctx, staffID, limit, offset)
}

// -- Leaves --

func (s *Service) ListLeavesByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Leave, int, error) {
	return s.leaves.ListByStaff(ctx, staffID, limit, offset)
}
