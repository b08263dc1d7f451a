package staffing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// Repositories groups the stores the staffing service reads and writes.
type Repositories struct {
	Units       WorkUnitRepository
	Assignments AssignmentRepository
	Issues      IssueRepository
	Tiers       TierRepository
	Labels      LabelRepository
	Staff       roster.StaffRepository
	Entries     roster.EntryRepository
	Leaves      roster.LeaveRepository
}

type Service struct {
	tx       Transactor
	calendar CalendarIndex
	repos    Repositories

	logger       zerolog.Logger
	regenTimeout time.Duration
	location     *time.Location
	now          func() time.Time
}

func NewService(tx Transactor, cal CalendarIndex, repos Repositories) *Service {
	return &Service{
		tx:           tx,
		calendar:     cal,
		repos:        repos,
		logger:       zerolog.Nop(),
		regenTimeout: 2 * time.Minute,
		location:     time.UTC,
		now:          time.Now,
	}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetRegenerationTimeout bounds a regeneration run. Zero disables the bound.
func (s *Service) SetRegenerationTimeout(d time.Duration) { s.regenTimeout = d }

// SetLocation sets the clinic time zone used for calendar feeds.
func (s *Service) SetLocation(loc *time.Location) {
	if loc != nil {
		s.location = loc
	}
}

func validateRange(from, to time.Time) error {
	if from.IsZero() || to.IsZero() {
		return apperr.Validation("range", "from and to are required")
	}
	if to.Before(from) {
		return apperr.Validation("to", "must not be before from")
	}
	if to.Sub(from) > 366*24*time.Hour {
		return apperr.Validation("range", "must not exceed one year")
	}
	return nil
}

// Staffing returns the staffing view of every work unit dated in [from, to].
func (s *Service) Staffing(ctx context.Context, from, to time.Time) ([]UnitStaffing, error) {
	if err := validateRange(from, to); err != nil {
		return nil, err
	}
	units, err := s.repos.Units.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	if len(units) == 0 {
		return []UnitStaffing{}, nil
	}
	assignments, err := s.repos.Assignments.ListByUnits(ctx, unitIDs(units))
	if err != nil {
		return nil, err
	}
	tiers, err := s.repos.Tiers.ListByDepartments(ctx, departmentIDs(units))
	if err != nil {
		return nil, err
	}
	return ComputeStaffing(units, assignments, tiers), nil
}

func (s *Service) GetAssignment(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	return s.repos.Assignments.GetByID(ctx, id)
}

func (s *Service) ListIssues(ctx context.Context, f IssueFilter, limit, offset int) ([]*Issue, int, error) {
	return s.repos.Issues.List(ctx, f, limit, offset)
}

func unitIDs(units []*WorkUnit) []uuid.UUID {
	ids := make([]uuid.UUID, len(units))
	for i, u := range units {
		ids[i] = u.ID
	}
	return ids
}

func departmentIDs(units []*WorkUnit) []uuid.UUID {
	seen := make(map[uuid.UUID]bool)
	var ids []uuid.UUID
	for _, u := range units {
		if !seen[u.DepartmentID] {
			seen[u.DepartmentID] = true
			ids = append(ids, u.DepartmentID)
		}
	}
	return ids
}
