package staffing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
)

// Transactor runs fn in a transaction carried by the context. Nested calls
// join the outer transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CalendarIndex loads the calendar for a range and fails on gaps.
type CalendarIndex interface {
	Index(ctx context.Context, from, to time.Time) (*calendar.Index, error)
}

type WorkUnitRepository interface {
	// Create keeps a preassigned ID.
	Create(ctx context.Context, u *WorkUnit) error
	GetByID(ctx context.Context, id uuid.UUID) (*WorkUnit, error)
	ListRange(ctx context.Context, from, to time.Time) ([]*WorkUnit, error)
	DeleteRange(ctx context.Context, from, to time.Time) (int64, error)
	// LockForRegeneration serializes regenerations for the rest of the transaction.
	LockForRegeneration(ctx context.Context) error
}

type AssignmentRepository interface {
	// Create keeps a preassigned ID.
	Create(ctx context.Context, a *Assignment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error)
	ListByUnits(ctx context.Context, unitIDs []uuid.UUID) ([]*Assignment, error)
	// UpdateStatus changes the status only if it is still from; otherwise it
	// returns a ConflictError.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error
	Reattach(ctx context.Context, id uuid.UUID, unitID uuid.NullUUID, status Status) error
	// LockForLedger holds off regenerations and serializes ledger writers of
	// the given staff members until the transaction ends.
	LockForLedger(ctx context.Context, staffIDs ...uuid.UUID) error
	// DeleteScheduledInRange removes SCHEDULE-origin assignments on units dated
	// in [from, to]. Manual rows are left for the caller to relink.
	DeleteScheduledInRange(ctx context.Context, from, to time.Time) (int64, error)
}

type IssueRepository interface {
	Create(ctx context.Context, i *Issue) error
	List(ctx context.Context, f IssueFilter, limit, offset int) ([]*Issue, int, error)
}

// TierRepository reads staffing tiers. Tiers are reference data maintained
// outside this service.
type TierRepository interface {
	ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]*Tier, error)
}

// LabelRepository resolves display names of departments, activities, roles,
// skills and staff.
type LabelRepository interface {
	Labels(ctx context.Context) (map[uuid.UUID]string, error)
}
