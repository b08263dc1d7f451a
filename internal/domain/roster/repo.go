package roster

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type StaffRepository interface {
	Create(ctx context.Context, s *Staff) error
	GetByID(ctx context.Context, id uuid.UUID) (*Staff, error)
	// ListSchedulable returns active doctors and clinical staff.
	ListSchedulable(ctx context.Context) ([]*Staff, error)
}

type EntryRepository interface {
	Create(ctx context.Context, e *ScheduleEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error)
	FindOverride(ctx context.Context, parentID uuid.UUID, date time.Time) (*ScheduleEntry, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*ScheduleEntry, int, error)
	// ListRecurring returns recurring entries whose active range overlaps [from, to].
	ListRecurring(ctx context.Context, from, to time.Time) ([]*ScheduleEntry, error)
	// ListDated returns override and added entries dated within [from, to].
	ListDated(ctx context.Context, from, to time.Time) ([]*ScheduleEntry, error)
}

type LeaveRepository interface {
	Create(ctx context.Context, l *Leave) error
	ListOverlapping(ctx context.Context, from, to time.Time) ([]*Leave, error)
	ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Leave, int, error)
}
