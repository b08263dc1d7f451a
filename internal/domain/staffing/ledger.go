package staffing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/platform/apperr"
)

// CreateRequest places a staff member on a work unit.
type CreateRequest struct {
	WorkUnitID uuid.UUID  `json:"work_unit_id" validate:"required"`
	StaffID    uuid.UUID  `json:"staff_id" validate:"required"`
	RoleID     *uuid.UUID `json:"role_id,omitempty"`
	SkillID    *uuid.UUID `json:"skill_id,omitempty"`
}

// CreateAssignment inserts a MANUAL assignment in PROPOSED status.
func (s *Service) CreateAssignment(ctx context.Context, req CreateRequest) (*Assignment, error) {
	var out *Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.create(ctx, req)
		out = a
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("assignment_id", out.ID.String()).Str("work_unit_id", req.WorkUnitID.String()).
		Str("staff_id", req.StaffID.String()).Msg("assignment created")
	return out, nil
}

// ApplyProposals creates every request in one transaction; a single failure
// rejects them all.
func (s *Service) ApplyProposals(ctx context.Context, reqs []CreateRequest) ([]*Assignment, error) {
	out := make([]*Assignment, 0, len(reqs))
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		staff := make([]uuid.UUID, len(reqs))
		for i, req := range reqs {
			staff[i] = req.StaffID
		}
		if err := s.repos.Assignments.LockForLedger(ctx, staff...); err != nil {
			return err
		}
		for i, req := range reqs {
			a, err := s.create(ctx, req)
			if err != nil {
				return fmt.Errorf("proposal %d: %w", i, err)
			}
			out = append(out, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (*Assignment, error) {
	if req.WorkUnitID == uuid.Nil {
		return nil, apperr.Validation("work_unit_id", "is required")
	}
	if req.StaffID == uuid.Nil {
		return nil, apperr.Validation("staff_id", "is required")
	}
	if err := s.repos.Assignments.LockForLedger(ctx, req.StaffID); err != nil {
		return nil, err
	}

	unit, err := s.repos.Units.GetByID(ctx, req.WorkUnitID)
	if err != nil {
		return nil, fmt.Errorf("target %w", err)
	}
	staff, err := s.repos.Staff.GetByID(ctx, req.StaffID)
	if err != nil {
		return nil, err
	}
	if !staff.Active {
		return nil, apperr.Validation("staff_id", "staff member %s is inactive", staff.ID)
	}
	kind := AssignSecretary
	if staff.Clinical() {
		kind = AssignDoctor
	}

	onUnit, err := s.repos.Assignments.ListByUnits(ctx, []uuid.UUID{unit.ID})
	if err != nil {
		return nil, err
	}
	for _, a := range onUnit {
		if a.Active() && a.StaffID == staff.ID {
			return nil, apperr.Conflict("assignment", "staff %s is already assigned to work unit %s", staff.ID, unit.ID)
		}
	}

	if kind == AssignSecretary {
		if err := s.checkSlotFree(ctx, unit, staff.ID); err != nil {
			return nil, err
		}
	}

	now := s.now()
	a := &Assignment{
		WorkUnitID: uuid.NullUUID{UUID: unit.ID, Valid: true},
		StaffID:    staff.ID,
		Kind:       kind,
		RoleID:     req.RoleID,
		SkillID:    req.SkillID,
		Origin:     OriginManual,
		Status:     StatusProposed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repos.Assignments.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// checkSlotFree rejects a secretary already active on another unit of the
// same date and half-day.
func (s *Service) checkSlotFree(ctx context.Context, unit *WorkUnit, staffID uuid.UUID) error {
	sameDay, err := s.repos.Units.ListRange(ctx, unit.Date, unit.Date)
	if err != nil {
		return err
	}
	var others []uuid.UUID
	for _, u := range sameDay {
		if u.ID != unit.ID && u.Period == unit.Period {
			others = append(others, u.ID)
		}
	}
	if len(others) == 0 {
		return nil
	}
	busy, err := s.repos.Assignments.ListByUnits(ctx, others)
	if err != nil {
		return err
	}
	for _, a := range busy {
		if a.Active() && a.StaffID == staffID {
			return apperr.Conflict("assignment", "staff %s is already assigned on %s %s",
				staffID, unit.Date.Format("2006-01-02"), unit.Period)
		}
	}
	return nil
}

// Move cancels an assignment and recreates it on target. Either both halves
// apply or neither does.
func (s *Service) Move(ctx context.Context, id, target uuid.UUID) (*Assignment, error) {
	var moved *Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repos.Assignments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repos.Assignments.LockForLedger(ctx, a.StaffID); err != nil {
			return err
		}
		if a.WorkUnitID.Valid && a.WorkUnitID.UUID == target {
			return apperr.Validation("work_unit_id", "assignment is already on work unit %s", target)
		}
		if err := s.cancel(ctx, a); err != nil {
			return err
		}
		moved, err = s.create(ctx, CreateRequest{WorkUnitID: target, StaffID: a.StaffID, RoleID: a.RoleID, SkillID: a.SkillID})
		return err
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().Str("from_assignment", id.String()).Str("to_assignment", moved.ID.String()).
		Str("work_unit_id", target.String()).Msg("assignment moved")
	return moved, nil
}

// Swap exchanges the work units of two assignments in one transaction.
func (s *Service) Swap(ctx context.Context, aID, bID uuid.UUID) (*Assignment, *Assignment, error) {
	if aID == bID {
		return nil, nil, apperr.Validation("assignment_ids", "cannot swap an assignment with itself")
	}
	var newA, newB *Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repos.Assignments.GetByID(ctx, aID)
		if err != nil {
			return err
		}
		b, err := s.repos.Assignments.GetByID(ctx, bID)
		if err != nil {
			return err
		}
		if err := s.repos.Assignments.LockForLedger(ctx, a.StaffID, b.StaffID); err != nil {
			return err
		}
		if !a.WorkUnitID.Valid || !b.WorkUnitID.Valid {
			return apperr.Validation("assignment_ids", "both assignments must be attached to a work unit")
		}
		if a.WorkUnitID.UUID == b.WorkUnitID.UUID {
			return apperr.Validation("assignment_ids", "assignments are on the same work unit")
		}
		if err := s.cancel(ctx, a); err != nil {
			return err
		}
		if err := s.cancel(ctx, b); err != nil {
			return err
		}
		if newA, err = s.create(ctx, CreateRequest{WorkUnitID: b.WorkUnitID.UUID, StaffID: a.StaffID, RoleID: a.RoleID, SkillID: a.SkillID}); err != nil {
			return err
		}
		newB, err = s.create(ctx, CreateRequest{WorkUnitID: a.WorkUnitID.UUID, StaffID: b.StaffID, RoleID: b.RoleID, SkillID: b.SkillID})
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return newA, newB, nil
}

// Cancel moves an assignment to CANCELLED. The row is kept.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	var out *Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repos.Assignments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.repos.Assignments.LockForLedger(ctx, a.StaffID); err != nil {
			return err
		}
		if err := s.cancel(ctx, a); err != nil {
			return err
		}
		out = a
		return nil
	})
	return out, err
}

func (s *Service) cancel(ctx context.Context, a *Assignment) error {
	if a.Status.Terminal() {
		return &apperr.InvalidTransitionError{From: string(a.Status), To: string(StatusCancelled)}
	}
	if err := s.repos.Assignments.UpdateStatus(ctx, a.ID, a.Status, StatusCancelled); err != nil {
		return err
	}
	a.Status = StatusCancelled
	a.UpdatedAt = s.now()
	return nil
}

// Transition moves an assignment forward to CONFIRMED or PUBLISHED.
// Requesting the current status is a no-op.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, to Status) (*Assignment, error) {
	if to != StatusConfirmed && to != StatusPublished {
		return nil, apperr.Validation("status", "must be CONFIRMED or PUBLISHED; use cancel for CANCELLED")
	}
	var out *Assignment
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.repos.Assignments.GetByID(ctx, id)
		if err != nil {
			return err
		}
		out = a
		if err := s.repos.Assignments.LockForLedger(ctx, a.StaffID); err != nil {
			return err
		}
		if a.Status.Terminal() || a.Status.rank() > to.rank() {
			return &apperr.InvalidTransitionError{From: string(a.Status), To: string(to)}
		}
		if a.Status == to {
			return nil
		}
		if err := s.repos.Assignments.UpdateStatus(ctx, a.ID, a.Status, to); err != nil {
			return err
		}
		a.Status = to
		a.UpdatedAt = s.now()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
