package staffing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// Regenerate rebuilds the work units and doctor assignments of [from, to]
// from the schedule templates in a single transaction. A zero range means the
// current ISO week and the four weeks after it.
//
// Only SCHEDULE-origin rows are rebuilt. Manual assignments of either kind on
// units whose natural key is recreated are relinked to the new unit. Active
// manual assignments whose key disappears are detached, invalidated and
// reported as ORPHANED_ASSIGNMENT issues.
func (s *Service) Regenerate(ctx context.Context, from, to time.Time) (*RegenerationResult, error) {
	if from.IsZero() && to.IsZero() {
		from, to = calendar.DefaultRange(s.now())
	}
	from, to = calendar.Truncate(from), calendar.Truncate(to)
	if err := validateRange(from, to); err != nil {
		return nil, err
	}

	if s.regenTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.regenTimeout)
		defer cancel()
	}

	started := s.now()
	res := &RegenerationResult{From: from, To: to}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.regenerate(ctx, res)
	})
	if err != nil {
		if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
			err = apperr.FromContext(ctx, "regeneration", err)
		}
		if !errors.Is(err, apperr.ErrTimeout) {
			err = &apperr.RegenerationError{Err: err}
		}
		s.logger.Error().Err(err).Time("from", from).Time("to", to).Msg("regeneration failed")
		return nil, err
	}

	s.logger.Info().Time("from", from).Time("to", to).
		Int("units", res.Units).Int("assignments", res.DoctorAssignments).
		Int("relinked", res.RelinkedManual).Int("orphaned", res.OrphanedManual).
		Dur("took", s.now().Sub(started)).Msg("regeneration completed")
	return res, nil
}

func (s *Service) regenerate(ctx context.Context, res *RegenerationResult) error {
	from, to := res.From, res.To
	if err := s.repos.Units.LockForRegeneration(ctx); err != nil {
		return err
	}

	plan, err := s.plan(ctx, from, to)
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Remember where surviving assignments pointed before the units go away.
	old, err := s.repos.Units.ListRange(ctx, from, to)
	if err != nil {
		return err
	}
	oldKeys := make(map[uuid.UUID]UnitKey, len(old))
	for _, u := range old {
		oldKeys[u.ID] = u.Key()
	}
	if _, err := s.repos.Assignments.DeleteScheduledInRange(ctx, from, to); err != nil {
		return fmt.Errorf("delete scheduled assignments: %w", err)
	}
	var manual []*Assignment
	if len(old) > 0 {
		if manual, err = s.repos.Assignments.ListByUnits(ctx, unitIDs(old)); err != nil {
			return err
		}
	}
	if _, err := s.repos.Units.DeleteRange(ctx, from, to); err != nil {
		return fmt.Errorf("delete work units: %w", err)
	}

	for _, u := range plan.Units {
		if err := s.repos.Units.Create(ctx, u); err != nil {
			return fmt.Errorf("create work unit %s: %w", u.Key(), err)
		}
	}

	// Manual rows go back first: a doctor placed by hand on a recreated unit
	// keeps that row and gets no scheduled duplicate.
	placed := make(map[placement]bool)
	for _, a := range manual {
		key := oldKeys[a.WorkUnitID.UUID]
		if u := plan.Unit(key); u != nil {
			if err := s.repos.Assignments.Reattach(ctx, a.ID, uuid.NullUUID{UUID: u.ID, Valid: true}, a.Status); err != nil {
				return err
			}
			if a.Active() {
				placed[placement{unit: u.ID, staff: a.StaffID}] = true
			}
			res.RelinkedManual++
			continue
		}
		if !a.Active() {
			if err := s.repos.Assignments.Reattach(ctx, a.ID, uuid.NullUUID{}, a.Status); err != nil {
				return err
			}
			continue
		}
		if err := s.orphan(ctx, a, key); err != nil {
			return err
		}
		res.OrphanedManual++
	}

	for _, a := range plan.Doctors {
		if placed[placement{unit: a.WorkUnitID.UUID, staff: a.StaffID}] {
			continue
		}
		if err := s.repos.Assignments.Create(ctx, a); err != nil {
			return fmt.Errorf("create doctor assignment: %w", err)
		}
		res.DoctorAssignments++
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	res.Units = len(plan.Units)
	return nil
}

type placement struct{ unit, staff uuid.UUID }

// plan runs the pure expansion pipeline over a snapshot of the templates.
func (s *Service) plan(ctx context.Context, from, to time.Time) (*Plan, error) {
	idx, err := s.calendar.Index(ctx, from, to)
	if err != nil {
		return nil, err
	}
	staff, err := s.repos.Staff.ListSchedulable(ctx)
	if err != nil {
		return nil, err
	}
	schedulable := make(map[uuid.UUID]bool, len(staff))
	for _, st := range staff {
		schedulable[st.ID] = true
	}
	recurring, err := s.repos.Entries.ListRecurring(ctx, from, to)
	if err != nil {
		return nil, err
	}
	dated, err := s.repos.Entries.ListDated(ctx, from, to)
	if err != nil {
		return nil, err
	}
	leaves, err := s.repos.Leaves.ListOverlapping(ctx, from, to)
	if err != nil {
		return nil, err
	}

	cands := Resolve(recurring, schedulable, idx, from, to)
	cands, err = ApplyExceptions(cands, dated, schedulable, from, to)
	if err != nil {
		return nil, err
	}
	cands = FilterAbsences(cands, leaves)
	return Materialize(cands, s.now()), nil
}

func (s *Service) orphan(ctx context.Context, a *Assignment, key UnitKey) error {
	if err := s.repos.Assignments.Reattach(ctx, a.ID, uuid.NullUUID{}, StatusInvalidated); err != nil {
		return err
	}
	date, period := key.Date, key.Period
	return s.repos.Issues.Create(ctx, &Issue{
		Type:         IssueOrphanedAssignment,
		AssignmentID: uuid.NullUUID{UUID: a.ID, Valid: true},
		StaffID:      a.StaffID,
		RoleID:       a.RoleID,
		Date:         &date,
		Period:       &period,
		Description:  fmt.Sprintf("work unit %s no longer exists after regeneration; %s assignment invalidated (was %s)", key, a.Kind, a.Status),
		CreatedAt:    s.now(),
	})
}
