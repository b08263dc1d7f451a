package staffing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
)

// DeclareLeave records a leave and, in the same transaction, invalidates
// every active assignment of that staff member on the units it covers. Each
// invalidated assignment gets one ABSENCE_CONFLICT issue.
func (s *Service) DeclareLeave(ctx context.Context, l *roster.Leave) (*LeaveResult, error) {
	if l.StaffID == uuid.Nil {
		return nil, apperr.Validation("staff_id", "is required")
	}
	if l.StartDate.IsZero() || l.EndDate.IsZero() {
		return nil, apperr.Validation("start_date", "start_date and end_date are required")
	}
	l.StartDate, l.EndDate = calendar.Truncate(l.StartDate), calendar.Truncate(l.EndDate)
	if l.EndDate.Before(l.StartDate) {
		return nil, apperr.Validation("end_date", "must not be before start_date")
	}
	if l.Period != nil {
		switch *l.Period {
		case roster.PeriodAM, roster.PeriodPM:
		case roster.PeriodFullDay:
			l.Period = nil
		default:
			return nil, apperr.Validation("period", "must be AM, PM or empty for a full day")
		}
	}

	res := &LeaveResult{Leave: l}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.repos.Assignments.LockForLedger(ctx, l.StaffID); err != nil {
			return err
		}
		if _, err := s.repos.Staff.GetByID(ctx, l.StaffID); err != nil {
			return err
		}
		if err := s.repos.Leaves.Create(ctx, l); err != nil {
			return fmt.Errorf("record leave: %w", err)
		}

		units, err := s.repos.Units.ListRange(ctx, l.StartDate, l.EndDate)
		if err != nil {
			return err
		}
		affected := make(map[uuid.UUID]*WorkUnit)
		for _, u := range units {
			if l.Covers(u.Date, u.Period) {
				affected[u.ID] = u
			}
		}
		if len(affected) == 0 {
			return nil
		}
		ids := make([]uuid.UUID, 0, len(affected))
		for id := range affected {
			ids = append(ids, id)
		}

		assignments, err := s.repos.Assignments.ListByUnits(ctx, ids)
		if err != nil {
			return err
		}
		for _, a := range assignments {
			if a.StaffID != l.StaffID || !a.Active() {
				continue
			}
			if err := s.repos.Assignments.UpdateStatus(ctx, a.ID, a.Status, StatusInvalidated); err != nil {
				return err
			}
			res.Invalidated++

			u := affected[a.WorkUnitID.UUID]
			date, period := u.Date, u.Period
			issue := &Issue{
				Type:         IssueAbsenceConflict,
				WorkUnitID:   a.WorkUnitID,
				AssignmentID: uuid.NullUUID{UUID: a.ID, Valid: true},
				StaffID:      a.StaffID,
				RoleID:       a.RoleID,
				Date:         &date,
				Period:       &period,
				Description: fmt.Sprintf("%s assignment on %s %s invalidated by leave %s (was %s)",
					a.Kind, date.Format(calendar.DateLayout), period, l.ID, a.Status),
				CreatedAt: s.now(),
			}
			if err := s.repos.Issues.Create(ctx, issue); err != nil {
				return fmt.Errorf("record issue: %w", err)
			}
			res.Issues++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().Str("leave_id", l.ID.String()).Str("staff_id", l.StaffID.String()).
		Int("invalidated", res.Invalidated).Int("issues", res.Issues).Msg("leave declared")
	return res, nil
}
