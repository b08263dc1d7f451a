package staffing

import (
	"context"
	"fmt"
	"time"

	ics "github.com/arran4/golang-ical"
	"github.com/google/uuid"

	"github.com/medsched/medsched/internal/domain/roster"
)

// Half-day boundaries in clinic local time, as hour of day.
var periodHours = map[roster.Period][2]int{
	roster.PeriodAM: {8, 12},
	roster.PeriodPM: {13, 17},
}

// StaffCalendar renders the active assignments of one staff member on units
// dated in [from, to] as an iCalendar feed.
func (s *Service) StaffCalendar(ctx context.Context, staffID uuid.UUID, from, to time.Time) (string, error) {
	if err := validateRange(from, to); err != nil {
		return "", err
	}
	staff, err := s.repos.Staff.GetByID(ctx, staffID)
	if err != nil {
		return "", err
	}
	units, err := s.repos.Units.ListRange(ctx, from, to)
	if err != nil {
		return "", err
	}
	byID := make(map[uuid.UUID]*WorkUnit, len(units))
	for _, u := range units {
		byID[u.ID] = u
	}
	var assignments []*Assignment
	if len(units) > 0 {
		if assignments, err = s.repos.Assignments.ListByUnits(ctx, unitIDs(units)); err != nil {
			return "", err
		}
	}
	labels, err := s.repos.Labels.Labels(ctx)
	if err != nil {
		return "", err
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//medsched//staffing//EN")
	cal.SetName(staff.Name)

	stamp := s.now().UTC()
	for _, a := range assignments {
		if a.StaffID != staffID || !a.Active() {
			continue
		}
		u := byID[a.WorkUnitID.UUID]
		start, end := s.periodBounds(u.Date, u.Period)

		summary := labels[u.DepartmentID]
		if summary == "" {
			summary = u.DepartmentID.String()
		}
		if u.ActivityID != nil {
			if act := labels[*u.ActivityID]; act != "" {
				summary += " - " + act
			}
		}

		ev := cal.AddEvent(a.ID.String() + "@medsched")
		ev.SetDtStampTime(stamp)
		ev.SetStartAt(start)
		ev.SetEndAt(end)
		ev.SetSummary(summary)
		ev.SetDescription(fmt.Sprintf("%s %s assignment (%s)", u.Kind, a.Kind, a.Status))
		ev.SetProperty(ics.ComponentPropertyStatus, icsStatus(a.Status))
	}
	return cal.Serialize(), nil
}

func (s *Service) periodBounds(date time.Time, p roster.Period) (time.Time, time.Time) {
	h := periodHours[p]
	y, m, d := date.Date()
	return time.Date(y, m, d, h[0], 0, 0, 0, s.location), time.Date(y, m, d, h[1], 0, 0, 0, s.location)
}

func icsStatus(st Status) string {
	if st == StatusProposed {
		return "TENTATIVE"
	}
	return "CONFIRMED"
}
