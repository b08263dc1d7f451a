package calendar

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/platform/apperr"
)

type Service struct {
	days     DayRepository
	holidays map[string]string
	logger   zerolog.Logger
}

func NewService(days DayRepository) *Service {
	return &Service{days: days, holidays: map[string]string{}, logger: zerolog.Nop()}
}

func (s *Service) SetLogger(l zerolog.Logger) { s.logger = l }

// SetHolidays replaces the holiday list applied by GenerateYear.
func (s *Service) SetHolidays(h map[string]string) {
	if h == nil {
		h = map[string]string{}
	}
	s.holidays = h
}

// GenerateYear writes the calendar index for year and returns the number of days.
func (s *Service) GenerateYear(ctx context.Context, year int) (int, error) {
	if year < 1900 || year > 2200 {
		return 0, apperr.Validation("year", "must be between 1900 and 2200, got %d", year)
	}
	days := Generate(year, s.holidays)
	if err := s.days.Upsert(ctx, days); err != nil {
		return 0, err
	}
	s.logger.Info().Int("year", year).Int("days", len(days)).Msg("calendar generated")
	return len(days), nil
}

func (s *Service) SetHoliday(ctx context.Context, date time.Time, holiday bool, name *string) (*Day, error) {
	if err := s.days.SetHoliday(ctx, date, holiday, name); err != nil {
		return nil, err
	}
	return s.days.GetByDate(ctx, date)
}

func (s *Service) ListRange(ctx context.Context, from, to time.Time) ([]*Day, error) {
	if to.Before(from) {
		return nil, apperr.Validation("to", "must not be before from")
	}
	return s.days.ListRange(ctx, from, to)
}

// Index loads [from, to] and fails when the calendar has not been generated
// for every date in the range.
func (s *Service) Index(ctx context.Context, from, to time.Time) (*Index, error) {
	days, err := s.ListRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	idx := NewIndex(days)
	if missing := idx.Missing(from, to); len(missing) > 0 {
		return nil, apperr.Validation("range", "calendar index has no entry for %s (%d missing days); generate the calendar first",
			missing[0].Format(DateLayout), len(missing))
	}
	return idx, nil
}
