package calendar

import (
	"context"
	"time"
)

type DayRepository interface {
	// Upsert inserts days and refreshes the derived fields of existing ones.
	// Existing holiday flags survive unless the new day is itself a holiday.
	Upsert(ctx context.Context, days []*Day) error
	GetByDate(ctx context.Context, date time.Time) (*Day, error)
	SetHoliday(ctx context.Context, date time.Time, holiday bool, name *string) error
	ListRange(ctx context.Context, from, to time.Time) ([]*Day, error)
}
