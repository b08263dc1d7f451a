package calendar

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/db"
)

type dayRepoPG struct{ pool *pgxpool.Pool }

func NewDayRepoPG(pool *pgxpool.Pool) DayRepository { return &dayRepoPG{pool: pool} }

func (r *dayRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const dayCols = `day, weekday, iso_year, iso_week, is_weekend, is_holiday, holiday_name`

func scanDay(row pgx.Row) (*Day, error) {
	var d Day
	var wd int16
	var week int16
	if err := row.Scan(&d.Date, &wd, &d.ISOYear, &week, &d.IsWeekend, &d.IsHoliday, &d.HolidayName); err != nil {
		return nil, err
	}
	d.Weekday = time.Weekday(wd)
	d.ISOWeek = int(week)
	return &d, nil
}

func (r *dayRepoPG) Upsert(ctx context.Context, days []*Day) error {
	q := r.conn(ctx)
	for _, d := range days {
		_, err := q.Exec(ctx, `
			INSERT INTO calendar_day (`+dayCols+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT (day) DO UPDATE SET
				weekday = EXCLUDED.weekday,
				iso_year = EXCLUDED.iso_year,
				iso_week = EXCLUDED.iso_week,
				is_weekend = EXCLUDED.is_weekend,
				is_holiday = calendar_day.is_holiday OR EXCLUDED.is_holiday,
				holiday_name = COALESCE(EXCLUDED.holiday_name, calendar_day.holiday_name)`,
			d.Date, int16(d.Weekday), d.ISOYear, int16(d.ISOWeek), d.IsWeekend, d.IsHoliday, d.HolidayName)
		if err != nil {
			return fmt.Errorf("upsert calendar day %s: %w", d.Date.Format(DateLayout), err)
		}
	}
	return nil
}

func (r *dayRepoPG) GetByDate(ctx context.Context, date time.Time) (*Day, error) {
	d, err := scanDay(r.conn(ctx).QueryRow(ctx, `SELECT `+dayCols+` FROM calendar_day WHERE day = $1`, Truncate(date)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("calendar day")
	}
	return d, err
}

func (r *dayRepoPG) SetHoliday(ctx context.Context, date time.Time, holiday bool, name *string) error {
	if !holiday {
		name = nil
	}
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE calendar_day SET is_holiday = $2, holiday_name = $3 WHERE day = $1`,
		Truncate(date), holiday, name)
	if err != nil {
		return fmt.Errorf("set holiday: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("calendar day")
	}
	return nil
}

func (r *dayRepoPG) ListRange(ctx context.Context, from, to time.Time) ([]*Day, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+dayCols+` FROM calendar_day WHERE day BETWEEN $1 AND $2 ORDER BY day`,
		Truncate(from), Truncate(to))
	if err != nil {
		return nil, fmt.Errorf("list calendar days: %w", err)
	}
	defer rows.Close()
	var items []*Day
	for rows.Next() {
		d, err := scanDay(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}
