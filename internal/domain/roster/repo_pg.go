package roster

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/db"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// =========== Staff Repository ===========

type staffRepoPG struct{ pool *pgxpool.Pool }

func NewStaffRepoPG(pool *pgxpool.Pool) StaffRepository { return &staffRepoPG{pool: pool} }

func (r *staffRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const staffCols = `id, name, kind, active, created_at`

func scanStaff(row pgx.Row) (*Staff, error) {
	var s Staff
	var kind string
	if err := row.Scan(&s.ID, &s.Name, &kind, &s.Active, &s.CreatedAt); err != nil {
		return nil, err
	}
	s.Kind = StaffKind(kind)
	return &s, nil
}

func (r *staffRepoPG) Create(ctx context.Context, s *Staff) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO staff (id, name, kind, active) VALUES ($1,$2,$3,$4)
		RETURNING created_at`,
		s.ID, s.Name, string(s.Kind), s.Active).Scan(&s.CreatedAt)
}

func (r *staffRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Staff, error) {
	s, err := scanStaff(r.conn(ctx).QueryRow(ctx, `SELECT `+staffCols+` FROM staff WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("staff")
	}
	return s, err
}

func (r *staffRepoPG) ListSchedulable(ctx context.Context) ([]*Staff, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+staffCols+` FROM staff
		WHERE active AND kind IN ('DOCTOR', 'CLINICAL')
		ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list schedulable staff: %w", err)
	}
	defer rows.Close()
	var items []*Staff
	for rows.Next() {
		s, err := scanStaff(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, s)
	}
	return items, rows.Err()
}

// =========== Schedule Entry Repository ===========

type entryRepoPG struct{ pool *pgxpool.Pool }

func NewEntryRepoPG(pool *pgxpool.Pool) EntryRepository { return &entryRepoPG{pool: pool} }

func (r *entryRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const entryCols = `id, staff_id, kind, department_id, activity_id, period, weekday,
	cycle_weeks, week_offset, active_from, active_until, specific_date, parent_id, created_at`

func scanEntry(row pgx.Row) (*ScheduleEntry, error) {
	var e ScheduleEntry
	var kind, period string
	var weekday *int16
	err := row.Scan(&e.ID, &e.StaffID, &kind, &e.DepartmentID, &e.ActivityID, &period, &weekday,
		&e.CycleWeeks, &e.WeekOffset, &e.ActiveFrom, &e.ActiveUntil, &e.SpecificDate, &e.ParentID, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Kind = EntryKind(kind)
	e.Period = Period(period)
	if weekday != nil {
		wd := time.Weekday(*weekday)
		e.Weekday = &wd
	}
	return &e, nil
}

func collectEntries(rows pgx.Rows) ([]*ScheduleEntry, error) {
	defer rows.Close()
	var items []*ScheduleEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *entryRepoPG) Create(ctx context.Context, e *ScheduleEntry) error {
	e.ID = uuid.New()
	var weekday *int16
	if e.Weekday != nil {
		wd := int16(*e.Weekday)
		weekday = &wd
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO schedule_entry (id, staff_id, kind, department_id, activity_id, period, weekday,
			cycle_weeks, week_offset, active_from, active_until, specific_date, parent_id)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
		RETURNING created_at`,
		e.ID, e.StaffID, string(e.Kind), e.DepartmentID, e.ActivityID, string(e.Period), weekday,
		e.CycleWeeks, e.WeekOffset, e.ActiveFrom, e.ActiveUntil, e.SpecificDate, e.ParentID).Scan(&e.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("schedule entry", "an override for this entry and date already exists")
	}
	return err
}

func (r *entryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleEntry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `SELECT `+entryCols+` FROM schedule_entry WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule entry")
	}
	return e, err
}

func (r *entryRepoPG) FindOverride(ctx context.Context, parentID uuid.UUID, date time.Time) (*ScheduleEntry, error) {
	e, err := scanEntry(r.conn(ctx).QueryRow(ctx, `
		SELECT `+entryCols+` FROM schedule_entry
		WHERE kind = 'OVERRIDE' AND parent_id = $1 AND specific_date = $2`, parentID, date))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("schedule entry")
	}
	return e, err
}

func (r *entryRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM schedule_entry WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete schedule entry: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("schedule entry")
	}
	return nil
}

func (r *entryRepoPG) ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*ScheduleEntry, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM schedule_entry WHERE staff_id = $1`, staffID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM schedule_entry WHERE staff_id = $1
		ORDER BY kind, weekday NULLS LAST, specific_date NULLS FIRST, created_at
		LIMIT $2 OFFSET $3`, staffID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectEntries(rows)
	return items, total, err
}

func (r *entryRepoPG) ListRecurring(ctx context.Context, from, to time.Time) ([]*ScheduleEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM schedule_entry
		WHERE kind = 'RECURRING'
		  AND (active_from IS NULL OR active_from <= $2)
		  AND (active_until IS NULL OR active_until >= $1)
		ORDER BY id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list recurring entries: %w", err)
	}
	return collectEntries(rows)
}

func (r *entryRepoPG) ListDated(ctx context.Context, from, to time.Time) ([]*ScheduleEntry, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+entryCols+` FROM schedule_entry
		WHERE kind IN ('OVERRIDE', 'ADDED') AND specific_date BETWEEN $1 AND $2
		ORDER BY specific_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list dated entries: %w", err)
	}
	return collectEntries(rows)
}

// =========== Leave Repository ===========

type leaveRepoPG struct{ pool *pgxpool.Pool }

func NewLeaveRepoPG(pool *pgxpool.Pool) LeaveRepository { return &leaveRepoPG{pool: pool} }

func (r *leaveRepoPG) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

const leaveCols = `id, staff_id, start_date, end_date, period, reason, created_at`

func scanLeave(row pgx.Row) (*Leave, error) {
	var l Leave
	var period *string
	if err := row.Scan(&l.ID, &l.StaffID, &l.StartDate, &l.EndDate, &period, &l.Reason, &l.CreatedAt); err != nil {
		return nil, err
	}
	if period != nil {
		p := Period(*period)
		l.Period = &p
	}
	return &l, nil
}

func collectLeaves(rows pgx.Rows) ([]*Leave, error) {
	defer rows.Close()
	var items []*Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

func (r *leaveRepoPG) Create(ctx context.Context, l *Leave) error {
	l.ID = uuid.New()
	var period *string
	if l.Period != nil {
		p := string(*l.Period)
		period = &p
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO leave (id, staff_id, start_date, end_date, period, reason)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		l.ID, l.StaffID, l.StartDate, l.EndDate, period, l.Reason).Scan(&l.CreatedAt)
}

func (r *leaveRepoPG) ListOverlapping(ctx context.Context, from, to time.Time) ([]*Leave, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+leaveCols+` FROM leave
		WHERE start_date <= $2 AND end_date >= $1
		ORDER BY start_date, id`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list leaves: %w", err)
	}
	return collectLeaves(rows)
}

func (r *leaveRepoPG) ListByStaff(ctx context.Context, staffID uuid.UUID, limit, offset int) ([]*Leave, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM leave WHERE staff_id = $1`, staffID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+leaveCols+` FROM leave WHERE staff_id = $1
		ORDER BY start_date DESC LIMIT $2 OFFSET $3`, staffID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items, err := collectLeaves(rows)
	return items, total, err
}
