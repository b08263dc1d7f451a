package staffing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/platform/apperr"
	"github.com/medsched/medsched/internal/platform/db"
)

// regenerationLockKey is held exclusively by a regeneration and shared by
// ledger writers.
const regenerationLockKey int64 = 0x6d65647363686564

// staffLockClass namespaces the per-staff ledger locks.
const staffLockClass int32 = 0x6d73

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type pgRepo struct{ pool *pgxpool.Pool }

func (r pgRepo) conn(ctx context.Context) db.Querier {
	if c := db.ConnFromContext(ctx); c != nil {
		return c
	}
	return r.pool
}

// =========== Work Unit Repository ===========

type workUnitRepoPG struct{ pgRepo }

func NewWorkUnitRepoPG(pool *pgxpool.Pool) WorkUnitRepository {
	return &workUnitRepoPG{pgRepo{pool: pool}}
}

const unitCols = `id, department_id, day, period, kind, activity_id, created_at`

func scanUnit(row pgx.Row) (*WorkUnit, error) {
	var u WorkUnit
	var period, kind string
	if err := row.Scan(&u.ID, &u.DepartmentID, &u.Date, &period, &kind, &u.ActivityID, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Period = roster.Period(period)
	u.Kind = UnitKind(kind)
	return &u, nil
}

func (r *workUnitRepoPG) Create(ctx context.Context, u *WorkUnit) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO work_unit (id, department_id, day, period, kind, activity_id)
		VALUES ($1,$2,$3,$4,$5,$6)
		RETURNING created_at`,
		u.ID, u.DepartmentID, u.Date, string(u.Period), string(u.Kind), u.ActivityID).Scan(&u.CreatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("work unit", "%s already exists", u.Key())
	}
	return err
}

func (r *workUnitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*WorkUnit, error) {
	u, err := scanUnit(r.conn(ctx).QueryRow(ctx, `SELECT `+unitCols+` FROM work_unit WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("work unit")
	}
	return u, err
}

func (r *workUnitRepoPG) ListRange(ctx context.Context, from, to time.Time) ([]*WorkUnit, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+unitCols+` FROM work_unit
		WHERE day BETWEEN $1 AND $2
		ORDER BY day, period, department_id, activity_id NULLS FIRST`, from, to)
	if err != nil {
		return nil, fmt.Errorf("list work units: %w", err)
	}
	defer rows.Close()
	var items []*WorkUnit
	for rows.Next() {
		u, err := scanUnit(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, u)
	}
	return items, rows.Err()
}

func (r *workUnitRepoPG) DeleteRange(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM work_unit WHERE day BETWEEN $1 AND $2`, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (r *workUnitRepoPG) LockForRegeneration(ctx context.Context) error {
	return db.AdvisoryXactLock(ctx, regenerationLockKey)
}

// =========== Assignment Repository ===========

type assignmentRepoPG struct{ pgRepo }

func NewAssignmentRepoPG(pool *pgxpool.Pool) AssignmentRepository {
	return &assignmentRepoPG{pgRepo{pool: pool}}
}

const assignmentCols = `id, work_unit_id, staff_id, kind, role_id, skill_id, origin, status, created_at, updated_at`

func scanAssignment(row pgx.Row) (*Assignment, error) {
	var a Assignment
	var kind, origin, status string
	err := row.Scan(&a.ID, &a.WorkUnitID, &a.StaffID, &kind, &a.RoleID, &a.SkillID,
		&origin, &status, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	a.Kind, a.Origin, a.Status = AssignmentKind(kind), Origin(origin), Status(status)
	return &a, nil
}

func (r *assignmentRepoPG) Create(ctx context.Context, a *Assignment) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO assignment (id, work_unit_id, staff_id, kind, role_id, skill_id, origin, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		a.ID, a.WorkUnitID, a.StaffID, string(a.Kind), a.RoleID, a.SkillID, string(a.Origin), string(a.Status),
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if isUniqueViolation(err) {
		return apperr.Conflict("assignment", "staff %s is already assigned to work unit %s", a.StaffID, a.WorkUnitID.UUID)
	}
	return err
}

func (r *assignmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Assignment, error) {
	a, err := scanAssignment(r.conn(ctx).QueryRow(ctx, `SELECT `+assignmentCols+` FROM assignment WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperr.NotFound("assignment")
	}
	return a, err
}

func (r *assignmentRepoPG) ListByUnits(ctx context.Context, unitIDs []uuid.UUID) ([]*Assignment, error) {
	if len(unitIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+assignmentCols+` FROM assignment
		WHERE work_unit_id = ANY($1)
		ORDER BY work_unit_id, kind, created_at`, unitIDs)
	if err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	defer rows.Close()
	var items []*Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *assignmentRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE assignment SET status = $3, updated_at = NOW()
		WHERE id = $1 AND status = $2`, id, string(from), string(to))
	if err != nil {
		return fmt.Errorf("update assignment status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return apperr.Conflict("assignment", "assignment %s is no longer %s", id, from)
	}
	return nil
}

func (r *assignmentRepoPG) Reattach(ctx context.Context, id uuid.UUID, unitID uuid.NullUUID, status Status) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE assignment SET work_unit_id = $2, status = $3, updated_at = NOW()
		WHERE id = $1`, id, unitID, string(status))
	if isUniqueViolation(err) {
		return apperr.Conflict("assignment", "work unit %s already has an active assignment for this staff member", unitID.UUID)
	}
	if err != nil {
		return fmt.Errorf("reattach assignment: %w", err)
	}
	return nil
}

func (r *assignmentRepoPG) LockForLedger(ctx context.Context, staffIDs ...uuid.UUID) error {
	if err := db.AdvisoryXactLockShared(ctx, regenerationLockKey); err != nil {
		return err
	}
	keys := make([]string, len(staffIDs))
	for i, id := range staffIDs {
		keys[i] = id.String()
	}
	return db.AdvisoryXactLockKeys(ctx, staffLockClass, keys...)
}

func (r *assignmentRepoPG) DeleteScheduledInRange(ctx context.Context, from, to time.Time) (int64, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		DELETE FROM assignment a
		USING work_unit u
		WHERE a.work_unit_id = u.id AND a.origin = 'SCHEDULE' AND u.day BETWEEN $1 AND $2`, from, to)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// =========== Issue Repository ===========

type issueRepoPG struct{ pgRepo }

func NewIssueRepoPG(pool *pgxpool.Pool) IssueRepository {
	return &issueRepoPG{pgRepo{pool: pool}}
}

const issueCols = `id, issue_type, work_unit_id, assignment_id, staff_id, role_id, day, period, description, created_at`

func scanIssue(row pgx.Row) (*Issue, error) {
	var i Issue
	var typ string
	var period *string
	err := row.Scan(&i.ID, &typ, &i.WorkUnitID, &i.AssignmentID, &i.StaffID, &i.RoleID,
		&i.Date, &period, &i.Description, &i.CreatedAt)
	if err != nil {
		return nil, err
	}
	i.Type = IssueType(typ)
	if period != nil {
		p := roster.Period(*period)
		i.Period = &p
	}
	return &i, nil
}

func (r *issueRepoPG) Create(ctx context.Context, i *Issue) error {
	i.ID = uuid.New()
	var period *string
	if i.Period != nil {
		p := string(*i.Period)
		period = &p
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO scheduling_issue (id, issue_type, work_unit_id, assignment_id, staff_id, role_id, day, period, description)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		i.ID, string(i.Type), i.WorkUnitID, i.AssignmentID, i.StaffID, i.RoleID, i.Date, period, i.Description,
	).Scan(&i.CreatedAt)
}

func (r *issueRepoPG) List(ctx context.Context, f IssueFilter, limit, offset int) ([]*Issue, int, error) {
	where := ` WHERE 1=1`
	var args []interface{}
	idx := 1
	if f.From != nil {
		where += fmt.Sprintf(` AND day >= $%d`, idx)
		args = append(args, *f.From)
		idx++
	}
	if f.To != nil {
		where += fmt.Sprintf(` AND day <= $%d`, idx)
		args = append(args, *f.To)
		idx++
	}
	if f.StaffID != nil {
		where += fmt.Sprintf(` AND staff_id = $%d`, idx)
		args = append(args, *f.StaffID)
		idx++
	}
	if f.Type != "" {
		where += fmt.Sprintf(` AND issue_type = $%d`, idx)
		args = append(args, string(f.Type))
		idx++
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM scheduling_issue`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + issueCols + ` FROM scheduling_issue` + where +
		fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, idx, idx+1)
	args = append(args, limit, offset)

	rows, err := r.conn(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Issue
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, i)
	}
	return items, total, rows.Err()
}

// =========== Tier Repository ===========

type tierRepoPG struct{ pgRepo }

func NewTierRepoPG(pool *pgxpool.Pool) TierRepository {
	return &tierRepoPG{pgRepo{pool: pool}}
}

func (r *tierRepoPG) ListByDepartments(ctx context.Context, departmentIDs []uuid.UUID) ([]*Tier, error) {
	if len(departmentIDs) == 0 {
		return nil, nil
	}
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, department_id, skill_id, role_id, min_doctors, max_doctors, quantity
		FROM staffing_tier WHERE department_id = ANY($1)
		ORDER BY department_id, min_doctors, id`, departmentIDs)
	if err != nil {
		return nil, fmt.Errorf("list staffing tiers: %w", err)
	}
	defer rows.Close()
	var items []*Tier
	for rows.Next() {
		var t Tier
		if err := rows.Scan(&t.ID, &t.DepartmentID, &t.SkillID, &t.RoleID, &t.MinDoctors, &t.MaxDoctors, &t.Quantity); err != nil {
			return nil, err
		}
		items = append(items, &t)
	}
	return items, rows.Err()
}

// =========== Label Repository ===========

type labelRepoPG struct{ pgRepo }

func NewLabelRepoPG(pool *pgxpool.Pool) LabelRepository {
	return &labelRepoPG{pgRepo{pool: pool}}
}

func (r *labelRepoPG) Labels(ctx context.Context) (map[uuid.UUID]string, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, name FROM department
		UNION ALL SELECT id, name FROM activity
		UNION ALL SELECT id, name FROM staff_role
		UNION ALL SELECT id, name FROM skill
		UNION ALL SELECT id, name FROM staff`)
	if err != nil {
		return nil, fmt.Errorf("load labels: %w", err)
	}
	defer rows.Close()
	out := make(map[uuid.UUID]string)
	for rows.Next() {
		var id uuid.UUID
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, err
		}
		out[id] = name
	}
	return out, rows.Err()
}
