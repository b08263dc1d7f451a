package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// migrationLockKey serializes schema changes between server replicas.
const migrationLockKey int64 = 0x6d656473636865 // "medsche"

// Migration is one numbered SQL file, e.g. "003_staffing.sql".
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// MigrationStatus reports whether a migration has been applied and whether the
// file changed since.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
	Modified  bool
}

type appliedMigration struct {
	at       time.Time
	checksum string
}

// Migrator applies the embedded schema files in version order. A run holds a
// transaction-scoped advisory lock and applies all pending files atomically.
type Migrator struct {
	fsys fs.FS
	tx   *TxRunner
}

func NewMigrator(pool *pgxpool.Pool, fsys fs.FS) *Migrator {
	return &Migrator{fsys: fsys, tx: NewTxRunner(pool)}
}

// LoadMigrations parses the .sql files at the root of the filesystem. Files
// whose name does not start with "<number>_" are ignored.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || path.Ext(name) != ".sql" {
			continue
		}
		version, ok := versionOf(name)
		if !ok {
			continue
		}
		body, err := fs.ReadFile(m.fsys, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		sum := sha256.Sum256(body)
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(body),
			Checksum: hex.EncodeToString(sum[:]),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	for i := 1; i < len(out); i++ {
		if out[i].Version == out[i-1].Version {
			return nil, fmt.Errorf("migrations %s and %s share version %d", out[i-1].Name, out[i].Name, out[i].Version)
		}
	}
	return out, nil
}

func versionOf(name string) (int, bool) {
	prefix, _, ok := strings.Cut(name, "_")
	if !ok {
		return 0, false
	}
	v, err := strconv.Atoi(prefix)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Up applies every pending migration and returns how many ran.
func (m *Migrator) Up(ctx context.Context) (int, error) {
	return m.UpTo(ctx, 0)
}

// UpTo applies pending migrations with a version up to target; 0 means all.
// Either every pending file in the run applies or none does.
func (m *Migrator) UpTo(ctx context.Context, target int) (int, error) {
	files, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}

	count := 0
	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		applied, err := m.prepare(ctx)
		if err != nil {
			return err
		}
		q := ConnFromContext(ctx)
		for _, f := range pending(files, applied, target) {
			if _, err := q.Exec(ctx, f.SQL); err != nil {
				return fmt.Errorf("apply %s: %w", f.Name, err)
			}
			if _, err := q.Exec(ctx,
				`INSERT INTO _migrations (version, name, checksum) VALUES ($1, $2, $3)`,
				f.Version, f.Name, f.Checksum); err != nil {
				return fmt.Errorf("record %s: %w", f.Name, err)
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Status lists the known migrations with their applied state.
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	files, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}

	var applied map[int]appliedMigration
	err = m.tx.WithinTx(ctx, func(ctx context.Context) error {
		applied, err = m.prepare(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return statuses(files, applied), nil
}

// prepare locks the migration table, creating it on first use, and returns
// the applied versions.
func (m *Migrator) prepare(ctx context.Context) (map[int]appliedMigration, error) {
	if err := AdvisoryXactLock(ctx, migrationLockKey); err != nil {
		return nil, err
	}
	q := ConnFromContext(ctx)
	if _, err := q.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS _migrations (
			version     INTEGER PRIMARY KEY,
			name        VARCHAR(255) NOT NULL,
			checksum    TEXT NOT NULL DEFAULT '',
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return nil, fmt.Errorf("create _migrations: %w", err)
	}

	rows, err := q.Query(ctx, `SELECT version, checksum, applied_at FROM _migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[int]appliedMigration)
	for rows.Next() {
		var v int
		var a appliedMigration
		if err := rows.Scan(&v, &a.checksum, &a.at); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[v] = a
	}
	return applied, rows.Err()
}

func pending(files []Migration, applied map[int]appliedMigration, target int) []Migration {
	var out []Migration
	for _, f := range files {
		if target > 0 && f.Version > target {
			break
		}
		if _, ok := applied[f.Version]; !ok {
			out = append(out, f)
		}
	}
	return out
}

func statuses(files []Migration, applied map[int]appliedMigration) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		st := MigrationStatus{Version: f.Version, Name: f.Name}
		if a, ok := applied[f.Version]; ok {
			at := a.at
			st.Applied = true
			st.AppliedAt = &at
			st.Modified = a.checksum != "" && a.checksum != f.Checksum
		}
		out = append(out, st)
	}
	return out
}
