package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

type PoolStats struct {
	TotalConns    int32 `json:"total_conns"`
	IdleConns     int32 `json:"idle_conns"`
	AcquiredConns int32 `json:"acquired_conns"`
	MaxConns      int32 `json:"max_conns"`
}

// HealthReport is the body of GET /health/db.
type HealthReport struct {
	Status        string    `json:"status"`
	SchemaVersion int       `json:"schema_version"`
	Pool          PoolStats `json:"pool"`
	Error         string    `json:"error,omitempty"`
}

func poolStats(pool *pgxpool.Pool) PoolStats {
	s := pool.Stat()
	return PoolStats{
		TotalConns:    s.TotalConns(),
		IdleConns:     s.IdleConns(),
		AcquiredConns: s.AcquiredConns(),
		MaxConns:      s.MaxConns(),
	}
}

// newHealthReport marks the database unhealthy when it is unreachable or the
// schema has not been migrated.
func newHealthReport(stats PoolStats, version int, err error) (int, HealthReport) {
	r := HealthReport{Status: "healthy", SchemaVersion: version, Pool: stats}
	switch {
	case err != nil:
		r.Status, r.Error = "unhealthy", err.Error()
	case version == 0:
		r.Status, r.Error = "unhealthy", "schema not migrated"
	default:
		return http.StatusOK, r
	}
	return http.StatusServiceUnavailable, r
}

// HealthHandler reports reachability, the applied schema version and pool usage.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		var version int
		err := pool.QueryRow(ctx, `SELECT COALESCE(MAX(version), 0) FROM _migrations`).Scan(&version)
		status, report := newHealthReport(poolStats(pool), version, err)
		return c.JSON(status, report)
	}
}
