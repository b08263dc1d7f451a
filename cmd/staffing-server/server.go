package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/medsched/medsched/internal/config"
	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/domain/optimizer"
	"github.com/medsched/medsched/internal/domain/roster"
	"github.com/medsched/medsched/internal/domain/staffing"
	"github.com/medsched/medsched/internal/platform/auth"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/internal/platform/middleware"
	"github.com/medsched/medsched/internal/platform/validate"
)

// app holds the services shared by the server and the batch commands.
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	pool      *pgxpool.Pool
	calendar  *calendar.Service
	roster    *roster.Service
	staffing  *staffing.Service
	optimizer *optimizer.Service
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := newLogger(cfg)

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, err
	}

	a, err := buildApp(cfg, logger, pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return a, nil
}

func buildApp(cfg *config.Config, logger zerolog.Logger, pool *pgxpool.Pool) (*app, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	calSvc := calendar.NewService(calendar.NewDayRepoPG(pool))
	calSvc.SetLogger(logger.With().Str("component", "calendar").Logger())
	if cfg.HolidaysFile != "" {
		holidays, err := calendar.LoadHolidaysFile(cfg.HolidaysFile)
		if err != nil {
			return nil, err
		}
		calSvc.SetHolidays(holidays)
	}

	staffRepo := roster.NewStaffRepoPG(pool)
	entryRepo := roster.NewEntryRepoPG(pool)
	leaveRepo := roster.NewLeaveRepoPG(pool)
	rosterSvc := roster.NewService(staffRepo, entryRepo, leaveRepo)
	rosterSvc.SetLogger(logger.With().Str("component", "roster").Logger())

	staffingSvc := staffing.NewService(db.NewTxRunner(pool), calSvc, staffing.Repositories{
		Units:       staffing.NewWorkUnitRepoPG(pool),
		Assignments: staffing.NewAssignmentRepoPG(pool),
		Issues:      staffing.NewIssueRepoPG(pool),
		Tiers:       staffing.NewTierRepoPG(pool),
		Labels:      staffing.NewLabelRepoPG(pool),
		Staff:       staffRepo,
		Entries:     entryRepo,
		Leaves:      leaveRepo,
	})
	staffingSvc.SetLogger(logger.With().Str("component", "staffing").Logger())
	staffingSvc.SetRegenerationTimeout(cfg.RegenerationTimeout)
	staffingSvc.SetLocation(loc)

	var runner optimizer.Runner
	if cfg.OptimizerCommand != "" {
		pr := optimizer.NewProcessRunner(cfg.OptimizerCommand, cfg.OptimizerArgs, cfg.OptimizerTimeout)
		pr.SetLogger(logger.With().Str("component", "optimizer").Logger())
		runner = pr
	}
	optSvc := optimizer.NewService(staffingSvc, runner)
	optSvc.SetLogger(logger.With().Str("component", "optimizer").Logger())

	return &app{
		cfg:       cfg,
		logger:    logger,
		pool:      pool,
		calendar:  calSvc,
		roster:    rosterSvc,
		staffing:  staffingSvc,
		optimizer: optSvc,
	}, nil
}

// longRunning reports routes that manage their own deadline.
func longRunning(c echo.Context) bool {
	if c.Request().Method != http.MethodPost {
		return false
	}
	p := c.Path()
	return strings.HasSuffix(p, "/regenerations") || strings.HasSuffix(p, "/optimizer/runs")
}

func newRouter(a *app) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validate.New()

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))
	e.Use(echomw.BodyLimit("1M"))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: a.cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	if a.pool != nil {
		e.GET("/health/db", db.HealthHandler(a.pool))
	}

	jwtCfg := auth.JWTConfig{
		Issuer:     a.cfg.AuthIssuer,
		Audience:   a.cfg.AuthAudience,
		SigningKey: []byte(a.cfg.AuthSigningKey),
	}
	apiV1 := e.Group("/api/v1")
	if a.cfg.IsDev() {
		apiV1.Use(auth.DevAuthMiddleware(jwtCfg))
	} else {
		apiV1.Use(auth.JWTMiddleware(jwtCfg))
	}
	apiV1.Use(middleware.RequestTimeout(a.cfg.RequestTimeout, longRunning))

	calendar.NewHandler(a.calendar).RegisterRoutes(apiV1)
	roster.NewHandler(a.roster).RegisterRoutes(apiV1)
	staffing.NewHandler(a.staffing).RegisterRoutes(apiV1)
	optimizer.NewHandler(a.optimizer).RegisterRoutes(apiV1)

	return e
}

func runServer() error {
	a, err := openApp(context.Background())
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger
	logger.Info().Msg("connected to database")

	e := newRouter(a)

	go func() {
		addr := ":" + a.cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info().Msg("server stopped")
	return nil
}
