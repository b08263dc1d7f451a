package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/medsched/medsched/internal/config"
	"github.com/medsched/medsched/internal/domain/calendar"
	"github.com/medsched/medsched/internal/platform/db"
	"github.com/medsched/medsched/migrations"
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "staffing-server",
		Short:        "Clinic staffing API server",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(calendarCmd())
	rootCmd.AddCommand(regenerateCmd())
	rootCmd.AddCommand(optimizeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the staffing API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, _ := cmd.Flags().GetInt("to")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, migrations.FS)
			var count int
			if target > 0 {
				count, err = migrator.UpTo(ctx, target)
			} else {
				count, err = migrator.Up(ctx)
			}
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().Int("to", 0, "Stop after this version (0 applies all)")
	cmd.AddCommand(upCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.Modified {
						status = "modified"
					}
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	})

	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Manage the calendar index",
	}

	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate the calendar index for a year",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			if year == 0 {
				year = time.Now().Year()
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.calendar.GenerateYear(cmd.Context(), year)
			if err != nil {
				return err
			}
			fmt.Printf("Generated %d day(s) for %d.\n", n, year)
			return nil
		},
	}
	generate.Flags().Int("year", 0, "Calendar year (defaults to the current year)")
	cmd.AddCommand(generate)

	return cmd
}

func regenerateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "regenerate",
		Short: "Rebuild work units and doctor assignments for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rangeFlags(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.staffing.Regenerate(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	addRangeFlags(cmd)
	return cmd
}

func optimizeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Regenerate a range and apply the optimizer's proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			from, to, err := rangeFlags(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.optimizer.Run(cmd.Context(), from, to)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
	addRangeFlags(cmd)
	return cmd
}

func addRangeFlags(cmd *cobra.Command) {
	cmd.Flags().String("from", "", "First date, YYYY-MM-DD (defaults to the current week)")
	cmd.Flags().String("to", "", "Last date, YYYY-MM-DD (defaults to five weeks after from)")
}

func rangeFlags(cmd *cobra.Command) (time.Time, time.Time, error) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	return parseRange(from, to)
}

// parseRange accepts both dates or neither. Zero times select the default range.
func parseRange(from, to string) (time.Time, time.Time, error) {
	from, to = strings.TrimSpace(from), strings.TrimSpace(to)
	if from == "" && to == "" {
		return time.Time{}, time.Time{}, nil
	}
	if from == "" || to == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("--from and --to must be given together")
	}
	f, err := calendar.ParseDate(from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	t, err := calendar.ParseDate(to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return f, t, nil
}

func newLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || cfg.LogLevel == "" {
		level = zerolog.InfoLevel
	}
	return logger.Level(level)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
