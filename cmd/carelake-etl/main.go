package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carelake/carelake/internal/audit"
	"github.com/carelake/carelake/internal/bronze"
	"github.com/carelake/carelake/internal/config"
	"github.com/carelake/carelake/internal/gold"
	"github.com/carelake/carelake/internal/pipeline"
	"github.com/carelake/carelake/internal/platform/db"
	"github.com/carelake/carelake/internal/server"
	"github.com/carelake/carelake/internal/silver"
)

// version is stamped at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:   "carelake-etl",
		Short: "Hospital lakehouse ETL and operational API",
	}

	rootCmd.AddCommand(runCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

func applyLogLevel(logger zerolog.Logger, level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		return logger
	}
	return logger.Level(lvl)
}

// stageSelection maps the run argument onto the layers to execute.
func stageSelection(arg string) (runBronze, runSilver, runGold bool, err error) {
	switch arg {
	case "", "all":
		return true, true, true, nil
	case "bronze":
		return true, false, false, nil
	case "silver":
		return false, true, false, nil
	case "gold":
		return false, false, true, nil
	default:
		return false, false, false, fmt.Errorf("unknown stage %q (want bronze, silver, gold or all)", arg)
	}
}

func newPipeline(pool *pgxpool.Pool, workers int, logger zerolog.Logger) (*pipeline.Pipeline, error) {
	engine := pipeline.NewEngine(bronze.NewPgReader(pool), audit.NewRejectRepoPG(pool), workers, logger)
	stages := pipeline.DefaultStages(
		silver.NewPatientRepoPG(pool),
		silver.NewDoctorRepoPG(pool),
		silver.NewAppointmentRepoPG(pool),
		silver.NewPrescriptionRepoPG(pool),
		silver.NewBillingRepoPG(pool),
	)
	return pipeline.New(engine, stages, audit.NewRunRepoPG(pool), logger)
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [bronze|silver|gold|all]",
		Short: "Run the medallion pipeline, or a single layer of it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			arg := ""
			if len(args) > 0 {
				arg = args[0]
			}
			runBronze, runSilver, runGold, err := stageSelection(arg)
			if err != nil {
				return err
			}
			truncate, _ := cmd.Flags().GetBool("truncate-bronze")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			logger = applyLogLevel(logger, cfg.LogLevel)

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			if runBronze {
				loader := bronze.NewLoader(pool, audit.NewLoadRepoPG(pool), cfg.BronzeInputDir, logger)
				if _, err := loader.Run(ctx, truncate); err != nil {
					return err
				}
			}
			if runSilver {
				pipe, err := newPipeline(pool, cfg.PipelineWorkers, logger)
				if err != nil {
					return err
				}
				if _, err := pipe.Run(ctx); err != nil {
					return err
				}
			}
			if runGold {
				if _, err := gold.NewBuilder(pool, logger).Build(ctx); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().Bool("truncate-bronze", false, "Truncate bronze tables before staging new files")
	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the operational API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	logger = applyLogLevel(logger, cfg.LogLevel)

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	pipe, err := newPipeline(pool, cfg.PipelineWorkers, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to assemble pipeline")
	}

	srv := server.New(server.Deps{
		Pool:     pool,
		Rejects:  audit.NewRejectRepoPG(pool),
		Runs:     audit.NewRunRepoPG(pool),
		Measures: gold.NewReader(pool),
		Runner:   pipe,
		Version:  version,
	}, cfg.APIJWTSecret, logger)

	// Graceful shutdown
	go func() {
		if err := srv.Start(cfg.Port); err != nil {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal().Err(err).Msg("server shutdown failed")
	}
	logger.Info().Msg("server stopped")
	return nil
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
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, dir)
			statuses, err := migrator.Status(ctx)
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
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("dir", "", "Path to migrations directory (defaults to MIGRATIONS_DIR)")
	cmd.AddCommand(statusCmd)

	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export gold tables to CSV files",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")

			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logger = applyLogLevel(logger, cfg.LogLevel)
			if dir == "" {
				dir = cfg.ExportDir
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			paths, err := gold.NewExporter(pool, dir, logger).Export(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Exported %d file(s) to %s\n", len(paths), dir)
			return nil
		},
	}
	cmd.Flags().String("dir", "", "Directory for CSV files (defaults to EXPORT_DIR)")
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}
}
