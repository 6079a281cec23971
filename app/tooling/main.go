package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/jrazmi/lexprep/app/tooling/commands"
	"github.com/jrazmi/lexprep/infrastructure/postgresdb"
	"github.com/jrazmi/lexprep/sdk/logger"
)

var appName = "LEXPREP"

func processCommands(ctx context.Context, log *logger.Logger, command string, args []string, pg *pgxpool.Pool) error {
	switch command {
	case "migrate":
		log.Info("running migration")
		if err := commands.Migrate(pg, log.Logger); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		log.Info("migration completed successfully")
		return nil

	case "seed":
		log.Info("seeding sample routine")
		if err := commands.Seed(pg, log.Logger, args); err != nil {
			return fmt.Errorf("seed failed: %w", err)
		}
		return nil

	default:
		printHelp()
		return nil
	}
}

func printHelp() {
	fmt.Println("Available commands:")
	fmt.Println("  migrate - create the task schema in the database")
	fmt.Println("  seed    - insert a sample daily routine for a user (seed <uid>)")
}

func run(ctx context.Context, log *logger.Logger) error {
	log.Info("startup", "GOMAXPROCS", runtime.GOMAXPROCS(0))

	var command string
	if len(os.Args) > 1 {
		command = os.Args[1]
	}
	if command == "help" || command == "--help" || command == "-h" {
		printHelp()
		return nil
	}

	pg, err := postgresdb.NewFromEnv(appName, postgresdb.WithTracer(postgresdb.NewLoggingQueryTracer(log.Logger)))
	if err != nil {
		return fmt.Errorf("configuring postgres support: %w", err)
	}
	defer func() {
		log.Info("shutdown", "status", "closing database connection")
		pg.Close()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan error, 1)
	go func() {
		args := []string{}
		if len(os.Args) > 2 {
			args = os.Args[2:]
		}
		done <- processCommands(ctx, log, command, args, pg)
	}()

	select {
	case err := <-done:
		return err

	case sig := <-shutdown:
		log.Info("shutdown", "status", "shutdown started", "signal", sig)

		shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		select {
		case err := <-done:
			return err
		case <-shutdownCtx.Done():
			return fmt.Errorf("shutdown timeout: %w", shutdownCtx.Err())
		}
	}
}

func main() {
	godotenv.Load()
	ctx := context.Background()

	log, err := logger.NewFromEnv(appName)
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	if err = run(ctx, log); err != nil {
		log.Error("startup", "error", err)
		os.Exit(1)
	}
}
