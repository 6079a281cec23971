package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"runtime"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"

	"github.com/jrazmi/lexprep/app/lexprep/config"
	"github.com/jrazmi/lexprep/app/lexprep/tui"
	"github.com/jrazmi/lexprep/core/identity"
	"github.com/jrazmi/lexprep/core/notify"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo/stores/tasklocalstore"
	"github.com/jrazmi/lexprep/core/repositories/taskrepo/stores/taskpgxstore"
	"github.com/jrazmi/lexprep/core/taskservice"
	"github.com/jrazmi/lexprep/infrastructure/desktopnotify"
	"github.com/jrazmi/lexprep/infrastructure/googleauth"
	"github.com/jrazmi/lexprep/infrastructure/localstore"
	"github.com/jrazmi/lexprep/infrastructure/postgresdb"
	"github.com/jrazmi/lexprep/schema"
	"github.com/jrazmi/lexprep/sdk/logger"
)

var build = "develop"

var configPath = flag.String("config", "", "path to the config file")

func main() {
	flag.Parse()
	godotenv.Load()
	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Log)

	if err := run(ctx, log, cfg); err != nil {
		log.Error("startup", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger, cfg config.Config) error {
	log.Info("startup", "build", build, "GOMAXPROCS", runtime.GOMAXPROCS(0))

	// Device-local storage backs guest mode and is always available.
	kv, err := localstore.NewFile(cfg.DataFile)
	if err != nil {
		return fmt.Errorf("opening local store: %w", err)
	}
	localTasks := tasklocalstore.NewStore(log, kv)
	settings := notify.NewSettingsStore(log, kv)

	// The remote backend and sign-in are optional; without them the app
	// is a purely local tracker.
	var remote *taskrepo.Repository
	var gate *identity.Gate
	if cfg.Cloud.Enabled {
		pool, err := postgresdb.NewFromEnv(config.EnvPrefix, postgresdb.WithLogger(log.Logger))
		if err != nil {
			return fmt.Errorf("configuring postgres support: %w", err)
		}
		defer func() {
			log.Info("shutdown", "status", "closing database connection")
			pool.Close()
		}()

		if err := schema.Migrate(ctx, pool); err != nil {
			return fmt.Errorf("migrating schema: %w", err)
		}
		remote = taskrepo.NewRepository(log, taskpgxstore.NewStore(log, pool))

		auth, err := googleauth.New(log, cfg.GoogleOptions())
		if err != nil {
			return fmt.Errorf("configuring google auth: %w", err)
		}
		gate = identity.NewGate(log, auth)
	}

	svc := taskservice.New(log, remote, localTasks, taskservice.Options{ExportDir: cfg.ExportDir})
	defer svc.Close()

	notifier := desktopnotify.New(log)
	scheduler := notify.NewScheduler(log, notifier, settings.Load())
	defer scheduler.ClearAll()

	// Every task list change re-arms the alarm set.
	svc.OnChange(func(tasks []taskrepo.Task) {
		scheduler.Schedule(tasks)
	})

	// Identity changes flow into the backend selection.
	if gate != nil {
		gate.OnChange(func(ident *identity.Identity) {
			svc.SetIdentity(ctx, ident)
		})
		gate.Restore(ctx)
	}

	svc.Subscribe(ctx)

	log.Info("startup", "status", "starting interface")
	p := tea.NewProgram(tui.New(log, svc, gate, scheduler, settings))
	p.EnterAltScreen()
	defer p.ExitAltScreen()

	if err := p.Start(); err != nil {
		return fmt.Errorf("running interface: %w", err)
	}

	log.Info("shutdown", "status", "shutdown complete")
	return nil
}
