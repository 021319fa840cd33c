package app

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/confkeep/confkeep/internal/adapter/compressor"
	"github.com/confkeep/confkeep/internal/adapter/exporter"
	"github.com/confkeep/confkeep/internal/adapter/journal"
	"github.com/confkeep/confkeep/internal/adapter/mount"
	"github.com/confkeep/confkeep/internal/adapter/notifier"
	"github.com/confkeep/confkeep/internal/adapter/storage"
	"github.com/confkeep/confkeep/internal/config"
	"github.com/confkeep/confkeep/internal/domain"
	"github.com/confkeep/confkeep/internal/infrastructure/logger"
	"github.com/confkeep/confkeep/internal/infrastructure/runlock"
	"github.com/confkeep/confkeep/internal/infrastructure/scheduler"
	"github.com/confkeep/confkeep/internal/usecase"
)

type App struct {
	config    *config.Config
	logger    *logger.Logger
	scheduler *scheduler.Scheduler
	runUC     *usecase.Run
	lockPath  string
}

func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s for %s", cfg.App.Name, cfg.Device.Hostname)

	// Preconditions: fail before anything is mounted.
	if err := mount.CheckSupport(); err != nil {
		return nil, fmt.Errorf("precondition: %w", err)
	}

	exp, err := buildExporter(cfg)
	if err != nil {
		return nil, err
	}

	mounter := mount.NewManager(
		cfg.Share.Remote,
		cfg.Share.MountPoint,
		cfg.Share.CredentialsFile,
		cfg.Share.Version,
		log,
	)

	shareDir := filepath.Join(cfg.Share.MountPoint, cfg.Share.Subpath)
	jnl := journal.New(filepath.Join(shareDir, "backup.log"))
	retention := usecase.NewRetention(jnl, log, cfg.Retention.Keep)

	offsiteTargets, err := buildOffsiteTargets(cfg, log)
	if err != nil {
		return nil, err
	}

	var notify domain.Notifier
	if cfg.Notify.Enabled {
		notify, err = notifier.NewTelegram(&cfg.Notify)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telegram notifier: %w", err)
		}
		log.Infof("✓ Telegram notifications enabled")
	}

	weekday, err := cfg.Schedule.ParseWeekday()
	if err != nil {
		return nil, fmt.Errorf("invalid schedule: %w", err)
	}

	runUC := usecase.NewRun(
		mounter,
		exp,
		jnl,
		retention,
		offsiteTargets,
		notify,
		log,
		weekday,
		shareDir,
	)

	lockPath := cfg.Lock.Path
	if lockPath == "" {
		lockPath = filepath.Join(os.TempDir(), cfg.App.Name+".lock")
	}

	return &App{
		config:    cfg,
		logger:    log,
		scheduler: scheduler.New(),
		runUC:     runUC,
		lockPath:  lockPath,
	}, nil
}

func buildExporter(cfg *config.Config) (domain.Exporter, error) {
	switch cfg.Device.Exporter {
	case "command":
		if _, err := exec.LookPath(cfg.Device.ExportCommand); err != nil {
			return nil, fmt.Errorf("precondition: export command %q not found: %w",
				cfg.Device.ExportCommand, err)
		}
		return exporter.NewCommand(&cfg.Device, compressor.NewGzip()), nil
	case "files":
		return exporter.NewFiles(&cfg.Device), nil
	default:
		return nil, fmt.Errorf("unsupported exporter type: %s", cfg.Device.Exporter)
	}
}

func buildOffsiteTargets(cfg *config.Config, log *logger.Logger) ([]usecase.OffsiteTarget, error) {
	if !cfg.Offsite.Enabled {
		return nil, nil
	}

	s3Storage, err := storage.NewS3(&cfg.Offsite)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize S3 offsite target: %w", err)
	}
	log.Infof("✓ S3 offsite replication enabled (bucket: %s)", cfg.Offsite.Bucket)

	return []usecase.OffsiteTarget{{Name: "s3", Storage: s3Storage}}, nil
}

// Run executes once by default; with schedule.cron set the process
// stays resident and the internal scheduler triggers runs.
func (a *App) Run(ctx context.Context) error {
	if a.config.Schedule.Cron == "" {
		return a.RunOnce(ctx)
	}

	a.logger.Infof("Resident mode, schedule: %s", a.config.Schedule.Cron)
	if err := a.scheduler.Schedule(a.config.Schedule.Cron, a.RunOnce); err != nil {
		return fmt.Errorf("failed to schedule backup: %w", err)
	}

	a.scheduler.Start()
	<-ctx.Done()
	a.scheduler.Stop()
	return nil
}

// RunOnce performs a single backup attempt under the run lock. A held
// lock means another invocation is still going; that is a skip, not an
// error.
func (a *App) RunOnce(ctx context.Context) error {
	lock, acquired, err := runlock.Acquire(a.lockPath)
	if err != nil {
		return err
	}
	if !acquired {
		a.logger.Warnf("Another backup run is in progress, skipping")
		return nil
	}
	defer func() {
		if err := lock.Release(); err != nil {
			a.logger.Warnf("Failed to release run lock: %v", err)
		}
	}()

	if err := a.runUC.Execute(ctx); err != nil {
		a.logger.Errorf("Backup run failed: %v", err)
		return err
	}
	return nil
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down...")
	a.logger.Close()
}
