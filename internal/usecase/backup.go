package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/confkeep/confkeep/internal/domain"
)

// Run is one scheduled backup attempt: gate on the schedule, mount the
// share, export the configuration, journal the attempt, prune old
// archives, replicate offsite, tear the mount down.
type Run struct {
	mounter        Mounter
	exporter       domain.Exporter
	journal        domain.Journal
	retention      *Retention
	offsiteTargets []OffsiteTarget
	notifier       domain.Notifier
	logger         Logger
	weekday        time.Weekday
	shareDir       string
	now            func() time.Time
}

// Mounter is the mount lifecycle contract: mount once, teardown
// guaranteed and idempotent.
type Mounter interface {
	Mount(ctx context.Context) error
	Unmount(ctx context.Context)
}

type OffsiteTarget struct {
	Name    string
	Storage domain.Storage
}

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

func NewRun(
	mounter Mounter,
	exporter domain.Exporter,
	journal domain.Journal,
	retention *Retention,
	offsiteTargets []OffsiteTarget,
	notifier domain.Notifier,
	logger Logger,
	weekday time.Weekday,
	shareDir string,
) *Run {
	return &Run{
		mounter:        mounter,
		exporter:       exporter,
		journal:        journal,
		retention:      retention,
		offsiteTargets: offsiteTargets,
		notifier:       notifier,
		logger:         logger,
		weekday:        weekday,
		shareDir:       shareDir,
		now:            time.Now,
	}
}

// Execute performs one run. A nil return covers full success and both
// skip cases (schedule mismatch, same-day duplicate); errors cover
// mount and export failures.
func (uc *Run) Execute(ctx context.Context) error {
	start := uc.now()
	host := uc.exporter.Host()

	if !IsBackupDay(start, uc.weekday) {
		uc.logger.Infof("[%s] Not the first %s of the month, skipping backup", host, uc.weekday)
		return nil
	}

	// Teardown runs on every exit path and must survive signal
	// cancellation of the run context. It is a no-op when the mount
	// never happened.
	defer uc.mounter.Unmount(context.WithoutCancel(ctx))

	if err := uc.mounter.Mount(ctx); err != nil {
		uc.notify(ctx, fmt.Sprintf("❌ Backup failed for %s: %v", host, err))
		return fmt.Errorf("mount share: %w", err)
	}

	if err := os.MkdirAll(uc.shareDir, 0755); err != nil {
		return fmt.Errorf("create share subpath: %w", err)
	}

	filename := domain.ArchiveFilename(host, start, uc.exporter.Ext())
	archivePath := filepath.Join(uc.shareDir, filename)

	if _, err := os.Stat(archivePath); err == nil {
		uc.logger.Infof("[%s] Backup %s already exists, skipping", host, filename)
		if err := uc.journal.Append(filename, "Backup already exists, skipped"); err != nil {
			uc.logger.Warnf("[%s] Could not journal the skip: %v", host, err)
		}
		return nil
	}

	uc.logger.Infof("[%s] Creating backup: %s", host, filename)
	if err := uc.exporter.Export(ctx, archivePath); err != nil {
		if jerr := uc.journal.Append(filename, "[Warning] Backup failed"); jerr != nil {
			uc.logger.Warnf("[%s] Could not journal the failure: %v", host, jerr)
		}
		uc.notify(ctx, fmt.Sprintf("❌ Backup failed for %s: %v", host, err))
		return fmt.Errorf("export configuration: %w", err)
	}

	info, err := os.Stat(archivePath)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	sizeMB := float64(info.Size()) / (1024 * 1024)
	uc.logger.Infof("[%s] Backup created, size: %.2f MB", host, sizeMB)

	if err := uc.journal.Append(filename, "Backup created successfully"); err != nil {
		uc.logger.Warnf("[%s] Could not journal the backup: %v", host, err)
	}

	if _, err := uc.retention.Prune(uc.shareDir, host); err != nil {
		uc.logger.Errorf("[%s] Retention pruning failed: %v", host, err)
	}

	uc.replicate(ctx, archivePath, filename, host)

	uc.logger.Infof("[%s] Backup completed in %s: %s",
		host, uc.now().Sub(start).Round(time.Second), filename)
	uc.notify(ctx, fmt.Sprintf("✅ Backup created for %s: %s (%.2f MB)", host, filename, sizeMB))

	return nil
}

// replicate copies the archive to the offsite targets and applies the
// same retention there. Offsite failures are logged, never fatal.
func (uc *Run) replicate(ctx context.Context, archivePath, filename, host string) {
	for _, target := range uc.offsiteTargets {
		uc.logger.Infof("[%s] Uploading to %s...", host, target.Name)
		if err := target.Storage.Upload(ctx, archivePath, filename); err != nil {
			uc.logger.Errorf("[%s] Failed to upload to %s: %v", host, target.Name, err)
			continue
		}
		uc.logger.Infof("[%s] Successfully uploaded to %s", host, target.Name)

		uc.retention.PruneOffsite(ctx, target.Name, target.Storage, host)
	}
}

func (uc *Run) notify(ctx context.Context, message string) {
	if uc.notifier == nil {
		return
	}
	if err := uc.notifier.Notify(ctx, message); err != nil {
		uc.logger.Warnf("Failed to send notification: %v", err)
	}
}
