package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/confkeep/confkeep/internal/domain"
)

// Retention deletes all but the keep most recently dated archives for a
// host, annotating the journal line of every deleted archive.
type Retention struct {
	journal domain.Journal
	logger  Logger
	keep    int
}

func NewRetention(journal domain.Journal, logger Logger, keep int) *Retention {
	return &Retention{
		journal: journal,
		logger:  logger,
		keep:    keep,
	}
}

// Prune scans dir for archives of host and removes the oldest ones
// beyond the retain count. The sort key is the date embedded in the
// filename, not filesystem metadata. Returns the number of deletions.
func (uc *Retention) Prune(dir, host string) (int, error) {
	if uc.keep <= 0 {
		uc.logger.Infof("Retention disabled (keep=%d), nothing pruned", uc.keep)
		return 0, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("list archives: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() {
			names = append(names, entry.Name())
		}
	}

	doomed := selectForDeletion(names, host, uc.keep)
	if len(doomed) == 0 {
		return 0, nil
	}

	deleted := 0
	for _, archive := range doomed {
		found, err := uc.journal.MarkDeleted(archive.Filename)
		if err != nil {
			uc.logger.Warnf("Could not annotate journal for %s: %v", archive.Filename, err)
		} else if !found {
			uc.logger.Warnf("No journal line found for %s", archive.Filename)
		}

		if err := os.Remove(filepath.Join(dir, archive.Filename)); err != nil {
			uc.logger.Errorf("Failed to delete %s: %v", archive.Filename, err)
			continue
		}

		uc.logger.Infof("Deleted old backup: %s", archive.Filename)
		deleted++
	}

	uc.logger.Infof("Retention pruning done, deleted %d archive(s), keeping %d", deleted, uc.keep)
	return deleted, nil
}

// PruneOffsite applies the same keep-N policy to an offsite replica.
// The journal lives on the share and is not annotated here.
func (uc *Retention) PruneOffsite(ctx context.Context, name string, store domain.Storage, host string) {
	if uc.keep <= 0 {
		return
	}

	names, err := store.List(ctx)
	if err != nil {
		uc.logger.Errorf("Failed to list %s archives: %v", name, err)
		return
	}

	for _, archive := range selectForDeletion(names, host, uc.keep) {
		if err := store.Delete(ctx, archive.Filename); err != nil {
			uc.logger.Errorf("Failed to delete %s from %s: %v", archive.Filename, name, err)
			continue
		}
		uc.logger.Infof("Deleted old backup from %s: %s", name, archive.Filename)
	}
}

// selectForDeletion returns the archives of host ranked outside the
// keep most recent by embedded date, oldest first. Same-date ties keep
// the listing order.
func selectForDeletion(names []string, host string, keep int) []domain.Archive {
	var archives []domain.Archive
	for _, name := range names {
		archive, ok := domain.ParseArchiveFilename(name)
		if !ok || archive.Host != host {
			continue
		}
		archives = append(archives, archive)
	}

	sort.SliceStable(archives, func(i, j int) bool {
		return archives[i].Date.Before(archives[j].Date)
	})

	if len(archives) <= keep {
		return nil
	}
	return archives[:len(archives)-keep]
}
