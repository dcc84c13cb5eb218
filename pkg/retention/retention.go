// Package retention deletes backup archives and log files that have aged out
// of their configured retention windows.
package retention

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stackvault/stackvault/pkg/plog"
)

// StagingPrefix marks in-progress backup directories inside the backup root.
// The sweeper never touches staging entries; the engine cleans its own.
const StagingPrefix = ".tmp_"

// logFilePrefix matches the daily log files the logger writes.
const logFilePrefix = "backup_"

// Sweeper removes expired archives from the backup directory and expired
// daily logs from the log directory.
type Sweeper struct {
	backupDir     string
	logDir        string
	archiveMaxAge time.Duration
	logMaxAge     time.Duration
	workers       int
}

// NewSweeper creates a sweeper. Retention windows are given in days; a window
// of zero or less disables that sweep. workers bounds concurrent deletes.
func NewSweeper(backupDir, logDir string, archiveDays, logDays, workers int) *Sweeper {
	if workers < 1 {
		workers = 1
	}
	return &Sweeper{
		backupDir:     backupDir,
		logDir:        logDir,
		archiveMaxAge: time.Duration(archiveDays) * 24 * time.Hour,
		logMaxAge:     time.Duration(logDays) * 24 * time.Hour,
		workers:       workers,
	}
}

// Sweep runs both retention passes. Individual delete failures are logged and
// do not abort the sweep; only a failure to read a directory is returned.
func (s *Sweeper) Sweep(ctx context.Context) error {
	now := time.Now()
	if s.archiveMaxAge > 0 {
		if err := s.sweepDir(ctx, s.backupDir, now.Add(-s.archiveMaxAge), s.isExpirableArchive); err != nil {
			return err
		}
	}
	if s.logMaxAge > 0 {
		if err := s.sweepDir(ctx, s.logDir, now.Add(-s.logMaxAge), s.isExpirableLog); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweeper) isExpirableArchive(name string) bool {
	if strings.HasPrefix(name, StagingPrefix) {
		return false
	}
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tar.zst")
}

func (s *Sweeper) isExpirableLog(name string) bool {
	return strings.HasPrefix(name, logFilePrefix) && strings.HasSuffix(name, ".log")
}

func (s *Sweeper) sweepDir(ctx context.Context, dir string, cutoff time.Time, match func(string) bool) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		plog.Error("Retention sweep could not read directory", "dir", dir, "error", err)
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() || !match(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			plog.Warn("Retention sweep could not stat entry", "name", entry.Name(), "error", err)
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}

		deleted++
		target := filepath.Join(dir, entry.Name())
		age := time.Since(info.ModTime()).Round(time.Hour)
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			if err := os.Remove(target); err != nil {
				plog.Warn("Retention delete failed", "file", target, "error", err)
				return nil
			}
			plog.Info("Deleted expired file", "file", target, "age", age.String())
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	if deleted > 0 {
		plog.Info("Retention sweep finished", "dir", dir, "deleted", deleted)
	}
	return nil
}
