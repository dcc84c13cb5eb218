// Package preflight validates the working directories before the engine or
// server starts. The checks are designed to produce friendlier errors than
// letting the first backup fail halfway through.
package preflight

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/stackvault/stackvault/pkg/config"
	"github.com/stackvault/stackvault/pkg/plog"
)

// minFreeBytes is the free-space floor on the backup target below which we
// warn. Backups still proceed; running out of disk mid-archive is handled by
// the archiver's temp-file cleanup.
const minFreeBytes = 512 * 1024 * 1024

// EnsureRoots creates the three working directories if needed and verifies
// the stacks root is a readable directory. This is the only startup-blocking
// filesystem check.
func EnsureRoots(cfg config.Config) error {
	if err := os.MkdirAll(cfg.StacksDir, 0755); err != nil {
		return fmt.Errorf("failed to create stacks directory %s: %w", cfg.StacksDir, err)
	}
	if err := checkSourceAccessible(cfg.StacksDir); err != nil {
		return err
	}
	for _, dir := range []string{cfg.BackupDir, cfg.LogDir} {
		if err := ensureWritable(dir); err != nil {
			return err
		}
	}

	if free, err := freeSpace(cfg.BackupDir); err == nil && free > 0 && free < minFreeBytes {
		plog.Warn("Backup target is low on disk space",
			"dir", cfg.BackupDir, "free_mb", free/(1024*1024))
	}
	return nil
}

// checkSourceAccessible validates that the stacks root is a directory.
func checkSourceAccessible(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot stat stacks directory %s: %w", path, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("stacks path %s is not a directory", path)
	}
	return nil
}

// ensureWritable creates the directory if needed and proves it is writable by
// creating and removing a probe file.
func ensureWritable(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", path, err)
	}

	probe := filepath.Join(path, ".stackvault-writetest.tmp")
	f, err := os.Create(probe)
	if err != nil {
		return fmt.Errorf("directory %s is not writable: %w", path, err)
	}
	f.Close()
	_ = os.Remove(probe)
	return nil
}
