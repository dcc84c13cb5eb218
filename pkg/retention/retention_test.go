package retention

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stackvault/stackvault/pkg/plog"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// agedFile creates a file and backdates its modification time.
func agedFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	old := time.Now().Add(-age)
	if err := os.Chtimes(p, old, old); err != nil {
		t.Fatalf("failed to backdate %s: %v", name, err)
	}
	return p
}

func exists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func TestSweepDeletesExpiredArchives(t *testing.T) {
	// Arrange
	backupDir := t.TempDir()
	logDir := t.TempDir()
	old := agedFile(t, backupDir, "nextcloud_2026-08-01_10-00-00.tar.gz", 8*24*time.Hour)
	fresh := agedFile(t, backupDir, "nextcloud_2026-08-29_10-00-00.tar.gz", 6*24*time.Hour)
	oldZst := agedFile(t, backupDir, "grafana_2026-08-01_10-00-00.tar.zst", 9*24*time.Hour)

	// Act
	s := NewSweeper(backupDir, logDir, 7, 14, 2)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	// Assert
	if exists(old) {
		t.Error("expected 8-day-old archive to be deleted")
	}
	if exists(oldZst) {
		t.Error("expected 9-day-old zst archive to be deleted")
	}
	if !exists(fresh) {
		t.Error("expected 6-day-old archive to be retained")
	}
}

func TestSweepSkipsStagingAndForeignFiles(t *testing.T) {
	backupDir := t.TempDir()
	staging := agedFile(t, backupDir, ".tmp_nextcloud_old.tar.gz", 30*24*time.Hour)
	foreign := agedFile(t, backupDir, "notes.txt", 30*24*time.Hour)

	s := NewSweeper(backupDir, t.TempDir(), 7, 14, 2)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if !exists(staging) {
		t.Error("expected staging entry to be left alone")
	}
	if !exists(foreign) {
		t.Error("expected non-archive file to be left alone")
	}
}

func TestSweepDeletesExpiredLogs(t *testing.T) {
	logDir := t.TempDir()
	old := agedFile(t, logDir, "backup_2026-08-01.log", 15*24*time.Hour)
	fresh := agedFile(t, logDir, "backup_2026-08-28.log", 2*24*time.Hour)
	foreign := agedFile(t, logDir, "syslog.log", 30*24*time.Hour)

	s := NewSweeper(t.TempDir(), logDir, 7, 14, 2)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if exists(old) {
		t.Error("expected 15-day-old log to be deleted")
	}
	if !exists(fresh) {
		t.Error("expected 2-day-old log to be retained")
	}
	if !exists(foreign) {
		t.Error("expected foreign log file to be left alone")
	}
}

func TestSweepZeroDaysDisables(t *testing.T) {
	backupDir := t.TempDir()
	ancient := agedFile(t, backupDir, "x_2020-01-01_00-00-00.tar.gz", 2000*24*time.Hour)

	s := NewSweeper(backupDir, t.TempDir(), 0, 0, 2)
	if err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("Sweep failed: %v", err)
	}

	if !exists(ancient) {
		t.Error("expected retention 0 to disable the sweep")
	}
}

func TestSweepMissingDirsIsNoError(t *testing.T) {
	base := t.TempDir()
	s := NewSweeper(filepath.Join(base, "nope"), filepath.Join(base, "nada"), 7, 14, 2)
	if err := s.Sweep(context.Background()); err != nil {
		t.Errorf("expected missing dirs to be tolerated, got %v", err)
	}
}
