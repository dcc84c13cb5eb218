// Package engine orchestrates stack backups: it snapshots compose config
// files and application data into a single archive per stack, stopping and
// restarting stacks around the data snapshot so files are captured quiescent.
//
// The one invariant the engine defends above all others is that a stack it
// stopped is started again, whether or not the snapshot in between succeeded.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/stackvault/stackvault/pkg/composectl"
	"github.com/stackvault/stackvault/pkg/config"
	"github.com/stackvault/stackvault/pkg/plog"
	"github.com/stackvault/stackvault/pkg/retention"
	"github.com/stackvault/stackvault/pkg/stackdir"
	"github.com/stackvault/stackvault/pkg/tarball"
)

// ErrBackupInProgress is returned when a batch is requested while another
// batch is still running. Only one batch runs at a time.
var ErrBackupInProgress = errors.New("a backup is already in progress")

// timestampFormat stamps staging directories and archive names. It sorts
// lexicographically in chronological order and contains no path-hostile
// characters.
const timestampFormat = "2006-01-02_15-04-05"

// configFileNames are the per-stack files copied into every backup, in
// addition to the optional data snapshot. Missing files are skipped.
var configFileNames = []string{"compose.yml", "compose.yaml", "docker-compose.yml", ".env"}

// snapshotExcludes are basenames omitted from the data snapshot. The compose
// files are excluded here because they are captured separately as config
// files, and VCS metadata has no place in a restore.
var snapshotExcludes = map[string]struct{}{
	".git":               {},
	".gitignore":         {},
	"docker-compose.yml": {},
	"compose.yml":        {},
	"compose.yaml":       {},
	".env":               {},
}

// Archiver is the archive writer the engine drives. Implemented by
// *tarball.Compressor.
type Archiver interface {
	CompressFiltered(ctx context.Context, srcDir, destPath string, exclude map[string]struct{}, rootName string) error
	CompressDir(ctx context.Context, srcDir, destPath, rootName string) error
	Format() tarball.Format
}

// Sweeper runs a retention pass. Implemented by *retention.Sweeper.
type Sweeper interface {
	Sweep(ctx context.Context) error
}

// Results summarizes a backup batch.
type Results struct {
	Succeeded []string
	Failed    []string
}

// Engine coordinates stack control, archiving and retention for backups.
type Engine struct {
	cfg      config.Config
	ctl      composectl.Control
	archiver Archiver
	sweeper  Sweeper
	skipStop map[string]struct{}

	inProgress atomic.Bool
}

// New creates an Engine. ctl may be nil when no docker backend is available;
// data snapshots then proceed without stopping stacks and a warning is logged
// per stack.
func New(cfg config.Config, ctl composectl.Control, archiver Archiver, sweeper Sweeper) *Engine {
	return &Engine{
		cfg:      cfg,
		ctl:      ctl,
		archiver: archiver,
		sweeper:  sweeper,
		skipStop: cfg.SkipStopSet(),
	}
}

// ListStacks returns the names of all known stacks, sorted.
func (e *Engine) ListStacks() []string {
	return stackdir.List(e.cfg.StacksDir)
}

// IsStackRunning reports whether the named stack has running containers.
func (e *Engine) IsStackRunning(ctx context.Context, name string) bool {
	if e.ctl == nil {
		return false
	}
	return e.ctl.IsRunning(ctx, stackdir.Path(e.cfg.StacksDir, name))
}

// InProgress reports whether a backup batch is currently running.
func (e *Engine) InProgress() bool {
	return e.inProgress.Load()
}

// RecentLogs returns up to n recent log lines, oldest first.
func (e *Engine) RecentLogs(n int) []string {
	return plog.Recent(n)
}

// RunRetention runs a retention sweep outside of a backup batch.
func (e *Engine) RunRetention(ctx context.Context) error {
	plog.Info("Starting retention sweep")
	if err := e.sweeper.Sweep(ctx); err != nil {
		return err
	}
	plog.Success("Retention sweep complete")
	return nil
}

// Config returns the engine's effective configuration.
func (e *Engine) Config() config.Config {
	return e.cfg
}

// BackupStacks backs up the named stacks sequentially and sweeps retention
// afterwards. An empty names slice means every stack. A failure in one stack
// is recorded and the batch moves on. Returns ErrBackupInProgress when
// another batch holds the engine.
func (e *Engine) BackupStacks(ctx context.Context, names []string) (Results, error) {
	if !e.inProgress.CompareAndSwap(false, true) {
		return Results{}, ErrBackupInProgress
	}
	defer e.inProgress.Store(false)

	if len(names) == 0 {
		names = e.ListStacks()
	}

	plog.Info("Starting backup batch", "stacks", len(names))
	start := time.Now()

	var res Results
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			plog.Error("Backup batch cancelled", "error", err)
			res.Failed = append(res.Failed, names[i:]...)
			break
		}
		if _, err := e.backupOne(ctx, name); err != nil {
			plog.Error("Backup failed", "stack", name, "error", err)
			res.Failed = append(res.Failed, name)
			continue
		}
		res.Succeeded = append(res.Succeeded, name)
	}

	if err := e.sweeper.Sweep(ctx); err != nil {
		plog.Warn("Retention sweep after batch failed", "error", err)
	}

	elapsed := time.Since(start).Round(time.Second)
	if len(res.Failed) == 0 {
		plog.Success("Backup batch complete",
			"succeeded", len(res.Succeeded), "duration", elapsed.String())
	} else {
		plog.Warn("Backup batch finished with failures",
			"succeeded", len(res.Succeeded), "failed", len(res.Failed), "duration", elapsed.String())
	}
	return res, nil
}

// BackupStack backs up a single stack through the batch path, so the
// in-progress guard and post-sweep apply.
func (e *Engine) BackupStack(ctx context.Context, name string) error {
	res, err := e.BackupStacks(ctx, []string{name})
	if err != nil {
		return err
	}
	if len(res.Failed) > 0 {
		return fmt.Errorf("backup of stack %s failed", name)
	}
	return nil
}

// backupOne produces the archive for one stack and returns its final path.
// A panic in any step is converted into an error so a batch survives it.
func (e *Engine) backupOne(ctx context.Context, name string) (archivePath string, retErr error) {
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("panic during backup of %s: %v", name, r)
		}
	}()

	if !stackdir.Exists(e.cfg.StacksDir, name) {
		return "", fmt.Errorf("unknown stack: %s", name)
	}
	stackPath := stackdir.Path(e.cfg.StacksDir, name)
	ts := time.Now().Format(timestampFormat)

	plog.Info("Backing up stack", "stack", name)

	stagingDir := filepath.Join(e.cfg.BackupDir, retention.StagingPrefix+name+"_"+ts)
	if err := os.MkdirAll(stagingDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stagingDir); err != nil {
			plog.Warn("Could not remove staging directory", "dir", stagingDir, "error", err)
		}
	}()

	e.copyConfigFiles(stackPath, stagingDir, name)

	if e.cfg.IncludeData {
		if _, skip := e.skipStop[name]; skip {
			plog.Info("Skipping data snapshot for skip-stop stack", "stack", name)
		} else if err := e.snapshotData(ctx, name, stackPath, stagingDir); err != nil {
			return "", err
		}
	}

	archivePath = filepath.Join(e.cfg.BackupDir, name+"_"+ts+e.archiver.Format().Extension())
	if err := e.archiver.CompressDir(ctx, stagingDir, archivePath, name); err != nil {
		return "", fmt.Errorf("failed to write archive: %w", err)
	}

	plog.Success("Stack backed up", "stack", name, "archive", filepath.Base(archivePath))
	return archivePath, nil
}

// copyConfigFiles copies the well-known compose files into the staging
// directory. Each file is best-effort: a missing file is normal, a failed
// copy is logged and skipped.
func (e *Engine) copyConfigFiles(stackPath, stagingDir, name string) {
	copied := 0
	for _, fname := range configFileNames {
		src := filepath.Join(stackPath, fname)
		if _, err := os.Stat(src); err != nil {
			continue
		}
		if err := copyFile(src, filepath.Join(stagingDir, fname)); err != nil {
			plog.Warn("Could not copy config file", "stack", name, "file", fname, "error", err)
			continue
		}
		copied++
	}
	if copied == 0 {
		plog.Warn("No compose config files found", "stack", name)
	}
}

// snapshotData archives the stack directory (minus config files and VCS
// metadata) into the staging directory. If the stack is running it is stopped
// first and started again afterwards. The restart is deferred at the moment
// of the stop so it runs on every exit path, including a panic unwinding out
// of the archiver.
func (e *Engine) snapshotData(ctx context.Context, name, stackPath, stagingDir string) error {
	wasRunning := false
	if e.ctl != nil {
		wasRunning = e.ctl.IsRunning(ctx, stackPath)
	} else {
		plog.Warn("No docker backend, snapshotting data without stopping", "stack", name)
	}

	if wasRunning {
		plog.Info("Stopping stack for data snapshot", "stack", name)
		e.ctl.StopProject(ctx, stackPath, false)
		defer func() {
			plog.Info("Restarting stack", "stack", name)
			if !e.ctl.StartProject(ctx, stackPath, true) {
				plog.Error("Stack did not restart cleanly, check it manually", "stack", name)
			}
		}()
	}

	dataArchive := filepath.Join(stagingDir, "data"+e.archiver.Format().Extension())
	if err := e.archiver.CompressFiltered(ctx, stackPath, dataArchive, snapshotExcludes, "data"); err != nil {
		return fmt.Errorf("data snapshot failed: %w", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, info.Mode().Perm())
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
