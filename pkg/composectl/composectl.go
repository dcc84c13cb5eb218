// Package composectl starts and stops docker-compose stacks.
//
// Two backends are supported: the docker CLI ("docker compose ...", the
// preferred path because it understands compose files) and the Docker Engine
// API as a degraded fallback when no docker binary is on PATH. All operations
// report success as a bool and log their own diagnostics; a best-effort
// operation reports success even when the underlying command fails.
package composectl

import (
	"context"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/docker/docker/client"

	"github.com/stackvault/stackvault/pkg/plog"
)

// Control is the surface the backup engine needs from a compose backend.
type Control interface {
	// IsRunning reports whether the stack rooted at stackPath has running
	// containers. Probe failures count as not running.
	IsRunning(ctx context.Context, stackPath string) bool

	// StopProject brings the stack down. When check is false the result is
	// advisory and failures still return true.
	StopProject(ctx context.Context, stackPath string, check bool) bool

	// StartProject brings the stack up detached. Same check semantics as
	// StopProject.
	StartProject(ctx context.Context, stackPath string, check bool) bool
}

// ProjectLabel returns the compose project name for a stack directory, which
// compose derives from the directory basename.
func ProjectLabel(stackPath string) string {
	return filepath.Base(filepath.Clean(stackPath))
}

// Detect picks the best available backend: the docker CLI when a docker
// binary is on PATH, otherwise the Engine API. Returns nil when neither is
// reachable; the caller decides whether that is fatal.
func Detect(composeTimeout time.Duration) Control {
	if bin, err := exec.LookPath("docker"); err == nil {
		plog.Info("Using docker CLI for stack control", "binary", bin)
		return NewCLI(bin, composeTimeout)
	}

	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		plog.Error("No docker CLI on PATH and Engine API unreachable", "error", err)
		return nil
	}
	plog.Warn("No docker CLI on PATH, falling back to Engine API (stacks cannot be restarted)")
	return NewEngineAPI(cli)
}
