package composectl

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/stackvault/stackvault/pkg/plog"
)

// psTimeout bounds the container status probe, which should be near-instant.
const psTimeout = 10 * time.Second

// CLI drives stacks through the docker compose command line.
type CLI struct {
	bin     string
	timeout time.Duration
}

// NewCLI creates a CLI backend using the given docker binary path. timeout
// bounds each stop/start invocation.
func NewCLI(bin string, timeout time.Duration) *CLI {
	return &CLI{bin: bin, timeout: timeout}
}

// compose runs "docker compose <args>" inside stackPath. It returns true on
// success. On failure it returns !check: a checked call fails loudly, an
// unchecked call logs and reports success so best-effort steps continue.
func (c *CLI) compose(ctx context.Context, stackPath string, timeout time.Duration, check bool, args ...string) (bool, string) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.bin, append([]string{"compose"}, args...)...)
	cmd.Dir = stackPath

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return true, stdout.String()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		plog.Error("Compose command timed out",
			"stack", ProjectLabel(stackPath), "args", strings.Join(args, " "), "timeout", timeout)
	} else {
		plog.Warn("Compose command failed",
			"stack", ProjectLabel(stackPath), "args", strings.Join(args, " "),
			"error", err, "stderr", strings.TrimSpace(stderr.String()))
	}
	return !check, stdout.String()
}

// StopProject brings the project down, removing containers and networks, so
// the two backends behave the same way. A plain stop would leave containers
// behind that the Engine API path removes.
func (c *CLI) StopProject(ctx context.Context, stackPath string, check bool) bool {
	ok, _ := c.compose(ctx, stackPath, c.timeout, check, "down")
	return ok
}

func (c *CLI) StartProject(ctx context.Context, stackPath string, check bool) bool {
	ok, _ := c.compose(ctx, stackPath, c.timeout, check, "up", "-d")
	return ok
}

// IsRunning reports whether the stack has any containers up, via
// "docker compose ps -q". A failed probe counts as not running.
func (c *CLI) IsRunning(ctx context.Context, stackPath string) bool {
	ok, out := c.compose(ctx, stackPath, psTimeout, true, "ps", "-q")
	if !ok {
		return false
	}
	return strings.TrimSpace(out) != ""
}
