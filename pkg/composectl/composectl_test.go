package composectl

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stackvault/stackvault/pkg/plog"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeDocker writes a shell script standing in for the docker binary and
// returns its path.
func fakeDocker(t *testing.T, script string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake docker scripts need a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "docker")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0755); err != nil {
		t.Fatalf("failed to write fake docker: %v", err)
	}
	return path
}

func TestProjectLabel(t *testing.T) {
	if got := ProjectLabel("/opt/stacks/nextcloud"); got != "nextcloud" {
		t.Errorf("ProjectLabel = %q, want nextcloud", got)
	}
	if got := ProjectLabel("/opt/stacks/nextcloud/"); got != "nextcloud" {
		t.Errorf("ProjectLabel with trailing slash = %q, want nextcloud", got)
	}
}

func TestCLIStopStartSuccess(t *testing.T) {
	bin := fakeDocker(t, "exit 0")
	cli := NewCLI(bin, 5*time.Second)
	stack := t.TempDir()

	if !cli.StopProject(context.Background(), stack, true) {
		t.Error("expected checked stop to succeed")
	}
	if !cli.StartProject(context.Background(), stack, true) {
		t.Error("expected checked start to succeed")
	}
}

func TestCLIStopIsDownEquivalent(t *testing.T) {
	// Both backends must tear the project down the same way: the Engine API
	// path removes containers and networks, so the CLI path must use "down",
	// not "stop".
	argsFile := filepath.Join(t.TempDir(), "args")
	t.Setenv("ARGSFILE", argsFile)
	bin := fakeDocker(t, "echo \"$@\" > \"$ARGSFILE\"")
	cli := NewCLI(bin, 5*time.Second)

	if !cli.StopProject(context.Background(), t.TempDir(), true) {
		t.Fatal("StopProject failed")
	}

	got, err := os.ReadFile(argsFile)
	if err != nil {
		t.Fatalf("fake docker did not record args: %v", err)
	}
	if strings.TrimSpace(string(got)) != "compose down" {
		t.Errorf("docker invoked with %q, want \"compose down\"", strings.TrimSpace(string(got)))
	}
}

func TestCLICheckedFailure(t *testing.T) {
	bin := fakeDocker(t, "exit 1")
	cli := NewCLI(bin, 5*time.Second)
	stack := t.TempDir()

	if cli.StopProject(context.Background(), stack, true) {
		t.Error("expected checked stop to report failure")
	}
}

func TestCLIUncheckedFailureIsNonFatal(t *testing.T) {
	bin := fakeDocker(t, "exit 1")
	cli := NewCLI(bin, 5*time.Second)
	stack := t.TempDir()

	if !cli.StopProject(context.Background(), stack, false) {
		t.Error("expected unchecked stop to report success despite exit 1")
	}
	if !cli.StartProject(context.Background(), stack, false) {
		t.Error("expected unchecked start to report success despite exit 1")
	}
}

func TestCLIIsRunning(t *testing.T) {
	stack := t.TempDir()

	running := NewCLI(fakeDocker(t, "echo abc123def456"), 5*time.Second)
	if !running.IsRunning(context.Background(), stack) {
		t.Error("expected running when ps prints container IDs")
	}

	stopped := NewCLI(fakeDocker(t, "echo"), 5*time.Second)
	if stopped.IsRunning(context.Background(), stack) {
		t.Error("expected not running when ps prints nothing")
	}

	broken := NewCLI(fakeDocker(t, "exit 1"), 5*time.Second)
	if broken.IsRunning(context.Background(), stack) {
		t.Error("expected not running when ps fails")
	}
}

func TestCLITimeout(t *testing.T) {
	bin := fakeDocker(t, "sleep 10")
	cli := NewCLI(bin, 100*time.Millisecond)
	stack := t.TempDir()

	start := time.Now()
	ok := cli.StopProject(context.Background(), stack, true)
	if ok {
		t.Error("expected checked stop to fail on timeout")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not enforced, took %v", elapsed)
	}
}

func TestCLIRunsInStackDir(t *testing.T) {
	// The fake prints its working directory; IsRunning sees non-empty
	// output only if the command ran somewhere, and we verify where.
	bin := fakeDocker(t, "pwd > \"$DIRFILE\"")
	stack := t.TempDir()
	dirFile := filepath.Join(t.TempDir(), "dir")
	t.Setenv("DIRFILE", dirFile)

	cli := NewCLI(bin, 5*time.Second)
	cli.StopProject(context.Background(), stack, false)

	got, err := os.ReadFile(dirFile)
	if err != nil {
		t.Fatalf("fake docker did not record working dir: %v", err)
	}
	recorded := filepath.Clean(string(got[:len(got)-1]))
	resolved, _ := filepath.EvalSymlinks(stack)
	if recorded != filepath.Clean(stack) && recorded != resolved {
		t.Errorf("command ran in %q, want %q", recorded, stack)
	}
}
