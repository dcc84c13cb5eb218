package cli

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stackvault/stackvault/pkg/buildinfo"
	"github.com/stackvault/stackvault/pkg/plog"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// writeConfig writes a config file rooted in temp dirs and returns its path.
func writeConfig(t *testing.T, stacks ...string) string {
	t.Helper()
	base := t.TempDir()
	stacksDir := filepath.Join(base, "stacks")
	if err := os.Mkdir(stacksDir, 0755); err != nil {
		t.Fatalf("failed to create stacks dir: %v", err)
	}
	for _, name := range stacks {
		dir := filepath.Join(stacksDir, name)
		if err := os.Mkdir(dir, 0755); err != nil {
			t.Fatalf("failed to create stack dir: %v", err)
		}
		if err := os.WriteFile(filepath.Join(dir, "compose.yml"), []byte("services: {}"), 0644); err != nil {
			t.Fatalf("failed to write compose file: %v", err)
		}
	}

	yaml := "stacks_dir: " + stacksDir + "\n" +
		"backup_dir: " + filepath.Join(base, "backups") + "\n" +
		"log_dir: " + filepath.Join(base, "logs") + "\n" +
		"include_data: false\n"
	path := filepath.Join(base, "config.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := runCommand(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, buildinfo.Name) {
		t.Errorf("version output %q missing app name", out)
	}
}

func TestStacksCommandListsStacks(t *testing.T) {
	cfg := writeConfig(t, "nextcloud", "adguard")

	out, err := runCommand(t, "--config", cfg, "stacks")
	if err != nil {
		t.Fatalf("stacks failed: %v", err)
	}

	lines := strings.Fields(out)
	if len(lines) != 2 || lines[0] != "adguard" || lines[1] != "nextcloud" {
		t.Errorf("stacks output = %q, want adguard then nextcloud", out)
	}
}

func TestBackupCommandProducesArchive(t *testing.T) {
	cfg := writeConfig(t, "web")

	if _, err := runCommand(t, "--config", cfg, "backup", "web"); err != nil {
		t.Fatalf("backup failed: %v", err)
	}

	backupDir := filepath.Join(filepath.Dir(cfg), "backups")
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		t.Fatalf("failed to read backup dir: %v", err)
	}
	found := false
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), "web_") && strings.HasSuffix(e.Name(), ".tar.gz") {
			found = true
		}
	}
	if !found {
		t.Error("expected a web_*.tar.gz archive in the backup dir")
	}
}

func TestBackupCommandUnknownStackFails(t *testing.T) {
	cfg := writeConfig(t, "real")

	if _, err := runCommand(t, "--config", cfg, "backup", "ghost"); err == nil {
		t.Error("expected failure for unknown stack")
	}
}

func TestRetentionCommand(t *testing.T) {
	cfg := writeConfig(t)

	if _, err := runCommand(t, "--config", cfg, "retention"); err != nil {
		t.Fatalf("retention failed: %v", err)
	}
}

func TestInvalidConfigFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{not yaml["), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := runCommand(t, "--config", path, "stacks"); err == nil {
		t.Error("expected failure for malformed config")
	}
}
