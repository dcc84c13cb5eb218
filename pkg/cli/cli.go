// Package cli wires the stackvault commands. Every command that touches the
// engine goes through the same setup: load configuration, validate it, check
// the working directories and attach the file logger.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/stackvault/stackvault/pkg/composectl"
	"github.com/stackvault/stackvault/pkg/config"
	"github.com/stackvault/stackvault/pkg/engine"
	"github.com/stackvault/stackvault/pkg/plog"
	"github.com/stackvault/stackvault/pkg/preflight"
	"github.com/stackvault/stackvault/pkg/retention"
	"github.com/stackvault/stackvault/pkg/tarball"
)

// app carries the state shared by the subcommands after setup.
type app struct {
	cfgPath string
	cfg     config.Config
	eng     *engine.Engine
}

// setup loads and validates the configuration, prepares the directories and
// builds the engine. Called by every engine-facing command.
func (a *app) setup() error {
	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	plog.SetLevel(plog.LevelFromString(cfg.LogLevel))
	if err := preflight.EnsureRoots(cfg); err != nil {
		return err
	}
	plog.Configure(cfg.LogDir)

	format, err := tarball.ParseFormat(cfg.Compression.Format)
	if err != nil {
		return err
	}
	level, err := tarball.ParseLevel(cfg.Compression.Level)
	if err != nil {
		return err
	}

	ctl := composectl.Detect(cfg.ComposeTimeout())
	archiver := tarball.NewCompressor(format, level)
	sweeper := retention.NewSweeper(cfg.BackupDir, cfg.LogDir,
		cfg.RetentionDays, cfg.LogRetentionDays, cfg.Performance.DeleteWorkers)

	a.cfg = cfg
	a.eng = engine.New(cfg, ctl, archiver, sweeper)
	return nil
}

// NewRootCmd returns the root command for the stackvault CLI.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "stackvault",
		Short:         "Back up docker-compose stacks with config and data snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", "", "path to config.yaml")

	root.AddCommand(newServeCmd(a))
	root.AddCommand(newBackupCmd(a))
	root.AddCommand(newStacksCmd(a))
	root.AddCommand(newRetentionCmd(a))
	root.AddCommand(newVersionCmd())

	return root
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}
