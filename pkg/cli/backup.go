package cli

import (
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvault/stackvault/pkg/buildinfo"
	"github.com/stackvault/stackvault/pkg/filelock"
)

const lockFileName = ".stackvault.lock"

func newBackupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "backup [stack...]",
		Short: "Back up the named stacks, or all stacks when none are given",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.setup(); err != nil {
				return err
			}

			// Guard against a concurrent run from another process, e.g. a
			// cron job overlapping a manual invocation.
			lock, err := filelock.Acquire(filepath.Join(a.cfg.BackupDir, lockFileName), buildinfo.Name)
			if err != nil {
				return err
			}
			defer lock.Release()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			res, err := a.eng.BackupStacks(ctx, args)
			if err != nil {
				return err
			}
			if len(res.Failed) > 0 {
				return fmt.Errorf("%d of %d stacks failed to back up",
					len(res.Failed), len(res.Failed)+len(res.Succeeded))
			}
			return nil
		},
	}
}
