package cli

import (
	"github.com/spf13/cobra"
)

func newRetentionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "retention",
		Short: "Delete expired backup archives and log files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			return a.eng.RunRetention(cmd.Context())
		},
	}
}
