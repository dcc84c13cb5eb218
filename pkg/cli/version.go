package cli

import (
	"github.com/spf13/cobra"

	"github.com/stackvault/stackvault/pkg/buildinfo"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", buildinfo.Name, buildinfo.Version)
		},
	}
}
