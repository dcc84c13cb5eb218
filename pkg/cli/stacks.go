package cli

import (
	"github.com/spf13/cobra"
)

func newStacksCmd(a *app) *cobra.Command {
	var showStatus bool

	cmd := &cobra.Command{
		Use:   "stacks",
		Short: "List the known stacks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.setup(); err != nil {
				return err
			}
			for _, name := range a.eng.ListStacks() {
				if showStatus {
					state := "stopped"
					if a.eng.IsStackRunning(cmd.Context(), name) {
						state = "running"
					}
					cmd.Printf("%-30s %s\n", name, state)
				} else {
					cmd.Println(name)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&showStatus, "status", false, "also query the running state of each stack")
	return cmd
}
