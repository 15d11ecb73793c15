package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newVersionCmd creates the version command.
func newVersionCmd(info BuildInfo) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "opsdesk %s\n", formatVersion(info))
			return err
		},
	}
}

// AddVersionCommand adds the version command to the root command.
func AddVersionCommand(rootCmd *cobra.Command, info BuildInfo) {
	rootCmd.AddCommand(newVersionCmd(info))
}
