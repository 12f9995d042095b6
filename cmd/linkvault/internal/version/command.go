package version

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "linkvault %s\n", internal.FormatVersion())
			build, goVer := internal.FormatBuildInfo()
			if build != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "built: %s\n", build)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "go: %s\n", goVer)
		},
	}
}
