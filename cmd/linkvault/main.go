// linkvault - Telegram deep-link content relay

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal"
	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal/gateway"
	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal/vaultcmd"
	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal/version"
)

func NewLinkvaultCommand() *cobra.Command {
	short := fmt.Sprintf("%s linkvault - Telegram content relay v%s\n\n", internal.Logo, internal.GetVersion())

	cmd := &cobra.Command{
		Use:     "linkvault",
		Short:   short,
		Example: "linkvault gateway",
	}

	cmd.AddCommand(
		gateway.NewGatewayCommand(),
		vaultcmd.NewVaultCommand(),
		version.NewVersionCommand(),
	)

	return cmd
}

func main() {
	cmd := NewLinkvaultCommand()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
