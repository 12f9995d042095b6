// Package vaultcmd implements offline inspection of the vault store.
package vaultcmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/tinyland-inc/linkvault/cmd/linkvault/internal"
	"github.com/tinyland-inc/linkvault/pkg/config"
	"github.com/tinyland-inc/linkvault/pkg/vault"
)

func NewVaultCommand() *cobra.Command {
	var storePath string

	cmd := &cobra.Command{
		Use:     "vault",
		Short:   "Inspect the token store",
		Example: "linkvault vault list",
	}

	cmd.PersistentFlags().StringVar(&storePath, "store", "", "Path to the vault file (default from config)")

	cmd.AddCommand(
		newListCommand(&storePath),
		newGetCommand(&storePath),
		newStatsCommand(&storePath),
	)

	return cmd
}

func openStore(override string) (*vault.Store, error) {
	path := override
	if path == "" {
		cfg, err := loadConfig()
		if err != nil {
			return nil, err
		}
		path = cfg.StorePath()
	}
	return vault.Open(path)
}

// loadConfig is indirected so command tests can run without a home dir.
var loadConfig = func() (*config.Config, error) {
	return internal.LoadConfig()
}

func newListCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all stored tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(*storePath)
			if err != nil {
				return err
			}

			tokens := store.Tokens()
			sort.Strings(tokens)
			for _, tok := range tokens {
				ref, err := store.Get(tok)
				if err != nil {
					continue
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\tchat=%d\tmessage=%d\t%s\n",
					tok, ref.ChatID, ref.MessageID, ref.CreatedAt)
			}
			return nil
		},
	}
}

func newGetCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <token>",
		Short: "Show the reference stored under a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openStore(*storePath)
			if err != nil {
				return err
			}

			ref, err := store.Get(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token: %s\nchat_id: %d\nmessage_id: %d\n", args[0], ref.ChatID, ref.MessageID)
			if ref.CreatedAt != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "created_at: %s\n", ref.CreatedAt)
			}
			return nil
		},
	}
}

func newStatsCommand(storePath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show store statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore(*storePath)
			if err != nil {
				return err
			}

			chats := map[int64]int{}
			for _, tok := range store.Tokens() {
				ref, err := store.Get(tok)
				if err != nil {
					continue
				}
				chats[ref.ChatID]++
			}

			fmt.Fprintf(cmd.OutOrStdout(), "store: %s\n", store.Path())
			fmt.Fprintf(cmd.OutOrStdout(), "mappings: %d\n", store.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "source chats: %d\n", len(chats))
			return nil
		},
	}
}
