package vaultcmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tinyland-inc/linkvault/pkg/vault"
)

func TestNewVaultCommand(t *testing.T) {
	cmd := NewVaultCommand()

	require.NotNil(t, cmd)

	assert.Equal(t, "vault", cmd.Use)
	assert.True(t, cmd.HasSubCommands())
	assert.True(t, cmd.HasExample())

	assert.NotNil(t, cmd.PersistentFlags().Lookup("store"))

	for _, sub := range []string{"list", "get", "stats"} {
		found, _, err := cmd.Find([]string{sub})
		require.NoError(t, err)
		require.NotNil(t, found)
	}
}

func seedStore(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vault.json")
	store, err := vault.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Put("abc123XY", vault.Reference{ChatID: -1001234567890, MessageID: 42}))
	require.NoError(t, store.Put("def456ZW", vault.Reference{ChatID: -1001234567890, MessageID: 43}))
	return path
}

func runVault(t *testing.T, args ...string) string {
	t.Helper()
	cmd := NewVaultCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestListCommand(t *testing.T) {
	path := seedStore(t)

	out := runVault(t, "--store", path, "list")
	assert.Contains(t, out, "abc123XY")
	assert.Contains(t, out, "def456ZW")
	assert.Contains(t, out, "message=42")
}

func TestGetCommand(t *testing.T) {
	path := seedStore(t)

	out := runVault(t, "--store", path, "get", "abc123XY")
	assert.Contains(t, out, "chat_id: -1001234567890")
	assert.Contains(t, out, "message_id: 42")
}

func TestGetCommand_UnknownToken(t *testing.T) {
	path := seedStore(t)

	cmd := NewVaultCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--store", path, "get", "missing99"})
	err := cmd.Execute()
	require.ErrorIs(t, err, vault.ErrNotFound)
}

func TestStatsCommand(t *testing.T) {
	path := seedStore(t)

	out := runVault(t, "--store", path, "stats")
	assert.Contains(t, out, "mappings: 2")
	assert.Contains(t, out, "source chats: 1")
}
