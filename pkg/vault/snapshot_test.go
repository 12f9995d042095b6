package vault

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSnapshotter_InvalidSchedule(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "vault.json"))
	require.NoError(t, err)

	_, err = NewSnapshotter(s, "not a cron expr", 3)
	require.Error(t, err)
}

func TestSnapshot_WritesAndPrunes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("abc123XY", Reference{ChatID: 7, MessageID: 9}))

	sn, err := NewSnapshotter(s, "0 3 * * *", 1)
	require.NoError(t, err)

	first, err := sn.Snapshot()
	require.NoError(t, err)
	assert.FileExists(t, first)

	second, err := sn.Snapshot()
	require.NoError(t, err)

	matches, err := filepath.Glob(path + ".*.bak")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, second, matches[0])
}

func TestSnapshot_ContentMatchesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.json")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Put("abc123XY", Reference{ChatID: -100, MessageID: 5}))

	sn, err := NewSnapshotter(s, "* * * * *", 3)
	require.NoError(t, err)

	dst, err := sn.Snapshot()
	require.NoError(t, err)

	// A snapshot must load as a valid store on its own.
	restored, err := Open(dst)
	require.NoError(t, err)
	got, err := restored.Get("abc123XY")
	require.NoError(t, err)
	assert.Equal(t, 5, got.MessageID)
}
