package storage

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("drafts/new.json", []byte(`{"a":1}`))
	require.NoError(t, err)

	data, err := store.Read("drafts/new.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(data))

	f, err := store.Open("drafts/new.json")
	require.NoError(t, err)
	streamed, err := io.ReadAll(f)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	assert.Equal(t, data, streamed)

	require.NoError(t, store.Delete("drafts/new.json"))
	_, err = store.Read("drafts/new.json")
	assert.ErrorIs(t, err, ErrNotExist)
	require.NoError(t, store.Delete("drafts/new.json"))
}

func TestLocalStorageStaysInsideBaseDir(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)

	_, err = store.Save("../../escape.txt", []byte("x"))
	require.NoError(t, err)
	_, statErr := os.Stat(filepath.Join(base, "escape.txt"))
	assert.NoError(t, statErr)

	_, err = store.Save("", []byte("x"))
	assert.Error(t, err)
}

func TestCleanupOlderThan(t *testing.T) {
	base := t.TempDir()
	store, err := NewLocalStorage(base)
	require.NoError(t, err)
	_, err = store.Save("old.csv", []byte("x"))
	require.NoError(t, err)
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(store.Path("old.csv"), past, past))
	_, err = store.Save("fresh.csv", []byte("y"))
	require.NoError(t, err)

	deleted, err := store.CleanupOlderThan(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, []string{"old.csv"}, deleted)
}
