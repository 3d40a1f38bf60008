package filestore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalUploadAndDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	store, err := NewLocal(dir)
	require.NoError(t, err)

	loc, err := store.Upload(context.Background(), "leaf.png", []byte("pixels"), "image/png")
	require.NoError(t, err)
	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "pixels", string(data))

	_, err = store.Upload(context.Background(), "leaf.png", []byte("again"), "image/png")
	assert.Error(t, err)

	require.NoError(t, store.Delete(context.Background(), loc))
	assert.NoFileExists(t, loc)
	assert.NoError(t, store.Delete(context.Background(), loc))
}

func TestLocalRejectsEscapingNames(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	_, err = store.Upload(context.Background(), "../escape.png", []byte("x"), "image/png")
	assert.Error(t, err)
	assert.Error(t, store.Delete(context.Background(), "/etc/passwd"))
}
