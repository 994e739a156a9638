package client

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryTokenStore(t *testing.T) {
	s := NewMemoryTokenStore()
	ctx := context.Background()

	token, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Save(ctx, "refresh-1"))
	token, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token)

	require.NoError(t, s.Clear(ctx))
	token, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "refresh_token")
	s := NewFileTokenStore(path)
	ctx := context.Background()

	// Missing file reads as no session, not an error.
	token, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	require.NoError(t, s.Save(ctx, "refresh-1"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	// A new store over the same path sees the persisted token.
	token, err = NewFileTokenStore(path).Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "refresh-1", token)

	require.NoError(t, s.Clear(ctx))
	token, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, token)

	// Clearing twice is fine.
	require.NoError(t, s.Clear(ctx))
}
