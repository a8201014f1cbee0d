package reload

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempBinary(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server")
	require.NoError(t, os.WriteFile(path, []byte("v1"), 0o755))
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path, old, old))
	return path
}

func TestWatcher_DetectsRebuild(t *testing.T) {
	path := tempBinary(t)
	w, err := NewWatcher(path, 5*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, w.Changed())

	done := make(chan error, 1)
	go func() { done <- w.Wait(context.Background()) }()

	now := time.Now()
	require.NoError(t, os.Chtimes(path, now, now))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("change not detected")
	}
	assert.True(t, w.Changed())
}

func TestWatcher_FollowsSymlink(t *testing.T) {
	target := tempBinary(t)
	link := filepath.Join(t.TempDir(), "current")
	require.NoError(t, os.Symlink(target, link))

	w, err := NewWatcher(link, time.Second)
	require.NoError(t, err)

	resolved, err := filepath.EvalSymlinks(target)
	require.NoError(t, err)
	assert.Equal(t, resolved, w.Path())
}

func TestWatcher_WaitCancelled(t *testing.T) {
	w, err := NewWatcher(tempBinary(t), 5*time.Millisecond)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Wait(ctx), context.DeadlineExceeded)
}

func TestWatcher_MissingFile(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope"), time.Second)
	assert.Error(t, err)

	path := tempBinary(t)
	w, err := NewWatcher(path, time.Second)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))
	assert.False(t, w.Changed())
}
