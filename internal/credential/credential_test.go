package credential

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatic(t *testing.T) {
	s := NewStatic("  abc \n")
	assert.Equal(t, "abc", s.Token())
	s.ClearSession()
	assert.Empty(t, s.Token())
}

func TestFile_MissingIsEmpty(t *testing.T) {
	f, err := NewFile(filepath.Join(t.TempDir(), "token"), nil)
	require.NoError(t, err)
	assert.Empty(t, f.Token())
}

func TestFile_LoadAndClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token")
	require.NoError(t, os.WriteFile(path, []byte("secret\n"), 0o600))

	f, err := NewFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "secret", f.Token())

	f.ClearSession()
	assert.Empty(t, f.Token())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is harmless.
	f.ClearSession()
}

func TestFile_UnreadableIsError(t *testing.T) {
	dir := t.TempDir()
	_, err := NewFile(dir, nil)
	require.Error(t, err)
}

func TestFile_WatchReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")

	f, err := NewFile(path, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 8)
	done := make(chan error, 1)
	go func() {
		done <- f.Watch(ctx, func() {
			select {
			case changed <- struct{}{}:
			default:
			}
		})
	}()

	// The watcher is registered asynchronously; keep writing until it notices.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("fresh"), 0o600)
		return f.Token() == "fresh"
	}, 3*time.Second, 50*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other"), []byte("x"), 0o600))
	require.NoError(t, os.Remove(path))
	require.Eventually(t, func() bool { return f.Token() == "" }, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.NotEmpty(t, changed)
}
