package app

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/dashsync/internal/cache"
	"github.com/five82/dashsync/internal/dashboardtest"
	"github.com/five82/dashsync/internal/state"
	"github.com/five82/dashsync/internal/status"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func writeConfig(t *testing.T, dir, baseURL string) string {
	t.Helper()
	contents := fmt.Sprintf(`base_url = %q
token_file = %q
cache_path = %q
poll_seconds = 60
initial_full_delay_ms = 50

[log]
file = %q
level = "debug"
`, baseURL, filepath.Join(dir, "token"), filepath.Join(dir, "status.json"), filepath.Join(dir, "dashsync.log"))
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestWatch_FollowsPollAndPush(t *testing.T) {
	srv := dashboardtest.New(t, dashboardtest.Token)
	srv.SetStatus(status.Snapshot{
		"cpu":   1.0,
		"todos": []any{map[string]any{"id": "1", "title": "ship"}},
	})
	t.Setenv(TokenEnv, dashboardtest.Token)

	dir := t.TempDir()
	opts := Options{ConfigPath: writeConfig(t, dir, srv.URL)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	out := &syncBuffer{}
	errCh := make(chan error, 1)
	go func() { errCh <- Watch(ctx, opts, out) }()

	require.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, "live") && strings.Contains(s, "fields=2 todos=1")
	}, 5*time.Second, 20*time.Millisecond, "output so far:\n%s", out)

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "status.json"))
		return err == nil
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, srv.Broadcast(ctx, status.Snapshot{"alert": "disk almost full"}))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "fields=3 todos=1")
	}, 5*time.Second, 20*time.Millisecond, "output so far:\n%s", out)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
	assert.Eventually(t, func() bool { return srv.Connections() == 0 }, 5*time.Second, 20*time.Millisecond)
}

func TestBuild_SeedsStoreFromCache(t *testing.T) {
	t.Setenv(TokenEnv, "")
	dir := t.TempDir()
	path := writeConfig(t, dir, "http://127.0.0.1:1")

	savedAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, cache.New(filepath.Join(dir, "status.json")).Save(status.Snapshot{"cpu": 3.0}, savedAt))

	rt, err := Build(Options{ConfigPath: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	view := rt.Store.View()
	assert.True(t, view.HasStatus)
	assert.True(t, view.FromCache)
	assert.Equal(t, 3.0, view.Status["cpu"])
	assert.True(t, savedAt.Equal(view.LastUpdated))
	assert.Empty(t, rt.Credentials.Token())
}

func TestBuild_PollFlagOverridesConfig(t *testing.T) {
	dir := t.TempDir()
	rt, err := Build(Options{ConfigPath: writeConfig(t, dir, "http://127.0.0.1:1"), PollEvery: 7})
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Close() })

	assert.Equal(t, 7*time.Second, rt.Config.PollInterval)
}

func TestBuild_InvalidConfigFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("base_url = ["), 0o600))

	_, err := Build(Options{ConfigPath: path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load config")
}

func TestFormatView(t *testing.T) {
	updated := time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)
	tests := []struct {
		name string
		view state.View
		want string
	}{
		{
			name: "empty",
			view: state.View{},
			want: "--:--:-- polling no-data",
		},
		{
			name: "live with data",
			view: state.View{
				HasStatus:     true,
				PushConnected: true,
				LastUpdated:   updated,
				Status:        status.Snapshot{"cpu": 1.0, "todos": []any{1, 2}},
			},
			want: "03:04:05 live fields=2 todos=2",
		},
		{
			name: "offline cached",
			view: state.View{
				HasStatus:           true,
				FromCache:           true,
				LastUpdated:         updated,
				Status:              status.Snapshot{"cpu": 1.0},
				LastError:           "connection refused",
				ConsecutiveFailures: 2,
			},
			want: `03:04:05 offline fields=1 todos=0 cached error="connection refused"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatView(tt.view))
		})
	}
}
