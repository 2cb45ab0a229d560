package dashboardtest

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/five82/dashsync/internal/credential"
	"github.com/five82/dashsync/internal/dashboard"
	"github.com/five82/dashsync/internal/status"
)

func TestServer_ServesClientEndpoints(t *testing.T) {
	srv := New(t, Token)
	srv.SetStatus(status.Snapshot{"cpu": 4.0, "logs": []any{"a"}})

	client, err := dashboard.NewClient(srv.URL, credential.NewStatic(Token))
	require.NoError(t, err)
	ctx := context.Background()

	light, err := client.FetchDashboard(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 0, light.Len("logs"))

	full, err := client.FetchDashboard(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, full.Len("logs"))
	assert.Equal(t, 4.0, full["cpu"])

	resp, err := client.CreateTodo(ctx, dashboard.TodoRequest{Title: "ship it"})
	require.NoError(t, err)
	require.Len(t, resp.Todos, 1)
	id, _ := resp.Todos[0]["id"].(string)

	resp, err = client.CompleteTodo(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, resp.Todos)
	assert.Len(t, resp.History, 1)

	history, err := client.FetchHistory(ctx)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = client.ReopenTask(ctx, "missing")
	var serverErr *dashboard.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusNotFound, serverErr.StatusCode)

	action, err := client.CreateBackup(ctx)
	require.NoError(t, err)
	assert.True(t, action.Success)
}

func TestServer_RejectsBadToken(t *testing.T) {
	srv := New(t, Token)
	client, err := dashboard.NewClient(srv.URL, credential.NewStatic("wrong"))
	require.NoError(t, err)

	_, err = client.FetchDashboard(context.Background(), true)
	require.True(t, dashboard.IsAuth(err))
	assert.Equal(t, "invalid token", dashboard.Message(err, ""))
}

func TestServer_DashboardFailureForcesLegacy(t *testing.T) {
	srv := New(t, Token)
	srv.DashboardFails.Store(true)
	client, err := dashboard.NewClient(srv.URL, credential.NewStatic(Token))
	require.NoError(t, err)

	_, err = client.FetchDashboard(context.Background(), true)
	require.Error(t, err)
	_, err = client.FetchLegacyStatus(context.Background(), true)
	require.NoError(t, err)

	assert.Equal(t, []string{"GET /api/dashboard", "GET /api/status/"}, srv.Requests())
}
