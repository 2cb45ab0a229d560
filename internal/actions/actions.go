// Package actions wraps the dashboard's mutating endpoints. A successful
// action triggers an immediate full refresh, or applies the list the server
// returned when it sent one.
package actions

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/five82/dashsync/internal/credential"
	"github.com/five82/dashsync/internal/dashboard"
	"github.com/five82/dashsync/internal/state"
	"github.com/five82/dashsync/internal/status"
)

// API is the subset of *dashboard.Client used here.
type API interface {
	RestartGateway(ctx context.Context) (dashboard.ActionResponse, error)
	CreateBackup(ctx context.Context) (dashboard.ActionResponse, error)
	ClearLogs(ctx context.Context) (dashboard.ActionResponse, error)
	FetchHistory(ctx context.Context) ([]map[string]any, error)
	CreateTodo(ctx context.Context, req dashboard.TodoRequest) (dashboard.TaskListResponse, error)
	CompleteTodo(ctx context.Context, taskID string) (dashboard.TaskListResponse, error)
	ReopenTask(ctx context.Context, taskID string) (dashboard.TaskListResponse, error)
}

// Syncer receives follow-up work. *synchronizer.Synchronizer implements it.
type Syncer interface {
	Refresh(light bool) bool
	ApplyAction(fields status.Snapshot) bool
}

// Runner executes actions. Sync, Store and Credentials may be nil for
// one-shot command line use.
type Runner struct {
	API         API
	Sync        Syncer
	Store       *state.Store
	Credentials credential.Provider
	Logger      *slog.Logger
}

// Restart restarts the server's gateway.
func (r *Runner) Restart(ctx context.Context) (string, error) {
	return r.simple(ctx, "restart", r.API.RestartGateway)
}

// Backup asks the server to write a backup.
func (r *Runner) Backup(ctx context.Context) (string, error) {
	return r.simple(ctx, "backup", r.API.CreateBackup)
}

// ClearLogs truncates the server's logs.
func (r *Runner) ClearLogs(ctx context.Context) (string, error) {
	return r.simple(ctx, "clear-logs", r.API.ClearLogs)
}

func (r *Runner) simple(ctx context.Context, name string, call func(context.Context) (dashboard.ActionResponse, error)) (string, error) {
	resp, err := call(ctx)
	if err != nil {
		return "", r.fail(name, err)
	}
	if !resp.Success {
		return "", r.fail(name, errors.New(orDefault(resp.Message, name+" failed")))
	}
	r.refresh()
	r.logger().Info("action completed", "action", name)
	return orDefault(resp.Message, name+" completed"), nil
}

// AddTodo creates a todo.
func (r *Runner) AddTodo(ctx context.Context, req dashboard.TodoRequest) (string, error) {
	resp, err := r.API.CreateTodo(ctx, req)
	return r.taskList(ctx, "add-todo", resp, err)
}

// CompleteTodo marks a todo done.
func (r *Runner) CompleteTodo(ctx context.Context, id string) (string, error) {
	resp, err := r.API.CompleteTodo(ctx, id)
	return r.taskList(ctx, "complete-todo", resp, err)
}

// ReopenTask moves a completed task back to the todo list.
func (r *Runner) ReopenTask(ctx context.Context, id string) (string, error) {
	resp, err := r.API.ReopenTask(ctx, id)
	return r.taskList(ctx, "reopen-task", resp, err)
}

func (r *Runner) taskList(_ context.Context, name string, resp dashboard.TaskListResponse, err error) (string, error) {
	if err != nil {
		return "", r.fail(name, err)
	}
	if !resp.Success {
		return "", r.fail(name, errors.New(orDefault(resp.Message, name+" failed")))
	}

	applied := false
	if fields := resp.TodoFields(); fields != nil && r.Sync != nil {
		applied = r.Sync.ApplyAction(fields)
	}
	if !applied {
		r.refresh()
	}
	if resp.History != nil && r.Store != nil {
		r.Store.SetHistory(resp.History)
	}
	r.logger().Info("action completed", "action", name, "applied", applied)
	return orDefault(resp.Message, name+" completed"), nil
}

// History loads completed tasks into the store and returns them.
func (r *Runner) History(ctx context.Context) ([]map[string]any, error) {
	items, err := r.API.FetchHistory(ctx)
	if err != nil {
		return nil, r.fail("history", err)
	}
	if r.Store != nil {
		r.Store.SetHistory(items)
	}
	return items, nil
}

func (r *Runner) refresh() {
	if r.Sync != nil {
		r.Sync.Refresh(false)
	}
}

func (r *Runner) fail(name string, err error) error {
	r.logger().Warn("action failed", "action", name, "error", err)
	if dashboard.IsAuth(err) && r.Credentials != nil {
		r.Credentials.ClearSession()
	}
	return err
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
