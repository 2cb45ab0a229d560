package dashboard

import (
	"encoding/json"

	"github.com/five82/dashsync/internal/status"
)

// TodoRequest is the body of POST /tasks/todos.
type TodoRequest struct {
	Title    string `json:"title"`
	ListName string `json:"list_name,omitempty"`
	DueDate  string `json:"due_date,omitempty"`
}

// TaskListResponse mirrors the todo mutation endpoints. Todos and History are
// nil when the server omitted them.
type TaskListResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	Data    json.RawMessage  `json:"data,omitempty"`
	Todos   []map[string]any `json:"todos"`
	History []map[string]any `json:"history"`
}

// ActionResponse mirrors the gateway/backup/log action endpoints.
type ActionResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// TodoFields converts the returned todo list into snapshot fields suitable
// for a direct store update, or nil when the server sent no list.
func (r TaskListResponse) TodoFields() status.Snapshot {
	if r.Todos == nil {
		return nil
	}
	todos := make([]any, len(r.Todos))
	for i, t := range r.Todos {
		todos[i] = t
	}
	return status.Snapshot{"todos": todos}
}
