// Package dashboardtest provides an in-process dashboard server for tests:
// the REST status and action endpoints plus the push WebSocket.
package dashboardtest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"github.com/five82/dashsync/internal/status"
)

// Token is the credential the server accepts unless New is given another.
const Token = "test-token"

// Server is a fake dashboard. Light responses omit every field listed in
// HeavyFields by sending it as an empty list.
type Server struct {
	*httptest.Server

	token       string
	heavyFields []string

	// DashboardFails makes /api/dashboard answer 500 so clients fall back
	// to /api/status/.
	DashboardFails atomic.Bool

	mu       sync.Mutex
	status   status.Snapshot
	todos    []map[string]any
	history  []map[string]any
	nextID   int
	requests []string
	conns    map[*websocket.Conn]context.CancelFunc
	wsOpens  int
}

// New starts a server that is closed when the test ends.
func New(t testing.TB, token string) *Server {
	t.Helper()
	s := &Server{
		token:       token,
		heavyFields: []string{"todos", "completed_tasks", "logs", "usage_panels"},
		status:      status.Snapshot{},
		conns:       make(map[*websocket.Conn]context.CancelFunc),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(func() {
		s.DropConnections()
		s.Close()
	})
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/ws", s.serveWS)
	r.Route("/api", func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/dashboard", s.getDashboard)
		r.Get("/status/", s.getStatus)
		r.Post("/actions/gateway/restart", s.action("gateway restarting"))
		r.Post("/actions/backup", s.action("backup created"))
		r.Post("/actions/logs/clear", s.action("logs cleared"))
		r.Route("/tasks", func(r chi.Router) {
			r.Get("/history", s.getHistory)
			r.Post("/todos", s.createTodo)
			r.Post("/todos/{id}/complete", s.completeTodo)
			r.Post("/history/{id}/reopen", s.reopenTask)
		})
	})
	return r
}

// SetStatus replaces the full status document.
func (s *Server) SetStatus(snap status.Snapshot) {
	s.mu.Lock()
	s.status = snap.Clone()
	s.mu.Unlock()
}

// Requests returns "METHOD /path" for every REST call so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// WSOpens returns the number of accepted push connections.
func (s *Server) WSOpens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.wsOpens
}

// Connections returns the number of live push connections.
func (s *Server) Connections() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Broadcast sends a status_update frame carrying payload to every push
// connection.
func (s *Server) Broadcast(ctx context.Context, payload status.Snapshot) error {
	data, err := json.Marshal(map[string]any{"type": "status_update", "payload": payload})
	if err != nil {
		return err
	}
	return s.BroadcastRaw(ctx, data)
}

// BroadcastRaw sends data as a text frame to every push connection.
func (s *Server) BroadcastRaw(ctx context.Context, data []byte) error {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			return err
		}
	}
	return nil
}

// DropConnections closes every push connection from the server side.
func (s *Server) DropConnections() {
	s.mu.Lock()
	conns := s.conns
	s.conns = make(map[*websocket.Conn]context.CancelFunc)
	s.mu.Unlock()
	for c, cancel := range conns {
		_ = c.Close(websocket.StatusGoingAway, "server dropping connection")
		cancel()
	}
}

func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		if strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ") != s.token {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid token"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	if s.DashboardFails.Load() {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"detail": "dashboard unavailable"})
		return
	}
	s.getStatus(w, r)
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	light := r.URL.Query().Get("light") == "1"
	s.mu.Lock()
	snap := s.status.Clone()
	snap["todos"] = toAny(s.todos)
	if light {
		for _, field := range s.heavyFields {
			snap[field] = []any{}
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) action(message string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": message})
	}
}

func (s *Server) getHistory(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	history := append([]map[string]any{}, s.history...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, history)
}

func (s *Server) createTodo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Title) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"detail": "title required"})
		return
	}
	s.mu.Lock()
	s.nextID++
	s.todos = append(s.todos, map[string]any{"id": strconv.Itoa(s.nextID), "title": req.Title})
	resp := s.taskListLocked("todo created")
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) completeTodo(w http.ResponseWriter, r *http.Request) {
	s.moveTask(w, chi.URLParam(r, "id"), &s.todos, &s.history, "todo completed")
}

func (s *Server) reopenTask(w http.ResponseWriter, r *http.Request) {
	s.moveTask(w, chi.URLParam(r, "id"), &s.history, &s.todos, "task reopened")
}

func (s *Server) moveTask(w http.ResponseWriter, id string, from, to *[]map[string]any, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range *from {
		if item["id"] == id {
			*from = append((*from)[:i], (*from)[i+1:]...)
			*to = append(*to, item)
			writeJSON(w, http.StatusOK, s.taskListLocked(message))
			return
		}
	}
	writeJSON(w, http.StatusNotFound, map[string]any{"detail": "task not found"})
}

func (s *Server) taskListLocked(message string) map[string]any {
	return map[string]any{
		"success": true,
		"message": message,
		"todos":   append([]map[string]any{}, s.todos...),
		"history": append([]map[string]any{}, s.history...),
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("token") != s.token {
		http.Error(w, "invalid token", http.StatusForbidden)
		return
	}
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		return
	}
	ctx, cancel := context.WithCancel(r.Context())
	s.mu.Lock()
	s.conns[conn] = cancel
	s.wsOpens++
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		cancel()
		_ = conn.CloseNow()
	}()

	for {
		if _, _, err := conn.Read(ctx); err != nil {
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func toAny(items []map[string]any) []any {
	out := make([]any, len(items))
	for i, item := range items {
		out[i] = item
	}
	return out
}

