package push

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type event struct {
	kind string
	data string
}

type recorder struct {
	events chan event
}

func newRecorder() *recorder { return &recorder{events: make(chan event, 32)} }

func (r *recorder) OnOpen()               { r.events <- event{kind: "open"} }
func (r *recorder) OnMessage(data []byte) { r.events <- event{kind: "message", data: string(data)} }
func (r *recorder) OnError(err error)     { r.events <- event{kind: "error", data: err.Error()} }
func (r *recorder) OnClose()              { r.events <- event{kind: "close"} }

func (r *recorder) next(t *testing.T) event {
	t.Helper()
	select {
	case e := <-r.events:
		return e
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for channel event")
		return event{}
	}
}

func wsServer(t *testing.T, handle func(ctx context.Context, conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("token") != "good" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.CloseNow()
		handle(r.Context(), conn)
	}))
	t.Cleanup(server.Close)
	return server
}

func wsURL(t *testing.T, server *httptest.Server, token string) string {
	t.Helper()
	base, err := url.Parse(server.URL)
	require.NoError(t, err)
	return URL(base, "/ws", token)
}

func TestDecodeStatusUpdate(t *testing.T) {
	tests := []struct {
		name string
		data string
		ok   bool
	}{
		{"status update", `{"type":"status_update","payload":{"todos":[]}}`, true},
		{"other type", `{"type":"chat","payload":{"a":1}}`, false},
		{"missing payload", `{"type":"status_update"}`, false},
		{"non-object payload", `{"type":"status_update","payload":[1]}`, false},
		{"null payload", `{"type":"status_update","payload":null}`, false},
		{"malformed", `{"type":"status_update","payload":{`, false},
		{"not json", `hello`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap, ok := DecodeStatusUpdate([]byte(tt.data))
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.NotNil(t, snap)
			}
		})
	}
}

func TestURL(t *testing.T) {
	base, _ := url.Parse("https://dash.example.com/root")
	assert.Equal(t, "wss://dash.example.com/root/ws?token=a+b%2Fc", URL(base, "ws", "a b/c"))

	base, _ = url.Parse("http://127.0.0.1:8000")
	assert.Equal(t, "ws://127.0.0.1:8000/ws?token=t", URL(base, "", "t"))
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(Disconnected, Connecting))
	assert.True(t, canTransition(Connecting, Connected))
	assert.True(t, canTransition(Connecting, Disconnected))
	assert.True(t, canTransition(Connected, Disconnected))
	assert.False(t, canTransition(Disconnected, Connected))
	assert.False(t, canTransition(Connected, Connecting))
	assert.True(t, Connecting.Live())
	assert.False(t, Disconnected.Live())
}

func TestChannel_ReceivesMessagesThenCloses(t *testing.T) {
	server := wsServer(t, func(ctx context.Context, conn *websocket.Conn) {
		_ = conn.Write(ctx, websocket.MessageText, []byte(`{"type":"status_update","payload":{"x":1}}`))
		_ = conn.Write(ctx, websocket.MessageBinary, []byte{0x1})
		_ = conn.Write(ctx, websocket.MessageText, []byte(`garbage`))
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	})

	rec := newRecorder()
	ch := New(wsURL(t, server, "good"), rec)
	ch.Open(context.Background())

	assert.Equal(t, "open", rec.next(t).kind)
	assert.Equal(t, Connected, ch.State())

	e := rec.next(t)
	assert.Equal(t, "message", e.kind)
	assert.Contains(t, e.data, "status_update")
	assert.Equal(t, event{kind: "message", data: "garbage"}, rec.next(t))
	assert.Equal(t, "close", rec.next(t).kind)
	assert.Equal(t, Disconnected, ch.State())
}

func TestChannel_DialFailureReportsErrorThenClose(t *testing.T) {
	server := wsServer(t, func(ctx context.Context, conn *websocket.Conn) {})

	rec := newRecorder()
	ch := New(wsURL(t, server, "bad"), rec)
	ch.Open(context.Background())

	e := rec.next(t)
	assert.Equal(t, "error", e.kind)
	assert.True(t, strings.Contains(e.data, "dial push channel"))
	assert.Equal(t, "close", rec.next(t).kind)
	assert.Equal(t, Disconnected, ch.State())
}

func TestChannel_OpenIsIdempotent(t *testing.T) {
	release := make(chan struct{})
	server := wsServer(t, func(ctx context.Context, conn *websocket.Conn) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	t.Cleanup(func() { close(release) })

	rec := newRecorder()
	ch := New(wsURL(t, server, "good"), rec)
	ch.Open(context.Background())
	ch.Open(context.Background())

	assert.Equal(t, "open", rec.next(t).kind)
	ch.Open(context.Background())

	select {
	case e := <-rec.events:
		t.Fatalf("unexpected event after repeated Open: %+v", e)
	case <-time.After(100 * time.Millisecond):
	}

	ch.Close()
	assert.Equal(t, "close", rec.next(t).kind)
	assert.Equal(t, Disconnected, ch.State())

	ch.Open(context.Background())
	assert.Equal(t, Disconnected, ch.State())
}
