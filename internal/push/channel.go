// Package push maintains the WebSocket event stream that delivers status
// updates as they happen.
package push

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/coder/websocket"
)

const defaultReadLimit = 4 << 20

// Handler receives channel events. Calls come from the channel's own
// goroutine, one at a time, and must not block for long.
type Handler interface {
	OnOpen()
	OnMessage(data []byte)
	// OnError reports a transport failure. OnClose always follows.
	OnError(err error)
	OnClose()
}

// Channel is a single push connection. It is opened at most once; a new
// Channel is created for every reconnect.
type Channel struct {
	url       string
	handler   Handler
	client    *http.Client
	readLimit int64

	state atomic.Int32

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	closed bool
}

// Option customizes a Channel.
type Option func(*Channel)

// WithHTTPClient sets the client used for the opening handshake.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Channel) { c.client = hc }
}

// WithReadLimit caps the size of a single inbound frame.
func WithReadLimit(n int64) Option {
	return func(c *Channel) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

// New returns a disconnected Channel for rawURL.
func New(rawURL string, h Handler, opts ...Option) *Channel {
	c := &Channel{url: rawURL, handler: h, readLimit: defaultReadLimit}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current connection state.
func (c *Channel) State() State {
	return State(c.state.Load())
}

func (c *Channel) transition(from, to State) bool {
	if !canTransition(from, to) {
		return false
	}
	return c.state.CompareAndSwap(int32(from), int32(to))
}

func (c *Channel) disconnect() {
	for {
		cur := c.State()
		if cur == Disconnected || c.transition(cur, Disconnected) {
			return
		}
	}
}

// Open starts connecting in the background. It is a no-op unless the
// channel is Disconnected and has never been closed.
func (c *Channel) Open(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || !c.transition(Disconnected, Connecting) {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	go c.run(ctx)
}

// Close tears the connection down without waiting. The handler still
// receives OnClose once the reader goroutine exits.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	if c.cancel != nil {
		c.cancel()
	}
	if conn := c.conn; conn != nil {
		go func() { _ = conn.Close(websocket.StatusNormalClosure, "client closing") }()
	}
}

func (c *Channel) run(ctx context.Context) {
	defer c.handler.OnClose()

	conn, _, err := websocket.Dial(ctx, c.url, &websocket.DialOptions{HTTPClient: c.client})
	if err != nil {
		c.disconnect()
		if ctx.Err() == nil {
			c.handler.OnError(fmt.Errorf("dial push channel: %w", err))
		}
		return
	}
	conn.SetReadLimit(c.readLimit)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "client closing")
		c.disconnect()
		return
	}
	c.conn = conn
	c.mu.Unlock()

	if !c.transition(Connecting, Connected) {
		_ = conn.CloseNow()
		return
	}
	c.handler.OnOpen()

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			c.disconnect()
			if ctx.Err() == nil && !isNormalClose(err) {
				c.handler.OnError(err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		c.handler.OnMessage(data)
	}
}

func isNormalClose(err error) bool {
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		return true
	}
	return errors.Is(err, context.Canceled)
}

// URL builds the push endpoint for a server root, carrying the credential
// as a query parameter because the handshake cannot send custom headers
// from every client.
func URL(base *url.URL, wsPath, token string) string {
	u := *base
	switch strings.ToLower(u.Scheme) {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	p := "/" + strings.Trim(strings.TrimSpace(wsPath), "/")
	if p == "/" {
		p = "/ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + p
	u.RawQuery = url.Values{"token": []string{token}}.Encode()
	u.Fragment = ""
	return u.String()
}
