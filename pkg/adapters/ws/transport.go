// Package ws serves an MCP server over an outbound websocket connection.
//
// Hosted agent platforms such as Xiaozhi do not spawn the tool process; instead the tool
// dials their hub and answers JSON-RPC requests arriving on the socket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const writeTimeout = 10 * time.Second

// Transport connects an MCP server to a remote websocket endpoint.
type Transport struct {
	server   *server.MCPServer
	endpoint string
	token    string
	dialer   *websocket.Dialer
	logger   *slog.Logger

	writeMu sync.Mutex
}

// Option configures a Transport.
type Option func(*Transport)

// WithDialer replaces websocket.DefaultDialer.
func WithDialer(d *websocket.Dialer) Option {
	return func(t *Transport) {
		t.dialer = d
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(t *Transport) {
		t.logger = l
	}
}

// NewTransport creates a transport that will dial endpoint authenticated with token.
func NewTransport(srv *server.MCPServer, endpoint, token string, opts ...Option) *Transport {
	t := &Transport{
		server:   srv,
		endpoint: strings.TrimSpace(endpoint),
		token:    NormalizeToken(token),
		dialer:   websocket.DefaultDialer,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// NormalizeToken accepts either a bare token or a full endpoint URL copied from a
// dashboard ("wss://host/mcp/?token=X") and returns the bare token.
func NormalizeToken(token string) string {
	token = strings.TrimSpace(token)
	if !strings.Contains(token, "://") {
		return token
	}
	u, err := url.Parse(token)
	if err != nil {
		return token
	}
	if t := u.Query().Get("token"); t != "" {
		return t
	}
	return token
}

// URL returns the endpoint with the token query parameter set.
func (t *Transport) URL() (string, error) {
	u, err := url.Parse(t.endpoint)
	if err != nil {
		return "", fmt.Errorf("invalid websocket endpoint: %w", err)
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "", fmt.Errorf("invalid websocket endpoint %q: scheme must be ws or wss", t.endpoint)
	}
	q := u.Query()
	q.Set("token", t.token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Serve dials the endpoint and answers incoming JSON-RPC messages until ctx is done
// (returns nil) or the connection fails (returns the error).
func (t *Transport) Serve(ctx context.Context) error {
	target, err := t.URL()
	if err != nil {
		return err
	}

	conn, resp, err := t.dialer.DialContext(ctx, target, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("dial %s: %w (status %d)", t.endpoint, err, resp.StatusCode)
		}
		return fmt.Errorf("dial %s: %w", t.endpoint, err)
	}
	t.logger.Info("MCP connection established (websocket)", "endpoint", t.endpoint)

	sess := newSession()
	if err := t.server.RegisterSession(ctx, sess); err != nil {
		conn.Close()
		return fmt.Errorf("register session: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer conn.Close()
	defer t.server.UnregisterSession(context.Background(), sess.SessionID())
	defer wg.Wait()
	defer cancel()

	go func() {
		<-ctx.Done()
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		conn.Close()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case n := <-sess.notifications:
				if err := t.write(conn, n); err != nil {
					t.logger.Debug("websocket: notification dropped", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	sessCtx := t.server.WithContext(ctx, sess)
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				t.logger.Info("MCP connection closed (websocket)")
				return nil
			}
			return fmt.Errorf("websocket read: %w", err)
		}

		wg.Add(1)
		go func(raw []byte) {
			defer wg.Done()
			reply := t.server.HandleMessage(sessCtx, json.RawMessage(raw))
			if reply == nil {
				return
			}
			if err := t.write(conn, reply); err != nil {
				t.logger.Warn("websocket: failed to write reply", "error", err)
			}
		}(data)
	}
}

// write serializes writes; gorilla connections allow one concurrent writer.
func (t *Transport) write(conn *websocket.Conn, v any) error {
	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return conn.WriteJSON(v)
}

// session is the MCP client session bound to one websocket connection.
type session struct {
	id            string
	notifications chan mcp.JSONRPCNotification
	initialized   atomic.Bool
}

var _ server.ClientSession = (*session)(nil)

func newSession() *session {
	return &session{
		id:            "ws-" + uuid.NewString(),
		notifications: make(chan mcp.JSONRPCNotification, 16),
	}
}

func (s *session) SessionID() string { return s.id }

func (s *session) NotificationChannel() chan<- mcp.JSONRPCNotification { return s.notifications }

func (s *session) Initialize() { s.initialized.Store(true) }

func (s *session) Initialized() bool { return s.initialized.Load() }
