package ws_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/n8nbridge/internal/logging"
	mcpadapter "github.com/aretw0/n8nbridge/pkg/adapters/mcp"
	"github.com/aretw0/n8nbridge/pkg/adapters/ws"
	"github.com/aretw0/n8nbridge/pkg/domain"
)

type staticRelay struct{ result domain.Result }

func (s staticRelay) Execute(context.Context, domain.ActionRequest) domain.Result { return s.result }

func TestNormalizeToken(t *testing.T) {
	assert.Equal(t, "abc", ws.NormalizeToken(" abc "))
	assert.Equal(t, "abc", ws.NormalizeToken("wss://api.xiaozhi.me/mcp/?token=abc"))
	assert.Equal(t, "wss://api.xiaozhi.me/mcp/", ws.NormalizeToken("wss://api.xiaozhi.me/mcp/"))
}

func TestTransport_URL(t *testing.T) {
	tr := ws.NewTransport(nil, "wss://api.xiaozhi.me/mcp/", "wss://api.xiaozhi.me/mcp/?token=abc")
	u, err := tr.URL()
	require.NoError(t, err)
	assert.Equal(t, "wss://api.xiaozhi.me/mcp/?token=abc", u)

	_, err = ws.NewTransport(nil, "https://api.xiaozhi.me/mcp/", "abc").URL()
	assert.Error(t, err)
}

// TestTransport_AnswersToolCall plays the hub: it accepts the bridge's connection,
// sends a tools/call request and expects the relay's answer back on the socket.
func TestTransport_AnswersToolCall(t *testing.T) {
	replies := make(chan string, 1)
	tokens := make(chan string, 1)

	upgrader := websocket.Upgrader{}
	hub := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tokens <- r.URL.Query().Get("token")
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		call := `{"jsonrpc":"2.0","id":7,"method":"tools/call","params":{"name":"ejecutar_accion_n8n","arguments":{"accion":"encender_luces","objetivo":"salon"}}}`
		if err := conn.WriteMessage(websocket.TextMessage, []byte(call)); err != nil {
			return
		}
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		replies <- string(data)
		// Keep the socket open until the bridge closes it.
		conn.ReadMessage()
	}))
	defer hub.Close()

	srv := mcpadapter.NewServer(staticRelay{result: domain.Success{StatusCode: 200, Body: map[string]any{"ok": true}}},
		mcpadapter.WithLogger(logging.NewNop()))
	endpoint := "ws" + strings.TrimPrefix(hub.URL, "http") + "/mcp/"
	tr := ws.NewTransport(srv.MCPServer(), endpoint, "secret", ws.WithLogger(logging.NewNop()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- tr.Serve(ctx) }()

	select {
	case tok := <-tokens:
		assert.Equal(t, "secret", tok)
	case <-time.After(5 * time.Second):
		t.Fatal("hub never saw a connection")
	}

	select {
	case reply := <-replies:
		assert.Contains(t, reply, `"id":7`)
		assert.Contains(t, reply, `completada`)
		assert.NotContains(t, reply, `"isError":true`)
	case <-time.After(5 * time.Second):
		t.Fatal("no reply to tools/call")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}

func TestTransport_DialFailure(t *testing.T) {
	hub := httptest.NewServer(http.NotFoundHandler())
	endpoint := "ws" + strings.TrimPrefix(hub.URL, "http")
	hub.Close()

	tr := ws.NewTransport(mcpadapter.NewServer(staticRelay{}).MCPServer(), endpoint, "secret",
		ws.WithLogger(logging.NewNop()))
	err := tr.Serve(context.Background())
	assert.Error(t, err)
}
