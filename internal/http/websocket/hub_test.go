package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/hbomb79/mediatab/internal/http/websocket"
	"github.com/hbomb79/mediatab/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.SetMinLoggingLevel(logger.VERBOSE.Level())
}

func startHub(t *testing.T) (*websocket.SocketHub, *gorilla.Conn) {
	hub := websocket.New()
	hub.WithConnectionCallback(func() map[string]interface{} {
		return map[string]interface{}{"batches": []string{}}
	})
	hub.BindCommand("PING", func(hub *websocket.SocketHub, msg *websocket.SocketMessage) error {
		hub.Send(msg.FormReply("PONG", map[string]interface{}{}, websocket.Response))
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		hub.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-stopped
	})

	require.Eventually(t, hub.Running, time.Second, 5*time.Millisecond)

	server := httptest.NewServer(http.HandlerFunc(hub.UpgradeToSocket))
	t.Cleanup(server.Close)

	conn, _, err := gorilla.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return hub, conn
}

func readMessage(t *testing.T, conn *gorilla.Conn) websocket.SocketMessage {
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg websocket.SocketMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestSocketHub_WelcomeAndBroadcast(t *testing.T) {
	t.Parallel()
	hub, conn := startHub(t)

	welcome := readMessage(t, conn)
	assert.Equal(t, "CONNECTION_ESTABLISHED", welcome.Title)
	assert.Equal(t, websocket.Welcome, welcome.Type)
	assert.Contains(t, welcome.Body, "client")
	assert.Contains(t, welcome.Body, "batches")

	hub.Send(&websocket.SocketMessage{Title: "BATCH_UPDATE", Body: map[string]interface{}{"completed": 1}, Type: websocket.Update})
	update := readMessage(t, conn)
	assert.Equal(t, "BATCH_UPDATE", update.Title)
	assert.Equal(t, float64(1), update.Body["completed"])
}

func TestSocketHub_Commands(t *testing.T) {
	t.Parallel()
	_, conn := startHub(t)
	readMessage(t, conn)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"title": "PING", "type": int(websocket.Command), "id": 7, "arguments": map[string]interface{}{}}))
	reply := readMessage(t, conn)
	assert.Equal(t, "PONG", reply.Title)
	assert.Equal(t, 7, reply.Id)
	assert.Equal(t, websocket.Response, reply.Type)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{"title": "NOPE", "type": int(websocket.Command), "id": 8}))
	failure := readMessage(t, conn)
	assert.Equal(t, "COMMAND_FAILURE", failure.Title)
	assert.Equal(t, websocket.ErrorResponse, failure.Type)
	assert.Equal(t, "Unknown command", failure.Body["error"])
}

func TestSocketHub_UpgradeBeforeStartIsRejected(t *testing.T) {
	t.Parallel()

	hub := websocket.New()
	rec := httptest.NewRecorder()
	hub.UpgradeToSocket(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestSocketMessage_ValidateArguments(t *testing.T) {
	t.Parallel()

	msg := &websocket.SocketMessage{Body: map[string]interface{}{
		"id":    "4f5c1f0e-7c38-4a4e-9a53-0e6f3a9d6b8e",
		"count": float64(2),
		"name":  "batch",
	}}

	assert.NoError(t, msg.ValidateArguments(map[string]string{"id": "uuid", "count": "int", "name": "string"}))
	assert.Error(t, msg.ValidateArguments(map[string]string{"name": "uuid"}))
	assert.Error(t, msg.ValidateArguments(map[string]string{"missing": "string"}))
	assert.Error(t, msg.ValidateArguments(map[string]string{"count": "bool"}))
}
