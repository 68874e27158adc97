package stream

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhouzirui/boundary-tools/backend/internal/model/turn"
)

func dialTurns(t *testing.T) *websocket.Conn {
	t.Helper()
	r := chi.NewRouter()
	NewWebSocketHandler(newGovernor(t), cookieName).RegisterWebSocketRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func roundTrip(t *testing.T, conn *websocket.Conn, req turn.Request) outgoingMessage {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg outgoingMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocketCarriesUsageToken(t *testing.T) {
	conn := dialTurns(t)
	start := float64(time.Now().Add(-time.Minute).UnixMilli())

	first := roundTrip(t, conn, turn.Request{Tool: "expression", UserText: "Where do I start?", SessionStartMs: &start})
	require.Equal(t, "reply", first.Type)
	require.NotNil(t, first.Data)
	assert.Equal(t, "Buffered reply.", first.Data.Output)
	assert.NotEmpty(t, first.Data.UsageToken)

	// A second session on the same connection reuses the carried token and hits the cap.
	second := roundTrip(t, conn, turn.Request{Tool: "expression", UserText: "Again.", SessionStartMs: &start})
	require.NotNil(t, second.Data)
	assert.True(t, second.Data.Locked)
	assert.Equal(t, turn.ReasonQuotaExceeded, second.Data.Reason)
	assert.Equal(t, first.Data.UsageToken, second.Data.UsageToken)
}

func TestWebSocketReportsErrorsWithoutClosing(t *testing.T) {
	conn := dialTurns(t)

	bad := roundTrip(t, conn, turn.Request{Tool: "oracle", UserText: "hello"})
	assert.Equal(t, "error", bad.Type)
	assert.Equal(t, http.StatusNotFound, bad.Status)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	var malformed outgoingMessage
	require.NoError(t, conn.ReadJSON(&malformed))
	assert.Equal(t, http.StatusBadRequest, malformed.Status)

	ok := roundTrip(t, conn, turn.Request{Tool: "decision", UserText: "Still here.", UserMessageCount: 2})
	assert.Equal(t, "reply", ok.Type)
}
