package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pair returns the server side of a live WebSocket connection.
func pair(t *testing.T) *websocket.Conn {
	t.Helper()
	serverSide := make(chan *websocket.Conn, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverSide <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return <-serverSide
}

func TestHubBroadcastAndUnregister(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	a := NewConnection(pair(t), zerolog.Nop())
	b := NewConnection(pair(t), zerolog.Nop())

	idA := hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.Count())

	msg, err := NewMessage(TypeDailyQuizReady, "", DailyQuizReadyPayload{Date: "2024-01-02", Questions: 5})
	require.NoError(t, err)
	require.NoError(t, hub.BroadcastAll(msg))

	for _, c := range []*Connection{a, b} {
		got := <-c.sendCh
		assert.Equal(t, TypeDailyQuizReady, got.Type)
		assert.JSONEq(t, `{"date":"2024-01-02","questions":5}`, string(got.Payload))
	}

	hub.Unregister(idA)
	assert.Equal(t, 1, hub.Count())
	assert.ErrorIs(t, a.Send(msg), ErrConnectionClosed)
	assert.ErrorIs(t, hub.SendTo(idA, msg), ErrConnectionNotFound)
	assert.ErrorIs(t, hub.SendTo(uuid.New(), msg), ErrConnectionNotFound)
}

func TestConnectionQueueFull(t *testing.T) {
	c := NewConnection(pair(t), zerolog.Nop())
	msg := Message{Type: TypePong}
	for i := 0; i < cap(c.sendCh); i++ {
		require.NoError(t, c.Send(msg))
	}
	assert.ErrorIs(t, c.Send(msg), ErrSendQueueFull)
}
