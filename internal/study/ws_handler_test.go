package study

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httperrors "github.com/gokatarajesh/thinkb-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/thinkb-quiz/pkg/http/ws"
)

func dialWS(t *testing.T, f *fixture) (*websocket.Conn, *ws.Hub) {
	t.Helper()
	hub := ws.NewHub(zerolog.Nop())
	handler := NewWSHandler(f.svc, hub, zerolog.Nop())
	srv := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn, hub
}

func sendWS(t *testing.T, conn *websocket.Conn, msgType, reqID string, payload any) {
	t.Helper()
	msg, err := ws.NewMessage(msgType, reqID, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(msg))
}

func readWS(t *testing.T, conn *websocket.Conn) ws.Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg ws.Message
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWSGenerateDeliversQuiz(t *testing.T) {
	f := newFixture(t)
	conn, _ := dialWS(t, f)

	sendWS(t, conn, ws.TypeGenerate, "r1", ws.GeneratePayload{FileName: "notes", Text: "Paris"})

	started := readWS(t, conn)
	require.Equal(t, ws.TypeGenerationStarted, started.Type)
	var sp ws.GenerationStartedPayload
	require.NoError(t, json.Unmarshal(started.Payload, &sp))
	assert.NotEmpty(t, sp.GenerationID)

	ready := readWS(t, conn)
	require.Equal(t, ws.TypeQuizReady, ready.Type)
	assert.Equal(t, "r1", ready.RequestID)
	var rp ws.QuizReadyPayload
	require.NoError(t, json.Unmarshal(ready.Payload, &rp))
	assert.Equal(t, sp.GenerationID, rp.GenerationID)
	assert.Contains(t, string(rp.Quiz), "Capital of France?")
}

func TestWSCancelGeneration(t *testing.T) {
	f := newFixture(t)
	f.gen.block = true
	conn, _ := dialWS(t, f)

	sendWS(t, conn, ws.TypeGenerate, "r1", ws.GeneratePayload{Text: "Paris"})
	started := readWS(t, conn)
	require.Equal(t, ws.TypeGenerationStarted, started.Type)
	var sp ws.GenerationStartedPayload
	require.NoError(t, json.Unmarshal(started.Payload, &sp))

	sendWS(t, conn, ws.TypeGenerate, "r2", ws.GeneratePayload{Text: "again"})
	busy := readWS(t, conn)
	require.Equal(t, ws.TypeError, busy.Type)
	var ep ws.ErrorPayload
	require.NoError(t, json.Unmarshal(busy.Payload, &ep))
	assert.Equal(t, httperrors.ErrCodeGenerationBusy, ep.Code)

	sendWS(t, conn, ws.TypeCancelGeneration, "r3", ws.CancelGenerationPayload{GenerationID: sp.GenerationID})
	canceled := readWS(t, conn)
	require.Equal(t, ws.TypeGenerationCanceled, canceled.Type)

	materials, err := f.svc.Materials(t.Context())
	require.NoError(t, err)
	assert.Empty(t, materials)
}

func TestWSGenerationFailureReason(t *testing.T) {
	f := newFixture(t)
	f.gen.raw = "no array"
	conn, _ := dialWS(t, f)

	sendWS(t, conn, ws.TypeGenerate, "r1", ws.GeneratePayload{Text: "Paris"})
	require.Equal(t, ws.TypeGenerationStarted, readWS(t, conn).Type)

	failed := readWS(t, conn)
	require.Equal(t, ws.TypeGenerationFailed, failed.Type)
	var gp ws.GenerationEndedPayload
	require.NoError(t, json.Unmarshal(failed.Payload, &gp))
	assert.Equal(t, httperrors.ErrCodeEmptyQuiz, gp.Reason)
}

func TestWSPingAndUnknownType(t *testing.T) {
	f := newFixture(t)
	conn, _ := dialWS(t, f)

	sendWS(t, conn, ws.TypePing, "p1", nil)
	pong := readWS(t, conn)
	assert.Equal(t, ws.TypePong, pong.Type)
	assert.Equal(t, "p1", pong.RequestID)

	sendWS(t, conn, "shuffle", "x1", nil)
	unknown := readWS(t, conn)
	require.Equal(t, ws.TypeError, unknown.Type)
	var ep ws.ErrorPayload
	require.NoError(t, json.Unmarshal(unknown.Payload, &ep))
	assert.Equal(t, httperrors.ErrCodeUnknownMessageType, ep.Code)
}

func TestHubNotifierBroadcastsDailyQuiz(t *testing.T) {
	f := newFixture(t)
	conn, hub := dialWS(t, f)
	f.svc.AddNotifier(NewHubNotifier(hub, zerolog.Nop()))

	require.Eventually(t, func() bool { return hub.Count() == 1 }, time.Second, 10*time.Millisecond)

	enableReminders(t, f)
	addMaterial(t, f, "a.pdf", "alpha")
	ran, err := f.svc.RunAutoGeneration(t.Context())
	require.NoError(t, err)
	require.True(t, ran)

	msg := readWS(t, conn)
	require.Equal(t, ws.TypeDailyQuizReady, msg.Type)
	var dp ws.DailyQuizReadyPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &dp))
	assert.Equal(t, "2024-01-02", dp.Date)
	assert.Equal(t, 2, dp.Questions)
}
