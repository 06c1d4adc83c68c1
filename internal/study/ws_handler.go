package study

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
	"github.com/gokatarajesh/thinkb-quiz/internal/server"
	httperrors "github.com/gokatarajesh/thinkb-quiz/pkg/http/errors"
	ws "github.com/gokatarajesh/thinkb-quiz/pkg/http/ws"
)

// WSHandler runs cancellable generations over a WebSocket.
type WSHandler struct {
	svc    *Service
	hub    *ws.Hub
	logger zerolog.Logger
}

func NewWSHandler(svc *Service, hub *ws.Hub, logger zerolog.Logger) *WSHandler {
	return &WSHandler{
		svc:    svc,
		hub:    hub,
		logger: logger.With().Str("component", "study_ws").Logger(),
	}
}

// HandleWebSocket upgrades the request and serves the connection.
func (h *WSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := server.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	h.HandleConnection(conn)
}

// HandleConnection serves one client until it disconnects.
func (h *WSHandler) HandleConnection(conn *websocket.Conn) {
	wsConn := ws.NewConnection(conn, h.logger)
	connID := h.hub.Register(wsConn)

	sess := &session{conn: wsConn, logger: h.logger.With().Str("connection_id", connID.String()).Logger()}

	go wsConn.WritePump()

	wsConn.ReadPump(func(msg ws.Message) error {
		return h.handleMessage(sess, msg)
	})

	sess.cancelActive()
	sess.wg.Wait()
	h.hub.Unregister(connID)
}

// session holds the single in-flight generation of a connection.
type session struct {
	conn   *ws.Connection
	logger zerolog.Logger

	mu       sync.Mutex
	activeID string
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// begin claims the session for a new generation. It fails if one is running.
func (s *session) begin() (string, context.Context, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return "", nil, false
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.activeID = uuid.NewString()
	s.cancel = cancel
	return s.activeID, ctx, true
}

func (s *session) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID != id {
		return
	}
	s.cancel()
	s.cancel = nil
	s.activeID = ""
}

// cancelGeneration cancels the running generation. An id that does not match
// the running generation is ignored.
func (s *session) cancelGeneration(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel == nil || (id != "" && id != s.activeID) {
		return false
	}
	s.cancel()
	return true
}

func (s *session) cancelActive() {
	s.cancelGeneration("")
}

func (h *WSHandler) handleMessage(sess *session, msg ws.Message) error {
	switch msg.Type {
	case ws.TypeGenerate:
		return h.handleGenerate(sess, msg)
	case ws.TypeCancelGeneration:
		var req ws.CancelGenerationPayload
		if len(msg.Payload) > 0 {
			if err := json.Unmarshal(msg.Payload, &req); err != nil {
				return sendError(sess.conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid cancel_generation payload")
			}
		}
		if !sess.cancelGeneration(req.GenerationID) {
			sess.logger.Debug().Str("generation_id", req.GenerationID).Msg("cancel ignored, nothing running")
		}
		return nil
	case ws.TypePing:
		return send(sess.conn, ws.TypePong, msg.RequestID, nil)
	default:
		return sendError(sess.conn, msg.RequestID, httperrors.ErrCodeUnknownMessageType, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}
}

func (h *WSHandler) handleGenerate(sess *session, msg ws.Message) error {
	var req ws.GeneratePayload
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		return sendError(sess.conn, msg.RequestID, httperrors.ErrCodeInvalidPayload, "Invalid generate payload")
	}

	genID, ctx, ok := sess.begin()
	if !ok {
		return sendError(sess.conn, msg.RequestID, httperrors.ErrCodeGenerationBusy, "A generation is already running")
	}
	if err := send(sess.conn, ws.TypeGenerationStarted, msg.RequestID, ws.GenerationStartedPayload{GenerationID: genID}); err != nil {
		sess.finish(genID)
		return err
	}

	sess.wg.Add(1)
	go func() {
		defer sess.wg.Done()
		defer sess.finish(genID)

		logger := sess.logger.With().Str("generation_id", genID).Logger()
		result, err := h.svc.GenerateFromText(ctx, GenerateInput{FileName: req.FileName, Text: req.Text})
		switch {
		case err == nil:
			raw, mErr := json.Marshal(result.Quiz)
			if mErr != nil {
				logger.Error().Err(mErr).Msg("encode quiz")
				return
			}
			_ = send(sess.conn, ws.TypeQuizReady, msg.RequestID, ws.QuizReadyPayload{GenerationID: genID, Quiz: raw})
		case errors.Is(err, quiz.ErrCanceled):
			logger.Info().Msg("generation canceled")
			_ = send(sess.conn, ws.TypeGenerationCanceled, msg.RequestID, ws.GenerationEndedPayload{GenerationID: genID})
		default:
			logger.Warn().Err(err).Msg("generation failed")
			_ = send(sess.conn, ws.TypeGenerationFailed, msg.RequestID, ws.GenerationEndedPayload{GenerationID: genID, Reason: failureReason(err)})
		}
	}()
	return nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, quiz.ErrGenerationFailed):
		return httperrors.ErrCodeQuotaExceeded
	case errors.Is(err, ErrEmptyQuiz):
		return httperrors.ErrCodeEmptyQuiz
	case errors.Is(err, ErrNoContent):
		return httperrors.ErrCodeMissingField
	default:
		return httperrors.ErrCodeInternalError
	}
}

func send(conn *ws.Connection, msgType, requestID string, payload any) error {
	msg, err := ws.NewMessage(msgType, requestID, payload)
	if err != nil {
		return err
	}
	return conn.Send(msg)
}

func sendError(conn *ws.Connection, requestID, code, message string) error {
	return send(conn, ws.TypeError, requestID, ws.ErrorPayload{Code: code, Message: message})
}

// HubNotifier announces the daily quiz to every connected client.
type HubNotifier struct {
	hub    *ws.Hub
	logger zerolog.Logger
}

func NewHubNotifier(hub *ws.Hub, logger zerolog.Logger) *HubNotifier {
	return &HubNotifier{hub: hub, logger: logger}
}

func (n *HubNotifier) DailyQuizReady(_ context.Context, date string, q quiz.Quiz) {
	msg, err := ws.NewMessage(ws.TypeDailyQuizReady, "", ws.DailyQuizReadyPayload{Date: date, Questions: len(q)})
	if err != nil {
		return
	}
	if err := n.hub.BroadcastAll(msg); err != nil {
		n.logger.Warn().Err(err).Msg("daily quiz broadcast incomplete")
	}
}
