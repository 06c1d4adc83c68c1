package study

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/entitlement"
	"github.com/gokatarajesh/thinkb-quiz/internal/extract"
	"github.com/gokatarajesh/thinkb-quiz/internal/logging"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
	"github.com/gokatarajesh/thinkb-quiz/internal/settings"
	httperrors "github.com/gokatarajesh/thinkb-quiz/pkg/http/errors"
)

const (
	maxUploadBytes = 20 << 20
	maxBodyBytes   = 4 << 20

	// statusClientClosedRequest is reported when the caller went away mid-generation.
	statusClientClosedRequest = 499
)

// HTTPHandler exposes the study flows over REST.
type HTTPHandler struct {
	svc    *Service
	logger zerolog.Logger
}

func NewHTTPHandler(svc *Service, logger zerolog.Logger) *HTTPHandler {
	return &HTTPHandler{
		svc:    svc,
		logger: logger.With().Str("component", "study_http").Logger(),
	}
}

// Register mounts the study routes on mux.
func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/materials", h.UploadMaterial)
	mux.HandleFunc("GET /v1/materials", h.ListMaterials)
	mux.HandleFunc("POST /v1/quizzes/generate", h.Generate)
	mux.HandleFunc("GET /v1/quizzes/today", h.TodayQuiz)
	mux.HandleFunc("GET /v1/quizzes/auto", h.AutoQuiz)
	mux.HandleFunc("POST /v1/quizzes/complete", h.CompleteQuiz)
	mux.HandleFunc("POST /v1/quizzes/retry", h.RetryQuiz)
	mux.HandleFunc("GET /v1/history", h.History)
	mux.HandleFunc("GET /v1/streak", h.Streak)
	mux.HandleFunc("GET /v1/settings", h.GetSettings)
	mux.HandleFunc("PUT /v1/settings", h.UpdateSettings)
	mux.HandleFunc("POST /v1/entitlements", h.ApplyEntitlement)
	mux.HandleFunc("GET /v1/custom-quizzes", h.ListCustomQuizzes)
	mux.HandleFunc("POST /v1/custom-quizzes", h.CreateCustomQuiz)
}

// UploadMaterial handles POST /v1/materials (multipart, field "file").
func (h *HTTPHandler) UploadMaterial(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Expected a multipart upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "A PDF file is required", "file")
		return
	}
	defer file.Close()

	result, err := h.svc.UploadMaterial(r.Context(), header.Filename, file)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *HTTPHandler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.svc.Materials(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"materials": nonNil(materials)})
}

// Generate handles POST /v1/quizzes/generate. Closing the request cancels generation.
func (h *HTTPHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateInput
	if !decodeBody(w, r, &req) {
		return
	}
	result, err := h.svc.GenerateFromText(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *HTTPHandler) TodayQuiz(w http.ResponseWriter, r *http.Request) {
	q, err := h.svc.TodayQuiz(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": nonNil(q)})
}

// AutoQuiz handles GET /v1/quizzes/auto and marks the scheduled quiz as shown.
func (h *HTTPHandler) AutoQuiz(w http.ResponseWriter, r *http.Request) {
	q, shown, err := h.svc.PendingAutoQuiz(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	if len(q) == 0 {
		httperrors.RespondNotFound(w, httperrors.ErrCodeNotFound, "No quiz was generated for today")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"quiz":         q,
		"alreadyShown": shown,
	})
}

func (h *HTTPHandler) CompleteQuiz(w http.ResponseWriter, r *http.Request) {
	var req CompleteInput
	if !decodeBody(w, r, &req) {
		return
	}
	state, err := h.svc.CompleteQuiz(r.Context(), req)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"streak": state})
}

func (h *HTTPHandler) RetryQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Quiz quiz.Quiz `json:"quiz"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if err := h.svc.RetryQuiz(r.Context(), req.Quiz); err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quiz": req.Quiz})
}

func (h *HTTPHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.History(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": nonNil(records)})
}

func (h *HTTPHandler) Streak(w http.ResponseWriter, r *http.Request) {
	state, err := h.svc.Streak(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *HTTPHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	prefs, err := h.svc.Settings(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *HTTPHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settings.Settings
	if !decodeBody(w, r, &req) {
		return
	}
	prefs, err := h.svc.UpdateSettings(r.Context(), req)
	if errors.Is(err, settings.ErrInvalidSettings) {
		httperrors.RespondErrorWithDetails(w, http.StatusBadRequest, httperrors.ErrCodeValidationFailed, err.Error(), map[string]interface{}{
			"minQuizLength": 1,
			"maxQuizLength": settings.MaxQuizLength,
			"difficulties":  []quiz.Difficulty{quiz.DifficultyEasy, quiz.DifficultyMedium, quiz.DifficultyHard},
		})
		return
	}
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *HTTPHandler) ApplyEntitlement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Token is required", "token")
		return
	}
	tier, err := h.svc.ApplyEntitlement(r.Context(), req.Token)
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"tier": tier})
}

func (h *HTTPHandler) ListCustomQuizzes(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.CustomQuizzes(r.Context())
	if err != nil {
		h.respondServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"quizzes": nonNil(list)})
}

func (h *HTTPHandler) CreateCustomQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title     string    `json:"title"`
		Questions quiz.Quiz `json:"questions"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	custom, err := h.svc.SaveCustomQuiz(r.Context(), req.Title, req.Questions)
	switch {
	case errors.Is(err, ErrEmptyQuiz):
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "At least one question is required", "questions")
	case errors.Is(err, ErrInvalidQuiz):
		httperrors.RespondBadRequest(w, httperrors.ErrCodeValidationFailed, err.Error())
	case err != nil:
		h.respondServiceError(w, r, err)
	default:
		writeJSON(w, http.StatusCreated, custom)
	}
}

// respondServiceError maps service errors to the standard error body.
func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())
	switch {
	case errors.Is(err, quiz.ErrCanceled), errors.Is(err, context.Canceled):
		logger.Info().Msg("generation canceled by client")
		httperrors.RespondError(w, statusClientClosedRequest, httperrors.ErrCodeGenerationCanceled, "Generation was canceled")
	case errors.Is(err, quiz.ErrGenerationFailed):
		logger.Warn().Err(err).Msg("all providers failed")
		httperrors.RespondQuotaExceeded(w, "Quiz generation is unavailable right now, try again later")
	case errors.Is(err, ErrEmptyQuiz):
		httperrors.RespondEmptyQuiz(w)
	case errors.Is(err, ErrNoContent):
		httperrors.RespondValidationError(w, httperrors.ErrCodeMissingField, "Study text is required", "text")
	case errors.Is(err, ErrInvalidScore):
		httperrors.RespondValidationError(w, httperrors.ErrCodeValidationFailed, err.Error(), "score")
	case errors.Is(err, extract.ErrNoText):
		httperrors.RespondError(w, http.StatusUnprocessableEntity, httperrors.ErrCodeNoText, "No text could be extracted from the document")
	case errors.Is(err, ErrNoExtractor):
		httperrors.RespondServiceUnavailable(w, httperrors.ErrCodeServiceUnavailable, err.Error())
	case errors.Is(err, entitlement.ErrExpiredToken):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeTokenExpired, "Entitlement token expired")
	case errors.Is(err, entitlement.ErrInvalidToken):
		httperrors.RespondUnauthorized(w, httperrors.ErrCodeInvalidToken, "Invalid entitlement token")
	case isExtractionError(err):
		logger.Warn().Err(err).Msg("extraction failed")
		httperrors.RespondError(w, http.StatusBadGateway, httperrors.ErrCodeExtractionFailed, "Could not read the uploaded document")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		httperrors.RespondInternalError(w, "Something went wrong")
	}
}

func isExtractionError(err error) bool {
	var target *extractError
	return errors.As(err, &target)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httperrors.RespondBadRequest(w, httperrors.ErrCodeInvalidRequest, "Invalid request body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
