package study

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/history"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
	"github.com/gokatarajesh/thinkb-quiz/internal/settings"
	"github.com/gokatarajesh/thinkb-quiz/internal/streak"
)

var (
	// ErrEmptyQuiz means the provider answered but no question survived parsing.
	ErrEmptyQuiz = errors.New("generated quiz has no valid questions")
	// ErrNoContent means there was no study text to generate from.
	ErrNoContent = errors.New("study material has no text")
	// ErrInvalidScore means a completion reported a score outside [0, total].
	ErrInvalidScore = errors.New("score out of range")
	// ErrInvalidQuiz means a user-built quiz failed validation.
	ErrInvalidQuiz = errors.New("invalid quiz")
	// ErrNoExtractor means uploads are disabled because no extractor is configured.
	ErrNoExtractor = errors.New("document extraction not configured")
)

// Generator produces raw provider text for a request.
type Generator interface {
	Generate(ctx context.Context, req quiz.GenerationRequest) (string, error)
}

// Extractor turns an uploaded document into text.
type Extractor interface {
	Extract(ctx context.Context, fileName string, doc io.Reader) (string, error)
}

// EntitlementVerifier maps a signed entitlement token to a tier.
type EntitlementVerifier interface {
	Verify(token string) (quiz.Tier, error)
}

// CredentialProvisioner stores the access credential for a tier.
type CredentialProvisioner interface {
	Provision(ctx context.Context, tier quiz.Tier) (string, error)
}

// Notifier is told when the scheduled daily quiz is ready.
type Notifier interface {
	DailyQuizReady(ctx context.Context, date string, q quiz.Quiz)
}

// Dependencies groups the collaborators of Service.
type Dependencies struct {
	Generator    Generator
	History      *history.Store
	Streak       *streak.Tracker
	Settings     *settings.Service
	Extractor    Extractor
	Entitlements EntitlementVerifier
	Credentials  CredentialProvisioner
	Clock        calendar.Clock
}

// Service composes generation, parsing, history and streak tracking into
// the flows a client drives.
type Service struct {
	generator    Generator
	history      *history.Store
	streak       *streak.Tracker
	settings     *settings.Service
	extractor    Extractor
	entitlements EntitlementVerifier
	credentials  CredentialProvisioner
	clock        calendar.Clock
	logger       zerolog.Logger

	pick func(n int) int

	// autoMu serialises the check-then-generate sequence of the daily quiz.
	autoMu sync.Mutex

	mu        sync.RWMutex
	notifiers []Notifier
}

func NewService(deps Dependencies, logger zerolog.Logger) *Service {
	return &Service{
		generator:    deps.Generator,
		history:      deps.History,
		streak:       deps.Streak,
		settings:     deps.Settings,
		extractor:    deps.Extractor,
		entitlements: deps.Entitlements,
		credentials:  deps.Credentials,
		clock:        deps.Clock,
		logger:       logger.With().Str("component", "study").Logger(),
		pick:         rand.IntN,
	}
}

// AddNotifier registers a listener for daily quiz events.
func (s *Service) AddNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifiers = append(s.notifiers, n)
}

// GenerateInput is user-supplied study text.
type GenerateInput struct {
	FileName string `json:"fileName"`
	Text     string `json:"text"`
}

// GenerateResult is what a successful manual generation produced.
type GenerateResult struct {
	Quiz     quiz.Quiz          `json:"quiz"`
	Material quiz.StudyMaterial `json:"material"`
}

// GenerateFromText builds a quiz from text using the user's settings and tier,
// stores it as today's quiz and records the material.
func (s *Service) GenerateFromText(ctx context.Context, in GenerateInput) (GenerateResult, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		return GenerateResult{}, ErrNoContent
	}

	prefs, err := s.settings.Get(ctx)
	if err != nil {
		return GenerateResult{}, err
	}
	tier, err := s.settings.Tier(ctx)
	if err != nil {
		return GenerateResult{}, err
	}

	parsed, err := s.generate(ctx, quiz.GenerationRequest{
		Content:           text,
		NumberOfQuestions: prefs.QuizLength,
		Difficulty:        prefs.Difficulty,
		Mode:              quiz.ModeManual,
		Tier:              tier,
	})
	if err != nil {
		return GenerateResult{}, err
	}

	if err := s.history.SaveTodayQuiz(ctx, parsed); err != nil {
		return GenerateResult{}, err
	}

	fileName := in.FileName
	if fileName == "" {
		fileName = "pasted-text"
	}
	material := quiz.StudyMaterial{
		ID:         uuid.NewString(),
		FileName:   fileName,
		UploadDate: s.clock.Timestamp(),
		Text:       text,
		Quiz:       parsed,
	}
	if err := s.history.AppendStudyMaterial(ctx, material); err != nil {
		return GenerateResult{}, err
	}

	s.logger.Info().
		Str("file", fileName).
		Int("questions", len(parsed)).
		Str("tier", string(tier)).
		Msg("quiz generated")
	return GenerateResult{Quiz: parsed, Material: material}, nil
}

// UploadMaterial extracts text from a document and generates a quiz from it.
func (s *Service) UploadMaterial(ctx context.Context, fileName string, doc io.Reader) (GenerateResult, error) {
	if s.extractor == nil {
		return GenerateResult{}, ErrNoExtractor
	}
	text, err := s.extractor.Extract(ctx, fileName, doc)
	if err != nil {
		return GenerateResult{}, &extractError{fileName: fileName, err: err}
	}
	return s.GenerateFromText(ctx, GenerateInput{FileName: fileName, Text: text})
}

// extractError marks failures of the extraction step.
type extractError struct {
	fileName string
	err      error
}

func (e *extractError) Error() string { return "extract " + e.fileName + ": " + e.err.Error() }

func (e *extractError) Unwrap() error { return e.err }

func (s *Service) generate(ctx context.Context, req quiz.GenerationRequest) (quiz.Quiz, error) {
	raw, err := s.generator.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	parsed := quiz.Parse(raw)
	if len(parsed) == 0 {
		s.logger.Warn().Int("raw_len", len(raw)).Str("mode", string(req.Mode)).Msg("provider output held no valid questions")
		return nil, ErrEmptyQuiz
	}
	return parsed, nil
}

// CompleteInput reports a finished quiz run.
type CompleteInput struct {
	Score  int       `json:"score"`
	Quiz   quiz.Quiz `json:"quiz"`
	Review bool      `json:"review"`
}

// CompleteQuiz appends the run to history and then advances the streak.
// Review runs change nothing.
func (s *Service) CompleteQuiz(ctx context.Context, in CompleteInput) (streak.State, error) {
	if in.Review {
		return s.streak.Current(ctx)
	}
	if in.Score < 0 || in.Score > len(in.Quiz) {
		return streak.State{}, ErrInvalidScore
	}

	record := quiz.HistoryRecord{
		Date:  s.clock.Today(),
		Time:  s.clock.TimeOfDay(),
		Score: in.Score,
		Total: len(in.Quiz),
		Quiz:  in.Quiz,
	}
	if err := s.history.AppendCompletedQuiz(ctx, record); err != nil {
		return streak.State{}, err
	}
	return s.streak.UpdateAfterQuiz(ctx)
}

// RetryQuiz makes a previous quiz today's quiz again.
func (s *Service) RetryQuiz(ctx context.Context, q quiz.Quiz) error {
	if len(q) == 0 {
		return ErrEmptyQuiz
	}
	return s.history.SaveTodayQuiz(ctx, q)
}

func (s *Service) TodayQuiz(ctx context.Context) (quiz.Quiz, error) {
	return s.history.TodayQuiz(ctx)
}

func (s *Service) History(ctx context.Context) ([]quiz.HistoryRecord, error) {
	return s.history.History(ctx)
}

func (s *Service) Materials(ctx context.Context) ([]quiz.StudyMaterial, error) {
	return s.history.Materials(ctx)
}

func (s *Service) Streak(ctx context.Context) (streak.State, error) {
	return s.streak.Current(ctx)
}

func (s *Service) CheckStreakOnLaunch(ctx context.Context) (streak.State, error) {
	return s.streak.CheckOnLaunch(ctx)
}

func (s *Service) SaveCustomQuiz(ctx context.Context, title string, questions quiz.Quiz) (quiz.CustomQuiz, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return quiz.CustomQuiz{}, fmt.Errorf("%w: title is required", ErrInvalidQuiz)
	}
	if len(questions) == 0 {
		return quiz.CustomQuiz{}, ErrEmptyQuiz
	}
	for i, q := range questions {
		if !q.Valid() {
			return quiz.CustomQuiz{}, fmt.Errorf("%w: question %d is incomplete", ErrInvalidQuiz, i+1)
		}
	}
	return s.history.SaveCustomQuiz(ctx, title, questions)
}

func (s *Service) CustomQuizzes(ctx context.Context) ([]quiz.CustomQuiz, error) {
	return s.history.CustomQuizzes(ctx)
}

func (s *Service) Settings(ctx context.Context) (settings.Settings, error) {
	return s.settings.Get(ctx)
}

func (s *Service) UpdateSettings(ctx context.Context, next settings.Settings) (settings.Settings, error) {
	return s.settings.Update(ctx, next)
}

// ApplyEntitlement verifies a billing token, records the granted tier and
// provisions that tier's credential.
func (s *Service) ApplyEntitlement(ctx context.Context, token string) (quiz.Tier, error) {
	if s.entitlements == nil {
		return "", fmt.Errorf("entitlements not configured")
	}
	tier, err := s.entitlements.Verify(token)
	if err != nil {
		return "", err
	}
	if err := s.settings.SetTier(ctx, tier); err != nil {
		return "", err
	}
	if s.credentials != nil {
		if _, err := s.credentials.Provision(ctx, tier); err != nil {
			return "", fmt.Errorf("provision credential: %w", err)
		}
	}
	s.logger.Info().Str("tier", string(tier)).Msg("entitlement applied")
	return tier, nil
}

// PendingAutoQuiz returns today's scheduled quiz and marks it as shown.
// shown reports whether it had already been shown before this call.
func (s *Service) PendingAutoQuiz(ctx context.Context) (q quiz.Quiz, shown bool, err error) {
	q, err = s.history.AutoQuiz(ctx)
	if err != nil || len(q) == 0 {
		return nil, false, err
	}
	shown, err = s.settings.AutoQuizShown(ctx)
	if err != nil {
		return nil, false, err
	}
	if !shown {
		if err := s.settings.SetAutoQuizShown(ctx, true); err != nil {
			return nil, false, err
		}
	}
	return q, shown, nil
}

// RunAutoGeneration builds today's scheduled quiz from a random material when
// reminders are on and no quiz exists for today yet. It reports whether a quiz
// was generated.
func (s *Service) RunAutoGeneration(ctx context.Context) (bool, error) {
	s.autoMu.Lock()
	defer s.autoMu.Unlock()

	prefs, err := s.settings.Get(ctx)
	if err != nil {
		return false, err
	}
	if !prefs.ReminderEnabled {
		s.logger.Debug().Msg("reminders disabled, skipping auto generation")
		return false, nil
	}

	exists, err := s.history.HasAutoQuiz(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		s.logger.Debug().Str("date", s.clock.Today()).Msg("auto quiz already generated today")
		return false, nil
	}

	materials, err := s.history.Materials(ctx)
	if err != nil {
		return false, err
	}
	if len(materials) == 0 {
		s.logger.Debug().Msg("no study materials for auto generation")
		return false, nil
	}
	material := materials[s.pick(len(materials))]

	tier, err := s.settings.Tier(ctx)
	if err != nil {
		return false, err
	}

	parsed, err := s.generate(ctx, quiz.GenerationRequest{
		Content:           material.Text,
		NumberOfQuestions: prefs.QuizLength,
		Difficulty:        prefs.Difficulty,
		Mode:              quiz.ModeAuto,
		Tier:              tier,
	})
	if errors.Is(err, ErrEmptyQuiz) {
		// An empty result still claims the day so the providers are not asked again.
		if saveErr := s.history.SaveAutoQuiz(ctx, quiz.Quiz{}); saveErr != nil {
			return false, saveErr
		}
		return false, err
	}
	if err != nil {
		return false, err
	}

	if err := s.settings.SetAutoQuizShown(ctx, false); err != nil {
		return false, err
	}
	if err := s.history.SaveAutoQuiz(ctx, parsed); err != nil {
		return false, err
	}

	today := s.clock.Today()
	s.logger.Info().Str("date", today).Str("file", material.FileName).Int("questions", len(parsed)).Msg("auto quiz generated")

	s.mu.RLock()
	notifiers := append([]Notifier(nil), s.notifiers...)
	s.mu.RUnlock()
	for _, n := range notifiers {
		n.DailyQuizReady(ctx, today, parsed)
	}
	return true, nil
}
