package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

const (
	SettingsKey      = "quiz-settings"
	TierKey          = "user-tier"
	AutoQuizShownKey = "autoQuizShown"

	DefaultQuizLength = 5
	MaxQuizLength     = 50
)

// ErrInvalidSettings wraps every Validate failure.
var ErrInvalidSettings = errors.New("invalid settings")

// Settings are the user's quiz preferences.
type Settings struct {
	QuizLength      int             `json:"quizLength"`
	Difficulty      quiz.Difficulty `json:"difficulty"`
	ReminderEnabled bool            `json:"reminderEnabled"`
	ReminderTime    string          `json:"reminderTime"`
}

// Validate checks user-supplied settings before they are stored.
func (s Settings) Validate() error {
	if s.QuizLength < 1 || s.QuizLength > MaxQuizLength {
		return fmt.Errorf("%w: quizLength must be between 1 and %d", ErrInvalidSettings, MaxQuizLength)
	}
	if _, err := quiz.ParseDifficulty(string(s.Difficulty)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.ReminderTime != "" {
		if _, err := time.Parse(time.RFC3339, s.ReminderTime); err != nil {
			return fmt.Errorf("%w: reminderTime must be an RFC3339 timestamp", ErrInvalidSettings)
		}
	}
	return nil
}

// Service is the typed application-state service over the store.
type Service struct {
	store  kv.Store
	clock  calendar.Clock
	logger zerolog.Logger
}

func NewService(store kv.Store, clock calendar.Clock, logger zerolog.Logger) *Service {
	return &Service{
		store:  store,
		clock:  clock,
		logger: logger.With().Str("component", "settings").Logger(),
	}
}

// Defaults are the settings used before the user changes anything:
// five easy questions, reminders off at 18:00 today.
func (s *Service) Defaults() Settings {
	now := s.clock.Now
	if now == nil {
		now = time.Now
	}
	loc := s.clock.Location
	if loc == nil {
		loc = time.UTC
	}
	t := now().In(loc)
	reminder := time.Date(t.Year(), t.Month(), t.Day(), 18, 0, 0, 0, loc)
	return Settings{
		QuizLength:      DefaultQuizLength,
		Difficulty:      quiz.DifficultyEasy,
		ReminderEnabled: false,
		ReminderTime:    reminder.Format(time.RFC3339),
	}
}

// Get returns stored settings with missing fields filled from defaults.
func (s *Service) Get(ctx context.Context) (Settings, error) {
	defaults := s.Defaults()
	raw, err := s.store.Get(ctx, SettingsKey)
	if errors.Is(err, kv.ErrNotFound) {
		return defaults, nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("read settings: %w", err)
	}

	stored := defaults
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		s.logger.Warn().Err(err).Msg("corrupt settings, using defaults")
		return defaults, nil
	}
	if stored.QuizLength <= 0 {
		stored.QuizLength = defaults.QuizLength
	}
	if _, err := quiz.ParseDifficulty(string(stored.Difficulty)); err != nil {
		stored.Difficulty = defaults.Difficulty
	}
	return stored, nil
}

func (s *Service) Update(ctx context.Context, next Settings) (Settings, error) {
	if err := next.Validate(); err != nil {
		return Settings{}, err
	}
	if next.ReminderTime == "" {
		next.ReminderTime = s.Defaults().ReminderTime
	}
	if err := s.writeJSON(ctx, SettingsKey, next); err != nil {
		return Settings{}, err
	}
	return next, nil
}

// Tier returns the subscription tier, defaulting to normal.
func (s *Service) Tier(ctx context.Context) (quiz.Tier, error) {
	raw, err := s.store.Get(ctx, TierKey)
	if errors.Is(err, kv.ErrNotFound) {
		return quiz.TierNormal, nil
	}
	if err != nil {
		return "", fmt.Errorf("read tier: %w", err)
	}
	tier, err := quiz.ParseTier(raw)
	if err != nil {
		s.logger.Warn().Str("tier", raw).Msg("unknown stored tier, using normal")
		return quiz.TierNormal, nil
	}
	return tier, nil
}

func (s *Service) SetTier(ctx context.Context, tier quiz.Tier) error {
	if _, err := quiz.ParseTier(string(tier)); err != nil {
		return err
	}
	if err := s.store.Set(ctx, TierKey, string(tier)); err != nil {
		return fmt.Errorf("write tier: %w", err)
	}
	return nil
}

// AutoQuizShown reports whether the current auto-generated quiz was opened.
func (s *Service) AutoQuizShown(ctx context.Context) (bool, error) {
	return s.readBool(ctx, AutoQuizShownKey)
}

func (s *Service) SetAutoQuizShown(ctx context.Context, shown bool) error {
	return s.store.Set(ctx, AutoQuizShownKey, strconv.FormatBool(shown))
}

// InitializeDefaults seeds the documents every flow expects to exist.
// Present documents are left alone.
func (s *Service) InitializeDefaults(ctx context.Context) error {
	seeds := []struct {
		key   string
		value any
	}{
		{SettingsKey, s.Defaults()},
		{"quiz-streak", map[string]any{"streak": 0, "lastDate": nil, "streakStartDate": nil}},
		{"quiz-history", []any{}},
		{"study-materials", []any{}},
	}
	for _, seed := range seeds {
		_, err := s.store.Get(ctx, seed.key)
		if err == nil {
			continue
		}
		if !errors.Is(err, kv.ErrNotFound) {
			return fmt.Errorf("read %s: %w", seed.key, err)
		}
		if err := s.writeJSON(ctx, seed.key, seed.value); err != nil {
			return err
		}
		s.logger.Debug().Str("key", seed.key).Msg("seeded default document")
	}
	return nil
}

func (s *Service) readBool(ctx context.Context, key string) (bool, error) {
	raw, err := s.store.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read %s: %w", key, err)
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, nil
	}
	return v, nil
}

func (s *Service) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if err := s.store.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
