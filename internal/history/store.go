package history

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

const (
	HistoryKey       = "quiz-history"
	MaterialsKey     = "study-materials"
	TodayPrefix      = "quiz-"
	AutoPrefix       = "quizAG-"
	CustomQuizPrefix = "quizC-"
)

// Store persists completed quizzes, today's quiz and uploaded materials.
// Every write replaces the whole document.
type Store struct {
	kv     kv.Store
	clock  calendar.Clock
	logger zerolog.Logger
}

func NewStore(store kv.Store, clock calendar.Clock, logger zerolog.Logger) *Store {
	return &Store{
		kv:     store,
		clock:  clock,
		logger: logger.With().Str("component", "history").Logger(),
	}
}

// AppendCompletedQuiz adds a record to the history sequence.
func (s *Store) AppendCompletedQuiz(ctx context.Context, record quiz.HistoryRecord) error {
	records, err := s.History(ctx)
	if err != nil {
		return err
	}
	records = append(records, record)
	return s.writeJSON(ctx, HistoryKey, records)
}

// History returns all completed quizzes in append order.
func (s *Store) History(ctx context.Context) ([]quiz.HistoryRecord, error) {
	return readDoc[[]quiz.HistoryRecord](ctx, s, HistoryKey)
}

// SaveTodayQuiz overwrites the quiz stored under today's date.
func (s *Store) SaveTodayQuiz(ctx context.Context, q quiz.Quiz) error {
	return s.writeJSON(ctx, TodayPrefix+s.clock.Today(), q)
}

func (s *Store) TodayQuiz(ctx context.Context) (quiz.Quiz, error) {
	return readDoc[quiz.Quiz](ctx, s, TodayPrefix+s.clock.Today())
}

// AppendStudyMaterial adds an uploaded material to the materials list.
func (s *Store) AppendStudyMaterial(ctx context.Context, material quiz.StudyMaterial) error {
	materials, err := s.Materials(ctx)
	if err != nil {
		return err
	}
	materials = append(materials, material)
	return s.writeJSON(ctx, MaterialsKey, materials)
}

func (s *Store) Materials(ctx context.Context) ([]quiz.StudyMaterial, error) {
	return readDoc[[]quiz.StudyMaterial](ctx, s, MaterialsKey)
}

// SaveAutoQuiz stores the scheduled quiz for today.
func (s *Store) SaveAutoQuiz(ctx context.Context, q quiz.Quiz) error {
	return s.writeJSON(ctx, AutoPrefix+s.clock.Today(), q)
}

func (s *Store) AutoQuiz(ctx context.Context) (quiz.Quiz, error) {
	return readDoc[quiz.Quiz](ctx, s, AutoPrefix+s.clock.Today())
}

// HasAutoQuiz reports whether today's scheduled quiz already exists.
func (s *Store) HasAutoQuiz(ctx context.Context) (bool, error) {
	_, err := s.kv.Get(ctx, AutoPrefix+s.clock.Today())
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, kv.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("check auto quiz: %w", err)
	}
}

// SaveCustomQuiz stores a user-built quiz under a timestamped key.
func (s *Store) SaveCustomQuiz(ctx context.Context, title string, questions quiz.Quiz) (quiz.CustomQuiz, error) {
	id := strconv.FormatInt(s.clock.UnixMilli(), 10)
	custom := quiz.CustomQuiz{
		ID:                id,
		Title:             title,
		NumberOfQuestions: len(questions),
		Date:              s.clock.Timestamp(),
		Questions:         questions,
	}
	if err := s.writeJSON(ctx, CustomQuizPrefix+id, custom); err != nil {
		return quiz.CustomQuiz{}, err
	}
	return custom, nil
}

// CustomQuizzes returns all user-built quizzes, newest first.
func (s *Store) CustomQuizzes(ctx context.Context) ([]quiz.CustomQuiz, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	var customKeys []string
	for _, key := range keys {
		if strings.HasPrefix(key, CustomQuizPrefix) {
			customKeys = append(customKeys, key)
		}
	}
	if len(customKeys) == 0 {
		return nil, nil
	}

	pairs, err := s.kv.MultiGet(ctx, customKeys)
	if err != nil {
		return nil, fmt.Errorf("load custom quizzes: %w", err)
	}
	out := make([]quiz.CustomQuiz, 0, len(pairs))
	for _, pair := range pairs {
		var custom quiz.CustomQuiz
		if err := json.Unmarshal([]byte(pair.Value), &custom); err != nil {
			s.logger.Warn().Err(err).Str("key", pair.Key).Msg("skipping corrupt custom quiz")
			continue
		}
		if custom.ID == "" {
			custom.ID = strings.TrimPrefix(pair.Key, CustomQuizPrefix)
		}
		out = append(out, custom)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, _ := strconv.ParseInt(out[i].ID, 10, 64)
		b, _ := strconv.ParseInt(out[j].ID, 10, 64)
		return a > b
	})
	return out, nil
}

// readDoc decodes the document at key. Missing and corrupt documents yield
// the zero value.
func readDoc[T any](ctx context.Context, s *Store, key string) (T, error) {
	var zero T
	raw, err := s.kv.Get(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return zero, nil
	}
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", key, err)
	}
	var doc T
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		s.logger.Warn().Err(err).Str("key", key).Msg("corrupt document treated as empty")
		return zero, nil
	}
	return doc, nil
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, string(data)); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}
