package streak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

const StateKey = "quiz-streak"

// State is the persisted streak record. It is replaced whole on every update.
type State struct {
	Streak          int     `json:"streak"`
	LastDate        *string `json:"lastDate"`
	StreakStartDate *string `json:"streakStartDate"`
}

// HistoryReader exposes completed quizzes to the tracker.
type HistoryReader interface {
	History(ctx context.Context) ([]quiz.HistoryRecord, error)
}

// Tracker derives the consecutive-day streak from history.
type Tracker struct {
	store   kv.Store
	history HistoryReader
	clock   calendar.Clock
	logger  zerolog.Logger
}

func NewTracker(store kv.Store, history HistoryReader, clock calendar.Clock, logger zerolog.Logger) *Tracker {
	return &Tracker{
		store:   store,
		history: history,
		clock:   clock,
		logger:  logger.With().Str("component", "streak").Logger(),
	}
}

// Current returns the stored state, or the zero state when none exists.
func (t *Tracker) Current(ctx context.Context) (State, error) {
	state, _, err := t.load(ctx)
	return state, err
}

// CheckOnLaunch initialises a missing state and resets a streak whose last
// day is older than yesterday.
func (t *Tracker) CheckOnLaunch(ctx context.Context) (State, error) {
	state, found, err := t.load(ctx)
	if err != nil {
		return State{}, err
	}
	if !found {
		return State{}, t.save(ctx, State{})
	}
	if state.LastDate != nil && *state.LastDate < t.clock.Yesterday() {
		t.logger.Info().Str("last_date", *state.LastDate).Int("streak", state.Streak).Msg("streak broken")
		return State{}, t.save(ctx, State{})
	}
	return state, nil
}

// UpdateAfterQuiz records today's completion. It must run after the history
// record for the completed quiz has been written.
func (t *Tracker) UpdateAfterQuiz(ctx context.Context) (State, error) {
	today := t.clock.Today()

	records, err := t.history.History(ctx)
	if err != nil {
		return State{}, fmt.Errorf("read history: %w", err)
	}
	if len(records) == 0 {
		next := State{Streak: 1, LastDate: strPtr(today), StreakStartDate: strPtr(today)}
		return next, t.save(ctx, next)
	}

	state, _, err := t.load(ctx)
	if err != nil {
		return State{}, err
	}

	if latest := mostRecent(records); latest.Date != today {
		t.logger.Debug().Str("latest", latest.Date).Msg("latest record is not from today")
		return state, nil
	}
	if state.LastDate != nil && *state.LastDate == today {
		return state, nil
	}

	next := State{Streak: 1, LastDate: strPtr(today), StreakStartDate: strPtr(today)}
	if state.LastDate != nil && *state.LastDate == t.clock.Yesterday() && state.StreakStartDate != nil {
		days, err := calendar.DaysBetween(*state.StreakStartDate, today)
		if err != nil {
			t.logger.Warn().Err(err).Msg("invalid streak start date, starting fresh")
		} else {
			next.Streak = days + 1
			next.StreakStartDate = state.StreakStartDate
		}
	}
	return next, t.save(ctx, next)
}

func mostRecent(records []quiz.HistoryRecord) quiz.HistoryRecord {
	sorted := make([]quiz.HistoryRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return instant(sorted[i]).Before(instant(sorted[j]))
	})
	return sorted[len(sorted)-1]
}

func instant(r quiz.HistoryRecord) time.Time {
	at, ok := calendar.Instant(r.Date, r.Time)
	if !ok {
		return time.Time{}
	}
	return at
}

func (t *Tracker) load(ctx context.Context) (State, bool, error) {
	raw, err := t.store.Get(ctx, StateKey)
	if errors.Is(err, kv.ErrNotFound) {
		return State{}, false, nil
	}
	if err != nil {
		return State{}, false, fmt.Errorf("read streak: %w", err)
	}
	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		t.logger.Warn().Err(err).Msg("corrupt streak state treated as empty")
		return State{}, false, nil
	}
	return state, true, nil
}

func (t *Tracker) save(ctx context.Context, state State) error {
	data, err := json.Marshal(state)
	if err != nil {
		return err
	}
	if err := t.store.Set(ctx, StateKey, string(data)); err != nil {
		return fmt.Errorf("write streak: %w", err)
	}
	return nil
}

func strPtr(s string) *string { return &s }
