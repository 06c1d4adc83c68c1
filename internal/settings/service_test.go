package settings

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

func newService() (*Service, *kv.Memory) {
	mem := kv.NewMemory()
	clock := calendar.Fixed(time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC))
	return NewService(mem, clock, zerolog.Nop()), mem
}

func TestGetDefaults(t *testing.T) {
	svc, _ := newService()

	got, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, got.QuizLength)
	assert.Equal(t, quiz.DifficultyEasy, got.Difficulty)
	assert.False(t, got.ReminderEnabled)
	assert.Equal(t, "2024-01-02T18:00:00Z", got.ReminderTime)
}

func TestUpdateRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	want := Settings{QuizLength: 10, Difficulty: quiz.DifficultyHard, ReminderEnabled: true, ReminderTime: "2024-01-02T07:30:00Z"}
	_, err := svc.Update(ctx, want)
	require.NoError(t, err)

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestUpdateRejectsInvalid(t *testing.T) {
	svc, _ := newService()

	_, err := svc.Update(context.Background(), Settings{QuizLength: 0, Difficulty: quiz.DifficultyEasy})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = svc.Update(context.Background(), Settings{QuizLength: 5, Difficulty: "brutal"})
	assert.ErrorIs(t, err, ErrInvalidSettings)
	_, err = svc.Update(context.Background(), Settings{QuizLength: 5, Difficulty: quiz.DifficultyEasy, ReminderTime: "6pm"})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestCorruptSettingsFallBackToDefaults(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()
	require.NoError(t, mem.Set(ctx, SettingsKey, "nope"))

	got, err := svc.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, svc.Defaults(), got)
}

func TestTier(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()

	tier, err := svc.Tier(ctx)
	require.NoError(t, err)
	assert.Equal(t, quiz.TierNormal, tier)

	require.NoError(t, svc.SetTier(ctx, quiz.TierPro))
	tier, err = svc.Tier(ctx)
	require.NoError(t, err)
	assert.Equal(t, quiz.TierPro, tier)

	assert.Error(t, svc.SetTier(ctx, "platinum"))

	require.NoError(t, mem.Set(ctx, TierKey, "gold"))
	tier, err = svc.Tier(ctx)
	require.NoError(t, err)
	assert.Equal(t, quiz.TierNormal, tier)
}

func TestAutoQuizShown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService()

	shown, err := svc.AutoQuizShown(ctx)
	require.NoError(t, err)
	assert.False(t, shown)

	require.NoError(t, svc.SetAutoQuizShown(ctx, true))
	shown, err = svc.AutoQuizShown(ctx)
	require.NoError(t, err)
	assert.True(t, shown)
}

func TestInitializeDefaultsKeepsExisting(t *testing.T) {
	ctx := context.Background()
	svc, mem := newService()
	require.NoError(t, mem.Set(ctx, "quiz-history", `[{"date":"2024-01-01"}]`))

	require.NoError(t, svc.InitializeDefaults(ctx))

	history, err := mem.Get(ctx, "quiz-history")
	require.NoError(t, err)
	assert.Equal(t, `[{"date":"2024-01-01"}]`, history)

	streak, err := mem.Get(ctx, "quiz-streak")
	require.NoError(t, err)
	assert.JSONEq(t, `{"streak":0,"lastDate":null,"streakStartDate":null}`, streak)

	materials, err := mem.Get(ctx, "study-materials")
	require.NoError(t, err)
	assert.Equal(t, "[]", materials)

	_, err = mem.Get(ctx, SettingsKey)
	require.NoError(t, err)
}
