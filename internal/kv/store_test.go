package kv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Set(ctx, "quiz-history", `[]`))
	require.NoError(t, store.Set(ctx, "quizC-1", `{"id":"quizC-1"}`))
	require.NoError(t, store.Set(ctx, "quizC-2", `{"id":"quizC-2"}`))

	got, err := store.Get(ctx, "quiz-history")
	require.NoError(t, err)
	assert.Equal(t, `[]`, got)

	require.NoError(t, store.Set(ctx, "quiz-history", `[{"score":1}]`))
	got, err = store.Get(ctx, "quiz-history")
	require.NoError(t, err)
	assert.Equal(t, `[{"score":1}]`, got, "set replaces the whole value")

	keys, err := store.Keys(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"quiz-history", "quizC-1", "quizC-2"}, keys)

	pairs, err := store.MultiGet(ctx, []string{"quizC-2", "nope", "quizC-1"})
	require.NoError(t, err)
	assert.Equal(t, []Pair{
		{Key: "quizC-2", Value: `{"id":"quizC-2"}`},
		{Key: "quizC-1", Value: `{"id":"quizC-1"}`},
	}, pairs)

	pairs, err = store.MultiGet(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, pairs)
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemory())
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "thinkb.db"))
	require.NoError(t, err)
	defer store.Close()

	exerciseStore(t, store)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestSQLiteStorePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thinkb.db")
	ctx := context.Background()

	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, "quiz-streak", `{"streak":2}`))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, "quiz-streak")
	require.NoError(t, err)
	assert.Equal(t, `{"streak":2}`, got)
}
