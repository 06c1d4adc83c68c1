package study

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAutoWorkerRunsImmediatelyAndStops(t *testing.T) {
	f := newFixture(t)
	enableReminders(t, f)
	addMaterial(t, f, "a.pdf", "alpha")

	worker := NewAutoWorker(f.svc, time.Hour, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- worker.Run(ctx) }()

	require.Eventually(t, func() bool {
		exists, err := f.history.HasAutoQuiz(context.Background())
		return err == nil && exists
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop")
	}
	assert.Len(t, f.gen.requests(), 1)
}

func TestAutoWorkerDefaults(t *testing.T) {
	w := NewAutoWorker(nil, 0, 0, zerolog.Nop())
	assert.Equal(t, 30*time.Minute, w.interval)
	assert.Equal(t, 2*time.Minute, w.timeout)
	assert.NoError(t, w.Run(context.Background()))
}
