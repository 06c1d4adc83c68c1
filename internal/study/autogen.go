package study

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
)

// AutoWorker periodically attempts the scheduled daily quiz generation.
type AutoWorker struct {
	svc      *Service
	logger   zerolog.Logger
	interval time.Duration
	timeout  time.Duration
}

func NewAutoWorker(svc *Service, interval, timeout time.Duration, logger zerolog.Logger) *AutoWorker {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &AutoWorker{
		svc:      svc,
		logger:   logger.With().Str("component", "auto_quiz_worker").Logger(),
		interval: interval,
		timeout:  timeout,
	}
}

// Run blocks until context cancellation.
func (w *AutoWorker) Run(ctx context.Context) error {
	if w.svc == nil {
		return nil
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// run immediately
	w.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.tick(ctx)
		}
	}
}

func (w *AutoWorker) tick(ctx context.Context) {
	runCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	generated, err := w.svc.RunAutoGeneration(runCtx)
	switch {
	case err == nil && generated:
		w.logger.Info().Msg("daily quiz ready")
	case err == nil:
	case errors.Is(err, quiz.ErrCanceled):
		w.logger.Info().Msg("auto generation canceled")
	default:
		w.logger.Warn().Err(err).Msg("auto generation failed")
	}
}
