package quiz

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

var (
	// ErrCanceled means the caller abandoned the generation. It is terminal:
	// no fallback is attempted and nothing is cached.
	ErrCanceled = errors.New("quiz generation canceled")
	// ErrGenerationFailed means every provider failed (or none is configured).
	ErrGenerationFailed = errors.New("quiz generation failed")
)

// ProviderRequest is what a provider needs to produce quiz text.
type ProviderRequest struct {
	Prompt string
	Tier   Tier
}

// Provider is one remote inference endpoint.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req ProviderRequest) (string, error)
}

type attemptOutcome int

const (
	attemptFailed attemptOutcome = iota
	attemptCanceled
)

// classify separates user cancellation from provider failure. Deadlines count
// as failures so a slow primary still falls back.
func classify(ctx context.Context, err error) attemptOutcome {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return attemptCanceled
	}
	return attemptFailed
}

// Generator obtains raw quiz text: cache first for manual requests, then the
// providers in order.
type Generator struct {
	providers []Provider
	cache     ResponseCache
	metrics   *Metrics
	logger    zerolog.Logger
}

type GeneratorOptions struct {
	Metrics *Metrics
}

func NewGenerator(cache ResponseCache, providers []Provider, logger zerolog.Logger, opts GeneratorOptions) *Generator {
	return &Generator{
		providers: providers,
		cache:     cache,
		metrics:   opts.Metrics,
		logger:    logger.With().Str("component", "quiz_generator").Logger(),
	}
}

// Generate returns the raw provider text for req. The context is the
// cancellation handle: canceling it aborts the in-flight request and yields
// ErrCanceled.
func (g *Generator) Generate(ctx context.Context, req GenerationRequest) (string, error) {
	key := req.CacheKey()
	log := g.logger.With().
		Str("mode", string(req.Mode)).
		Str("tier", string(req.Tier)).
		Int("questions", req.NumberOfQuestions).
		Str("difficulty", string(req.Difficulty)).
		Logger()

	if req.Mode == ModeManual {
		raw, hit, err := g.cache.Get(ctx, key)
		switch {
		case err != nil:
			g.metrics.observeLookup("error")
			log.Warn().Err(err).Msg("cache read failed, treating as miss")
		case hit:
			g.metrics.observeLookup("hit")
			log.Debug().Msg("serving quiz from cache")
			return raw, nil
		default:
			g.metrics.observeLookup("miss")
		}
	}

	if err := ctx.Err(); err != nil && errors.Is(err, context.Canceled) {
		return "", ErrCanceled
	}

	preq := ProviderRequest{Prompt: BuildPrompt(req), Tier: req.Tier}
	for _, p := range g.providers {
		raw, err := p.Complete(ctx, preq)
		if err == nil && raw == "" {
			err = errors.New("empty response")
		}
		if err == nil {
			g.metrics.observeAttempt(p.Name(), "success")
			// the write happens in both modes so a later manual call can reuse it
			if cerr := g.cache.Set(context.WithoutCancel(ctx), key, raw); cerr != nil {
				log.Warn().Err(cerr).Msg("cache write failed")
			}
			log.Info().Str("provider", p.Name()).Msg("quiz generated")
			return raw, nil
		}

		if classify(ctx, err) == attemptCanceled {
			g.metrics.observeAttempt(p.Name(), "canceled")
			log.Info().Str("provider", p.Name()).Msg("generation canceled")
			return "", ErrCanceled
		}
		g.metrics.observeAttempt(p.Name(), "failed")
		log.Warn().Err(err).Str("provider", p.Name()).Msg("provider failed, trying next")
	}

	return "", fmt.Errorf("%w: %d provider(s) exhausted", ErrGenerationFailed, len(g.providers))
}
