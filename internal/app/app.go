package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/gokatarajesh/thinkb-quiz/internal/calendar"
	"github.com/gokatarajesh/thinkb-quiz/internal/config"
	"github.com/gokatarajesh/thinkb-quiz/internal/credential"
	"github.com/gokatarajesh/thinkb-quiz/internal/entitlement"
	"github.com/gokatarajesh/thinkb-quiz/internal/extract"
	"github.com/gokatarajesh/thinkb-quiz/internal/history"
	"github.com/gokatarajesh/thinkb-quiz/internal/kv"
	"github.com/gokatarajesh/thinkb-quiz/internal/logging"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz"
	"github.com/gokatarajesh/thinkb-quiz/internal/quiz/provider"
	"github.com/gokatarajesh/thinkb-quiz/internal/server"
	"github.com/gokatarajesh/thinkb-quiz/internal/settings"
	"github.com/gokatarajesh/thinkb-quiz/internal/streak"
	"github.com/gokatarajesh/thinkb-quiz/internal/study"
	ws "github.com/gokatarajesh/thinkb-quiz/pkg/http/ws"
)

// Application aggregates shared infrastructure (store, services, HTTP server).
type Application struct {
	cfg    *config.App
	logger zerolog.Logger

	store kv.Store
	http  *http.Server

	study      *study.Service
	settings   *settings.Service
	autoWorker *study.AutoWorker
	bgCancels  []context.CancelFunc
}

// New bootstraps config, logger, the storage backend, providers and the HTTP server.
func New(ctx context.Context, cfg *config.App) (*Application, error) {
	logger := logging.New(cfg.Name, cfg.Env)
	logger.Info().Str("storage", cfg.Storage.Backend).Msg("starting application bootstrap")

	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	clock := calendar.Clock{Now: time.Now, Location: cfg.Location()}

	resolver := credential.NewResolver(
		credential.NewKVVault(store),
		credential.NewDeriver(cfg.Security.CredentialSecret, cfg.Security.CredentialSalt),
	)

	providers := buildProviders(cfg, resolver, logger)
	if len(providers) == 0 {
		logger.Warn().Msg("no inference provider configured; generation will fail")
	}

	metrics := quiz.NewMetrics(prometheus.DefaultRegisterer)
	generator := quiz.NewGenerator(quiz.NewStoreCache(store), providers, logger, quiz.GeneratorOptions{Metrics: metrics})

	historyStore := history.NewStore(store, clock, logger)
	tracker := streak.NewTracker(store, historyStore, clock, logger)
	settingsSvc := settings.NewService(store, clock, logger)

	deps := study.Dependencies{
		Generator:   generator,
		History:     historyStore,
		Streak:      tracker,
		Settings:    settingsSvc,
		Credentials: resolver,
		Clock:       clock,
	}
	if cfg.Extraction.URL != "" {
		deps.Extractor = extract.NewClient(extract.Config{
			URL:     cfg.Extraction.URL,
			Timeout: cfg.Extraction.Timeout,
		}, logger)
	} else {
		logger.Warn().Msg("EXTRACTION_URL not set; PDF uploads disabled")
	}
	if cfg.Security.EntitlementSecret != "" {
		deps.Entitlements = entitlement.NewVerifier(entitlement.Config{
			Secret: []byte(cfg.Security.EntitlementSecret),
			Issuer: cfg.Name + "-billing",
		})
	} else {
		logger.Warn().Msg("ENTITLEMENT_SECRET not set; tier upgrades disabled")
	}

	studySvc := study.NewService(deps, logger)

	wsHub := ws.NewHub(logger)
	studySvc.AddNotifier(study.NewHubNotifier(wsHub, logger))

	studyHTTP := study.NewHTTPHandler(studySvc, logger)
	studyWS := study.NewWSHandler(studySvc, wsHub, logger)

	var autoWorker *study.AutoWorker
	if cfg.AutoGen.Enabled {
		autoWorker = study.NewAutoWorker(studySvc, cfg.AutoGen.Interval, cfg.AutoGen.Timeout, logger)
	}

	apiServer := server.NewHTTPServer(cfg, logger, store, studyHTTP, studyWS.HandleWebSocket)

	return &Application{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		http:       apiServer,
		study:      studySvc,
		settings:   settingsSvc,
		autoWorker: autoWorker,
		bgCancels:  make([]context.CancelFunc, 0, 1),
	}, nil
}

func buildProviders(cfg *config.App, resolver *credential.Resolver, logger zerolog.Logger) []quiz.Provider {
	var providers []quiz.Provider
	if cfg.Inference.PrimaryURL != "" {
		providers = append(providers, provider.NewPrimary(provider.PrimaryConfig{
			URL:     cfg.Inference.PrimaryURL,
			Model:   cfg.Inference.PrimaryModel,
			Timeout: cfg.Inference.Timeout,
		}, resolver, nil))
	}
	if cfg.Inference.OpenAIKey != "" {
		providers = append(providers, provider.NewOpenAI(provider.OpenAIConfig{
			URL:         cfg.Inference.OpenAIURL,
			APIKey:      cfg.Inference.OpenAIKey,
			Model:       cfg.Inference.OpenAIModel,
			Temperature: cfg.Inference.OpenAITemp,
			Timeout:     cfg.Inference.Timeout,
		}, nil))
	}
	if cfg.Inference.AnthropicKey != "" {
		providers = append(providers, provider.NewAnthropic(provider.AnthropicConfig{
			APIKey:      cfg.Inference.AnthropicKey,
			Model:       cfg.Inference.AnthropicModel,
			MaxTokens:   cfg.Inference.AnthropicTokens,
			Temperature: cfg.Inference.OpenAITemp,
		}))
	}
	names := make([]string, 0, len(providers))
	for _, p := range providers {
		names = append(names, p.Name())
	}
	logger.Info().Strs("providers", names).Msg("inference chain configured")
	return providers
}

func openStore(ctx context.Context, cfg *config.App) (kv.Store, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		return kv.NewRedis(client, cfg.Redis.KeyPrefix), nil
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Postgres.DSN()+" pool_max_conns=10")
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		return kv.NewPostgres(pool), nil
	default:
		if dir := filepath.Dir(cfg.Storage.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create sqlite dir: %w", err)
			}
		}
		return kv.OpenSQLite(cfg.Storage.SQLitePath)
	}
}

// Run prepares stored state, starts workers and the HTTP server, and waits
// for termination signals.
func (a *Application) Run(ctx context.Context) error {
	if err := a.settings.InitializeDefaults(ctx); err != nil {
		return fmt.Errorf("initialize defaults: %w", err)
	}
	state, err := a.study.CheckStreakOnLaunch(ctx)
	if err != nil {
		return fmt.Errorf("check streak: %w", err)
	}
	a.logger.Info().Int("streak", state.Streak).Msg("streak checked")

	errCh := make(chan error, 1)

	a.startBackgroundWorkers(ctx)

	go func() {
		a.logger.Info().Str("addr", a.cfg.HTTPAddr).Msg("http server listening")
		if err := a.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		a.logger.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("http server error: %w", err)
	case <-ctx.Done():
		a.logger.Warn().Msg("context canceled")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.GracefulShutdownTimeout)
	defer cancel()

	if err := a.http.Shutdown(shutdownCtx); err != nil {
		a.logger.Error().Err(err).Msg("http shutdown error")
	}

	for _, cancel := range a.bgCancels {
		cancel()
	}

	if closer, ok := a.store.(kv.Closer); ok {
		if err := closer.Close(); err != nil {
			a.logger.Error().Err(err).Msg("store shutdown error")
		}
	}

	a.logger.Info().Msg("shutdown complete")
	return nil
}

func (a *Application) startBackgroundWorkers(ctx context.Context) {
	if a.autoWorker != nil {
		bgCtx, cancel := context.WithCancel(ctx)
		a.bgCancels = append(a.bgCancels, cancel)
		go func() {
			if err := a.autoWorker.Run(bgCtx); err != nil && err != context.Canceled {
				a.logger.Warn().Err(err).Msg("auto quiz worker stopped")
			}
		}()
	}
}
