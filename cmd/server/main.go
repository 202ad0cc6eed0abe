package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/p-n-ai/buzzle/internal/ai"
	"github.com/p-n-ai/buzzle/internal/bridge"
	"github.com/p-n-ai/buzzle/internal/catalog"
	"github.com/p-n-ai/buzzle/internal/genclient"
	"github.com/p-n-ai/buzzle/internal/generator"
	"github.com/p-n-ai/buzzle/internal/platform/cache"
	"github.com/p-n-ai/buzzle/internal/platform/config"
	"github.com/p-n-ai/buzzle/internal/platform/database"
	"github.com/p-n-ai/buzzle/internal/platform/observe"
	"github.com/p-n-ai/buzzle/internal/progress"
	"github.com/p-n-ai/buzzle/internal/session"
	"github.com/p-n-ai/buzzle/internal/tts"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.SetDefault(observe.NewLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format))
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	provider, err := observe.InitProvider()
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("metrics shutdown error", "error", err)
		}
	}()
	metrics, err := observe.NewMetrics(provider.MeterProvider())
	if err != nil {
		return fmt.Errorf("create metrics: %w", err)
	}

	checks := map[string]checker{}

	var db *database.DB
	if cfg.Database.URL != "" {
		db, err = database.New(ctx, cfg.Database.URL, cfg.Database.MaxConns, cfg.Database.MinConns)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := database.Migrate(ctx, db.Pool); err != nil {
			return err
		}
		checks["database"] = db.HealthCheck
		slog.Info("database connected")
	}

	var cc *cache.Cache
	if cfg.Cache.URL != "" {
		cc, err = cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return err
		}
		defer cc.Close()
		checks["cache"] = cc.HealthCheck
		slog.Info("cache connected")
	}

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		return err
	}

	gen, err := newGenerator(ctx, cfg, cat, cc, metrics)
	if err != nil {
		return err
	}

	store, err := newProgressStore(ctx, cfg, db)
	if err != nil {
		return err
	}
	progressSvc := progress.NewService(store, cfg.Progress.Store, metrics)

	var reporter session.Reporter = progressSvc
	if cfg.Progress.URL != "" {
		reporter = progress.NewClient(cfg.Progress.URL)
		slog.Info("reporting progress remotely", "url", cfg.Progress.URL)
	}

	var events session.EventLogger = session.NopEventLogger{}
	if db != nil {
		events = session.NewPostgresEventLogger(db.Pool)
	}

	play := bridge.New(bridge.Config{
		Catalog:          cat,
		Generator:        gen,
		Reporter:         reporter,
		Events:           events,
		Metrics:          metrics,
		NarrationGap:     cfg.Session.NarrationGap,
		FeedbackFallback: cfg.Session.FeedbackFallback,
		FeedbackTimeout:  cfg.Session.FeedbackTimeout,
		ToggleCooldown:   cfg.Session.ToggleCooldown,
		SuccessThreshold: cfg.Session.SuccessThreshold,
		OriginPatterns:   cfg.Server.AllowedOrigins,
	})

	mux := newMux(deps{
		generator: gen,
		progress:  progressSvc,
		catalog:   cat,
		play:      play,
		metrics:   provider.Handler(),
		checks:    checks,
	})

	// No write timeout: /generate waits on the model and /play is long-lived.
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// newGenerator returns the remote generation client when one is configured,
// otherwise the in-process generator over the AI router and speech chain.
func newGenerator(ctx context.Context, cfg *config.Config, cat *catalog.Catalog, cc *cache.Cache, metrics *observe.Metrics) (session.Generator, error) {
	if cfg.Session.GenerateURL != "" {
		slog.Info("using remote generation", "url", cfg.Session.GenerateURL)
		return genclient.New(cfg.Session.GenerateURL), nil
	}

	router, err := newRouter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	speech, err := newSynthesizer(ctx, cfg, cc)
	if err != nil {
		return nil, err
	}
	return generator.New(generator.Config{
		AI:             router,
		Speech:         speech,
		Catalog:        cat,
		Metrics:        metrics,
		NarrationLimit: cfg.Session.NarrationLimit,
	}), nil
}

func newRouter(ctx context.Context, cfg *config.Config) (*ai.Router, error) {
	router := ai.NewRouter()

	if cfg.AI.Anthropic.APIKey != "" {
		var opts []ai.AnthropicOption
		if cfg.AI.Anthropic.Model != "" {
			opts = append(opts, ai.WithAnthropicModel(cfg.AI.Anthropic.Model))
		}
		p, err := ai.NewAnthropicProvider(cfg.AI.Anthropic.APIKey, opts...)
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		router.Register("anthropic", p)
	}
	if cfg.AI.Bedrock.Enabled {
		p, err := ai.NewBedrockProvider(ctx, cfg.AWS.Region, cfg.AI.Bedrock.Model)
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		router.Register("bedrock", p)
	}
	if cfg.AI.OpenAI.APIKey != "" {
		var opts []ai.OpenAIOption
		if cfg.AI.OpenAI.Model != "" {
			opts = append(opts, ai.WithModel(cfg.AI.OpenAI.Model))
		}
		router.Register("openai", ai.NewOpenAIProvider(cfg.AI.OpenAI.APIKey, opts...))
	}
	if cfg.AI.DeepSeek.APIKey != "" {
		router.Register("deepseek", ai.NewDeepSeekProvider(cfg.AI.DeepSeek.APIKey))
	}

	if !router.HasProvider() {
		return nil, ai.ErrNoProvider
	}
	if cfg.AI.LessonProvider != "" {
		router.Prefer(ai.TaskLesson, cfg.AI.LessonProvider)
	}
	return router, nil
}

func newSynthesizer(ctx context.Context, cfg *config.Config, cc *cache.Cache) (tts.Synthesizer, error) {
	var chain tts.Chain
	if cfg.TTS.Provider == "polly" || cfg.TTS.Provider == "chain" {
		p, err := tts.NewPolly(ctx, cfg.AWS.Region)
		if err != nil {
			return nil, fmt.Errorf("polly: %w", err)
		}
		chain = append(chain, p)
	}
	if cfg.TTS.Provider == "google" || cfg.TTS.Provider == "chain" {
		chain = append(chain, tts.NewGoogleTranslate(tts.WithLanguage(cfg.TTS.Language)))
	}

	var speech tts.Synthesizer = chain
	if cc != nil {
		speech = tts.NewCached(chain, tts.NewRedisCache(cc.Cmdable()), cfg.TTS.CacheTTL)
	}
	return speech, nil
}

func newProgressStore(ctx context.Context, cfg *config.Config, db *database.DB) (progress.Store, error) {
	switch cfg.Progress.Store {
	case "postgres":
		if db == nil {
			return nil, fmt.Errorf("progress store postgres needs a database")
		}
		return progress.NewPostgresStore(db.Pool), nil
	case "dynamodb":
		s, err := progress.NewDynamoStore(ctx, cfg.AWS.Region, cfg.Progress.DynamoTable)
		if err != nil {
			return nil, fmt.Errorf("dynamodb store: %w", err)
		}
		return s, nil
	default:
		return progress.NewMemoryStore(), nil
	}
}
