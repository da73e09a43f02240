package questservice

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/api"
	"github.com/thomasnguyen/corgi-quest/internal/auth"
	"github.com/thomasnguyen/corgi-quest/internal/config"
	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/factory"
	"github.com/thomasnguyen/corgi-quest/internal/health"
	"github.com/thomasnguyen/corgi-quest/internal/logger"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/outbox"
	"github.com/thomasnguyen/corgi-quest/internal/progression"
	"github.com/thomasnguyen/corgi-quest/internal/services"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

const liveBufferSize = 32

// Run starts the quest service HTTP server and blocks until shutdown or error.
func Run() error {
	log := logger.New("quest-service")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		return err
	}

	log.Info().
		Str("build_target", cfg.BuildTarget).
		Str("db_driver", cfg.DBDriver).
		Int("http_port", cfg.HTTPPort).
		Bool("ai_configured", cfg.OpenAIAPIKey != "").
		Bool("embedded_worker", cfg.EmbeddedWorker).
		Msg("Quest service starting")

	// Create cancellable root context bound to SIGINT/SIGTERM
	ctx, stop := newServerContext()
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("Store adapter unavailable")
		return err
	}
	defer st.Close()

	ai := NewAIClient(cfg)
	bus := events.NewBus(liveBufferSize)

	svcHealth := startHealthCheckers(ctx, cfg, log, st)
	router := buildRouter(st, ai, bus, svcHealth, cfg, log)

	// Block startup until dependencies report healthy; fail fast otherwise
	if err := waitUntilHealthy(ctx, cfg, svcHealth); err != nil {
		log.Error().Stack().Err(err).Msg("startup health check failed")
		return err
	}

	if cfg.EmbeddedWorker {
		w := outbox.NewWorker(st, ai, bus, WorkerConfig(cfg), log.With().Str("component", "art-worker").Logger())
		go func() {
			if err := w.Run(ctx); err != nil && err != context.Canceled {
				log.Error().Err(err).Msg("embedded art worker stopped")
			}
		}()
	}

	server := newHTTPServer(ctx, cfg, router)
	errCh := serveHTTP(server, log, cfg)

	// Graceful shutdown on context cancel or server error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down server")
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(ctxShutdown); err != nil {
			log.Error().Stack().Err(err).Msg("Server forced to shutdown")
			return err
		}
		log.Info().Msg("Server exited")
		return nil
	case err := <-errCh:
		log.Error().Stack().Err(err).Msg("HTTP server failed")
		return err
	}
}

// NewAIClient builds the AI gateway client from configuration.
func NewAIClient(cfg *config.Config) *openai.Client {
	return openai.New(openai.Config{
		APIKey:     cfg.OpenAIAPIKey,
		BaseURL:    cfg.OpenAIBaseURL,
		ChatModel:  cfg.ChatModel,
		ImageModel: cfg.ImageModel,
		Timeout:    cfg.AIRequestTimeout(),
	})
}

// WorkerConfig maps the outbox settings onto the worker.
func WorkerConfig(cfg *config.Config) outbox.Config {
	return outbox.Config{
		BatchSize: cfg.OutboxBatchSize,
		Interval:  time.Duration(cfg.OutboxIntervalSeconds) * time.Second,
		LeaseFor:  2 * cfg.AIRequestTimeout(),
	}
}

// buildRouter wires services to the HTTP surface.
func buildRouter(st store.Store, ai *openai.Client, bus *events.Bus, svcHealth *health.ServiceHealthChecker, cfg *config.Config, log zerolog.Logger) http.Handler {
	rules := services.RulesFromConfig(cfg)

	goals := services.NewGoalService(st, rules, bus)
	streaks := services.NewStreakService(st, rules)
	activities := services.NewActivityService(st, rules, progression.DefaultCatalog(), bus, log)

	return api.NewRouter(api.Deps{
		Households:      services.NewHouseholdService(st, rules),
		Dogs:            services.NewDogService(st, goals, streaks),
		Activities:      activities,
		Goals:           goals,
		Streaks:         streaks,
		Moods:           services.NewMoodService(st, rules, bus),
		Cosmetics:       services.NewCosmeticService(st, rules, bus),
		Recommendations: services.NewRecommendationService(st, rules, ai, log),
		Voice: services.NewVoiceService(activities, ai, ai, services.VoiceConfig{
			RealtimeModel: cfg.RealtimeModel,
			RealtimeVoice: cfg.RealtimeVoice,
		}, log),
		Issuer:         auth.NewIssuer(cfg.JWTSecret, time.Duration(cfg.TokenTTLHours)*time.Hour),
		Bus:            bus,
		Health:         svcHealth,
		AllowedOrigins: cfg.AllowedOrigins,
		Log:            log,
	})
}

// startHealthCheckers starts component checkers and the service-level aggregator.
func startHealthCheckers(ctx context.Context, cfg *config.Config, log zerolog.Logger, st store.Store) *health.ServiceHealthChecker {
	probeTimeout := time.Duration(cfg.HealthProbeTimeoutSeconds) * time.Second
	interval := time.Duration(cfg.HealthIntervalSeconds) * time.Second

	storeChecker := store.NewStoreHealthChecker(st, log, probeTimeout)
	go storeChecker.Start(ctx, interval)

	svcHealth := health.NewServiceHealthChecker(log, storeChecker)
	go svcHealth.Start(ctx, interval)
	return svcHealth
}

func newHTTPServer(ctx context.Context, cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.GetHTTPAddr(),
		Handler:           handler,
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		// AI-backed handlers may wait on the gateway for its full timeout.
		WriteTimeout: cfg.AIRequestTimeout() + 15*time.Second,
		IdleTimeout:  60 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}
}

func serveHTTP(server *http.Server, log zerolog.Logger, cfg *config.Config) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Int("port", cfg.HTTPPort).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	return errCh
}

// startupHealthTimeout is interval*2 with a floor of 60 seconds.
func startupHealthTimeout(healthIntervalSeconds int) time.Duration {
	timeout := healthIntervalSeconds * 2
	if timeout < 60 {
		timeout = 60
	}
	return time.Duration(timeout) * time.Second
}

// waitUntilHealthy blocks until service health is healthy or the startup window expires.
func waitUntilHealthy(ctx context.Context, cfg *config.Config, svcHealth *health.ServiceHealthChecker) error {
	timeout := startupHealthTimeout(cfg.HealthIntervalSeconds)
	if err := health.WaitUntilHealthy(ctx, svcHealth, timeout); err != nil {
		return fmt.Errorf("startup aborted: %w", err)
	}
	return nil
}

// newServerContext returns a cancellable context that is cancelled on SIGINT/SIGTERM.
func newServerContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
