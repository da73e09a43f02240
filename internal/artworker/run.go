package artworker

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/thomasnguyen/corgi-quest/internal/config"
	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/factory"
	"github.com/thomasnguyen/corgi-quest/internal/logger"
	"github.com/thomasnguyen/corgi-quest/internal/outbox"
	"github.com/thomasnguyen/corgi-quest/internal/questservice"
)

// Run starts the standalone art worker and blocks until shutdown or error.
// Art generated here is stored on the equipped item; live clients see it on
// their next read because the event bus is in-process to quest-service.
func Run() error {
	log := logger.New("quest-worker")

	cfg, err := config.New()
	if err != nil {
		log.Error().Err(err).Msg("config")
		return err
	}
	if cfg.OpenAIAPIKey == "" {
		return fmt.Errorf("art worker requires CORGI_QUEST_OPENAI_API_KEY")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := factory.NewStore(ctx, cfg, log)
	if err != nil {
		log.Error().Stack().Err(err).Msg("store")
		return err
	}
	defer st.Close()

	wcfg := questservice.WorkerConfig(cfg)
	w := outbox.NewWorker(st, questservice.NewAIClient(cfg), events.Discard{}, wcfg, log)

	log.Info().
		Str("db_driver", cfg.DBDriver).
		Int("batch_size", wcfg.BatchSize).
		Dur("interval", wcfg.Interval).
		Msg("art worker starting")

	if err := w.Run(ctx); err != nil && err != context.Canceled {
		log.Error().Err(err).Msg("art worker exit")
		return err
	}
	return nil
}
