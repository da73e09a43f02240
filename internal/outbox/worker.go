package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/metrics"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// Operation names stored in outbox.op
const (
	OpGenerateEquippedArt = "generate_equipped_art"
)

// ArtJob is the payload of OpGenerateEquippedArt.
type ArtJob struct {
	HouseholdID string `json:"householdId"`
	DogID       string `json:"dogId"`
	ItemID      string `json:"itemId"`
}

// ImageGenerator turns a prompt into a hosted image URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Config controls batch size and polling cadence.
type Config struct {
	BatchSize int           // number of rows to lease per cycle
	Interval  time.Duration // poll interval
	// LeaseFor hides leased rows from other workers while they are handled.
	LeaseFor time.Duration
}

// Worker processes outbox rows.
type Worker struct {
	store  store.Store
	images ImageGenerator
	bus    events.Publisher
	log    zerolog.Logger
	cfg    Config
	now    func() time.Time
}

// NewWorker constructs a Worker from dependencies.
func NewWorker(st store.Store, images ImageGenerator, bus events.Publisher, cfg Config, log zerolog.Logger) *Worker {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 10
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.LeaseFor <= 0 {
		cfg.LeaseFor = 2 * time.Minute
	}
	if bus == nil {
		bus = events.Discard{}
	}
	return &Worker{store: st, images: images, bus: bus, log: log, cfg: cfg, now: func() time.Time { return time.Now().UTC() }}
}

// Run starts the polling loop until ctx is canceled.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().Int("batch", w.cfg.BatchSize).Dur("interval", w.cfg.Interval).Msg("outbox worker starting")
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("outbox worker stopping")
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				// per-row backoff prevents hot-looping
				w.log.Error().Err(err).Msg("outbox processOnce")
			}
		}
	}
}

// ProcessOnce leases one batch and handles it. It returns the number of rows leased.
func (w *Worker) ProcessOnce(ctx context.Context) (int, error) {
	jobs, err := w.store.Outbox().Lease(ctx, w.cfg.BatchSize, w.now(), w.cfg.LeaseFor)
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		err := w.handle(ctx, j)
		switch {
		case err == nil:
			metrics.OutboxJobs.WithLabelValues(j.Op, "done").Inc()
			if e := w.store.Outbox().MarkDone(ctx, j.ID, w.now()); e != nil {
				w.log.Error().Err(e).Int64("id", j.ID).Msg("markDone error")
			}
		case terminal(err):
			metrics.OutboxJobs.WithLabelValues(j.Op, "dead").Inc()
			w.log.Warn().Err(err).Int64("id", j.ID).Str("op", j.Op).Msg("outbox job abandoned")
			if e := w.store.Outbox().MarkDead(ctx, j.ID, w.now(), err); e != nil {
				w.log.Error().Err(e).Int64("id", j.ID).Msg("markDead error")
			}
		default:
			metrics.OutboxJobs.WithLabelValues(j.Op, "retry").Inc()
			w.log.Warn().Err(err).Int64("id", j.ID).Int("attempt", j.AttemptCount+1).Msg("outbox job failed")
			if e := w.store.Outbox().MarkFailed(ctx, j.ID, w.now(), err); e != nil {
				w.log.Error().Err(e).Int64("id", j.ID).Msg("markFailed error")
			}
		}
	}
	return len(jobs), nil
}

var errBadPayload = errors.New("bad payload")

// terminal reports failures that retrying cannot fix.
func terminal(err error) bool {
	return errors.Is(err, openai.ErrContentPolicy) ||
		errors.Is(err, openai.ErrNotConfigured) ||
		errors.Is(err, errBadPayload) ||
		model.IsValidationError(err)
}

// handle executes the outbox operation.
func (w *Worker) handle(ctx context.Context, j store.OutboxJob) error {
	switch j.Op {
	case OpGenerateEquippedArt:
		var p ArtJob
		if err := json.Unmarshal(j.Payload, &p); err != nil || p.DogID == "" || p.ItemID == "" {
			return errBadPayload
		}
		return w.generateArt(ctx, p)
	default:
		return model.NewValidationError("op", "unknown op: "+j.Op)
	}
}

func (w *Worker) generateArt(ctx context.Context, p ArtJob) error {
	equipped, err := w.store.Cosmetics().GetEquipped(ctx, p.DogID)
	if model.IsNotFoundError(err) || (err == nil && equipped.ItemID != p.ItemID) {
		w.log.Debug().Str("dog_id", p.DogID).Str("item_id", p.ItemID).Msg("item no longer equipped; skipping art")
		return nil
	}
	if err != nil {
		return err
	}
	dog, err := w.store.Dogs().Get(ctx, p.DogID)
	if err != nil {
		return err
	}
	item, err := w.store.Cosmetics().GetItem(ctx, p.ItemID)
	if err != nil {
		return err
	}
	if item.ArtPrompt == nil || *item.ArtPrompt == "" {
		return nil
	}
	if w.images == nil {
		return openai.ErrNotConfigured
	}
	url, err := w.images.GenerateImage(ctx, ArtPrompt(dog.Name, item))
	if err != nil {
		return fmt.Errorf("generate art for %s: %w", item.ItemID, err)
	}
	ok, err := w.store.Cosmetics().SetEquippedImage(ctx, p.DogID, p.ItemID, url)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	updated, err := w.store.Cosmetics().GetEquipped(ctx, p.DogID)
	if err != nil {
		return err
	}
	householdID := p.HouseholdID
	if householdID == "" {
		householdID = dog.HouseholdID
	}
	w.bus.Publish(events.Event{Kind: events.EventCosmeticArtReady, HouseholdID: householdID, Data: updated})
	w.log.Info().Str("dog_id", p.DogID).Str("item_id", p.ItemID).Msg("equipped art ready")
	return nil
}

// ArtPrompt composes the image prompt for a dog wearing item.
func ArtPrompt(dogName string, item *model.CosmeticItem) string {
	prompt := ""
	if item.ArtPrompt != nil {
		prompt = *item.ArtPrompt
	}
	return fmt.Sprintf("A cheerful cartoon illustration of a corgi named %s with %s (%s). %s Soft colors, simple background, no text.",
		dogName, item.Name, item.ElementType, prompt)
}
