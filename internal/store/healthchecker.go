package store

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/health"
	"github.com/thomasnguyen/corgi-quest/internal/model"
)

// NewStoreHealthChecker monitors store health. Stores that implement
// health.HealthPinger are pinged directly; others are probed with a read.
func NewStoreHealthChecker(st Store, log zerolog.Logger, probeTimeout time.Duration) *health.PingChecker {
	return health.NewPingChecker("store", storePinger{st: st}, log, probeTimeout)
}

type storePinger struct{ st Store }

func (p storePinger) HealthPing(ctx context.Context) error {
	if hp, ok := p.st.(health.HealthPinger); ok {
		return hp.HealthPing(ctx)
	}
	// NotFound is acceptable: it means the database answered.
	_, err := p.st.Households().Get(ctx, "__health_check__")
	if err == nil || model.IsNotFoundError(err) {
		return nil
	}
	return err
}
