package health

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakePinger struct{ fail atomic.Bool }

func (f *fakePinger) HealthPing(ctx context.Context) error {
	if f.fail.Load() {
		return errors.New("down")
	}
	return nil
}

func TestPingChecker_FlipsWithProbe(t *testing.T) {
	p := &fakePinger{}
	pc := NewPingChecker("store", p, zerolog.Nop(), time.Second)
	if pc.IsHealthy() {
		t.Fatalf("checker must start unhealthy")
	}
	if !pc.Check(context.Background()) || !pc.IsHealthy() {
		t.Fatalf("expected healthy after successful probe")
	}
	p.fail.Store(true)
	if pc.Check(context.Background()) || pc.IsHealthy() {
		t.Fatalf("expected unhealthy after failed probe")
	}
}

func TestServiceHealthChecker_AggregatesAndWaits(t *testing.T) {
	p := &fakePinger{}
	pc := NewPingChecker("store", p, zerolog.Nop(), time.Second)
	svc := NewServiceHealthChecker(zerolog.Nop(), pc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pc.Start(ctx, 10*time.Millisecond)
	go svc.Start(ctx, 10*time.Millisecond)

	if err := WaitUntilHealthy(ctx, svc, 2*time.Second); err != nil {
		t.Fatalf("WaitUntilHealthy: %v", err)
	}
	if got := svc.Components(); !got["store"] {
		t.Fatalf("components: %v", got)
	}
}

func TestWaitUntilHealthy_TimesOut(t *testing.T) {
	svc := NewServiceHealthChecker(zerolog.Nop())
	err := WaitUntilHealthy(context.Background(), svc, 10*time.Millisecond)
	var te ErrStartupTimeout
	if !errors.As(err, &te) {
		t.Fatalf("expected ErrStartupTimeout, got %v", err)
	}
}
