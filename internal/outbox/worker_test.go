package outbox_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/outbox"
	"github.com/thomasnguyen/corgi-quest/internal/services"
	"github.com/thomasnguyen/corgi-quest/internal/store"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlite"
)

type fakeImages struct {
	url     string
	err     error
	prompts []string
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

type env struct {
	store     store.Store
	bus       *events.Bus
	household string
	dogID     string
	cosmetics *services.CosmeticService
}

// setup creates a household whose level-2 dog has just equipped an item with art.
func setup(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.New(ctx, sqlite.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	bus := events.NewBus(8)
	rules := services.Rules{}
	hh := services.NewHouseholdService(st, rules)
	m, err := hh.Create(ctx, services.CreateHouseholdInput{HouseholdName: "H", MemberName: "Thomas", DogName: "Bumi"})
	require.NoError(t, err)

	acts := services.NewActivityService(st, rules, nil, nil, zerolog.Nop())
	report := model.NewActivityReport("Long hike", nil, map[model.StatType]int{model.StatPhysical: 100}, 100, 0)
	_, err = acts.LogActivity(ctx, m.Household.HouseholdID, nil, report, model.SourceManual)
	require.NoError(t, err)

	cos := services.NewCosmeticService(st, rules, nil)
	_, err = cos.Equip(ctx, m.Household.HouseholdID, "bandana-blue")
	require.NoError(t, err)

	return &env{store: st, bus: bus, household: m.Household.HouseholdID, dogID: m.Dog.DogID, cosmetics: cos}
}

func (e *env) count(t *testing.T, status string) int {
	t.Helper()
	n, err := e.store.Outbox().CountByStatus(context.Background(), status)
	require.NoError(t, err)
	return n
}

func newWorker(e *env, images outbox.ImageGenerator) *outbox.Worker {
	return outbox.NewWorker(e.store, images, e.bus, outbox.Config{BatchSize: 5, Interval: 10 * time.Millisecond}, zerolog.Nop())
}

func TestWorker_GeneratesArtAndPublishes(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	sub := e.bus.Subscribe(e.household)
	defer sub.Close()
	images := &fakeImages{url: "https://img.example/bumi.png"}

	n, err := newWorker(e, images).ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, images.prompts, 1)
	assert.Contains(t, images.prompts[0], "Bumi")
	assert.Contains(t, images.prompts[0], "Blue Bandana")

	eq, err := e.store.Cosmetics().GetEquipped(ctx, e.dogID)
	require.NoError(t, err)
	require.NotNil(t, eq.ImageURL)
	assert.Equal(t, images.url, *eq.ImageURL)
	assert.Equal(t, 1, e.count(t, store.OutboxDone))

	select {
	case evt := <-sub.C():
		assert.Equal(t, events.EventCosmeticArtReady, evt.Kind)
	case <-time.After(time.Second):
		t.Fatalf("art_ready not published")
	}
}

func TestWorker_ContentPolicyIsTerminal(t *testing.T) {
	e := setup(t)
	images := &fakeImages{err: &openai.Error{Kind: openai.ErrContentPolicy, Op: "image", Message: "blocked"}}

	_, err := newWorker(e, images).ProcessOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, e.count(t, store.OutboxFailed))
	assert.Equal(t, 0, e.count(t, store.OutboxPending))
}

func TestWorker_TransientFailureBacksOff(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	images := &fakeImages{err: &openai.Error{Kind: openai.ErrUnavailable, Op: "image", Message: "down"}}
	w := newWorker(e, images)

	n, err := w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, e.count(t, store.OutboxPending))

	n, err = w.ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "row must wait for its backoff")
	assert.Len(t, images.prompts, 1)
}

func TestWorker_SkipsWhenItemUnequipped(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	require.NoError(t, e.cosmetics.Unequip(ctx, e.household))
	images := &fakeImages{url: "https://img.example/x.png"}

	_, err := newWorker(e, images).ProcessOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, images.prompts)
	assert.Equal(t, 1, e.count(t, store.OutboxDone))
}

func TestWorker_RunStopsOnCancel(t *testing.T) {
	e := setup(t)
	images := &fakeImages{url: "https://img.example/y.png"}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- newWorker(e, images).Run(ctx) }()

	require.Eventually(t, func() bool {
		n, err := e.store.Outbox().CountByStatus(context.Background(), store.OutboxDone)
		return err == nil && n == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatalf("worker did not stop")
	}
}

func TestArtPrompt(t *testing.T) {
	p := "a tiny wizard hat"
	got := outbox.ArtPrompt("Bumi", &model.CosmeticItem{Name: "Wizard Hat", ElementType: model.ElementHat, ArtPrompt: &p})
	assert.True(t, strings.Contains(got, "corgi named Bumi"))
	assert.Contains(t, got, "Wizard Hat (hat)")
	assert.Contains(t, got, p)
}
