package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/progression"
	"github.com/thomasnguyen/corgi-quest/internal/store"
	"github.com/thomasnguyen/corgi-quest/internal/store/sqlite"
)

// clock is a settable time source shared by the services under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type fixture struct {
	store      store.Store
	clock      *clock
	bus        *events.Bus
	households *HouseholdService
	dogs       *DogService
	activities *ActivityService
	goals      *GoalService
	streaks    *StreakService
	moods      *MoodService
	cosmetics  *CosmeticService
	member     *HouseholdMembership
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	st, err := sqlite.New(ctx, sqlite.MemoryPath, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	clk := &clock{t: time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)}
	rules := Rules{MaxHouseholdMembers: 2, DailyPhysicalTarget: 60, DailyMentalTarget: 40, DefaultTimeZone: "UTC", Now: clk.Now}
	bus := events.NewBus(32)

	f := &fixture{store: st, clock: clk, bus: bus}
	f.households = NewHouseholdService(st, rules)
	f.goals = NewGoalService(st, rules, bus)
	f.streaks = NewStreakService(st, rules)
	f.dogs = NewDogService(st, f.goals, f.streaks)
	f.activities = NewActivityService(st, rules, progression.DefaultCatalog(), bus, zerolog.Nop())
	f.moods = NewMoodService(st, rules, bus)
	f.cosmetics = NewCosmeticService(st, rules, bus)

	f.member, err = f.households.Create(ctx, CreateHouseholdInput{HouseholdName: "The Nguyens", MemberName: "Thomas", DogName: "Bumi"})
	require.NoError(t, err)
	return f
}

func (f *fixture) hid() string { return f.member.Household.HouseholdID }

func report(name string, intXP, phyXP, impXP, socXP int) *model.ActivityReport {
	gains := map[model.StatType]int{
		model.StatIntelligence:   intXP,
		model.StatPhysical:       phyXP,
		model.StatImpulseControl: impXP,
		model.StatSocial:         socXP,
	}
	physical, mental := progression.PointsFor(gains)
	return model.NewActivityReport(name, nil, gains, physical, mental)
}

func statByType(stats []*model.DogStat, s model.StatType) *model.DogStat {
	for _, st := range stats {
		if st.StatType == s {
			return st
		}
	}
	return nil
}

func TestHousehold_CreateJoinAndCap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m := f.member
	assert.Len(t, m.Household.InviteCode, 8)
	assert.Equal(t, "UTC", m.Household.TimeZone)
	assert.Equal(t, 1, m.Dog.Level)

	stats, err := f.store.Stats().List(ctx, m.Dog.DogID)
	require.NoError(t, err)
	require.Len(t, stats, 4)
	for _, st := range stats {
		assert.Equal(t, 1, st.Level)
		assert.Equal(t, 0, st.XP)
	}

	joined, err := f.households.Join(ctx, strings.ToLower(m.Household.InviteCode), "Partner")
	require.NoError(t, err)
	assert.Equal(t, m.Household.HouseholdID, joined.Household.HouseholdID)
	assert.Equal(t, m.Dog.DogID, joined.Dog.DogID)

	_, err = f.households.Join(ctx, m.Household.InviteCode, "Third")
	assert.True(t, model.IsConflictError(err), "want ConflictError, got %v", err)

	_, err = f.households.Join(ctx, "NOPE1234", "Someone")
	assert.True(t, model.IsNotFoundError(err), "want NotFoundError, got %v", err)

	members, err := f.households.Members(ctx, f.hid())
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestHousehold_CreateValidates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.households.Create(ctx, CreateHouseholdInput{HouseholdName: " ", MemberName: "A", DogName: "B"})
	assert.True(t, model.IsValidationError(err))
	_, err = f.households.Create(ctx, CreateHouseholdInput{HouseholdName: "H", MemberName: "A", DogName: "B", TimeZone: "Mars/Olympus"})
	assert.True(t, model.IsValidationError(err))
}

func TestLogActivity_LevelUpsGoalStreakAndUnlocks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := f.bus.Subscribe(f.hid())
	defer sub.Close()

	res, err := f.activities.LogActivity(ctx, f.hid(), &f.member.User.UserID, report("Trick practice", 120, 70, 0, 0), model.SourceManual)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Dog.Level)
	assert.Equal(t, 90, res.Dog.XP)
	intStat := statByType(res.Stats, model.StatIntelligence)
	require.NotNil(t, intStat)
	assert.Equal(t, 2, intStat.Level)
	assert.Equal(t, 20, intStat.XP)
	phy := statByType(res.Stats, model.StatPhysical)
	assert.Equal(t, 1, phy.Level)
	assert.Equal(t, 70, phy.XP)

	require.Len(t, res.LevelUps, 2)
	assert.Equal(t, model.StatIntelligence, res.LevelUps[0].StatType)
	assert.Equal(t, model.StatType(""), res.LevelUps[1].StatType)
	assert.Equal(t, 2, res.LevelUps[1].NewLevel)

	assert.True(t, res.GoalCompleted)
	assert.Equal(t, 70, res.Goal.PhysicalPoints)
	assert.Equal(t, 120, res.Goal.MentalPoints)
	assert.NotNil(t, res.Goal.CompletedTime)
	assert.Equal(t, 1, res.Streak.Current)
	assert.Equal(t, 1, res.Streak.Longest)

	require.Len(t, res.NewlyUnlocked, 1)
	assert.Equal(t, "bandana-blue", res.NewlyUnlocked[0].ItemID)
	assert.Len(t, res.Activity.Gains, 2)
	assert.Contains(t, res.Summary(), "INT is now level 2")

	select {
	case evt := <-sub.C():
		assert.Equal(t, events.EventActivityLogged, evt.Kind)
	case <-time.After(time.Second):
		t.Fatalf("no live event published")
	}

	// Same day: goal stays complete, streak unchanged.
	res, err = f.activities.LogActivity(ctx, f.hid(), nil, report("Run", 0, 40, 0, 0), model.SourceManual)
	require.NoError(t, err)
	assert.False(t, res.GoalCompleted)
	assert.Equal(t, 110, res.Goal.PhysicalPoints)
	assert.Equal(t, 1, res.Streak.Current)
	assert.Equal(t, 3, res.Dog.Level)
	assert.Equal(t, 30, res.Dog.XP)
	require.Len(t, res.NewlyUnlocked, 1)
	assert.Equal(t, "hat-party", res.NewlyUnlocked[0].ItemID)
}

func TestLogActivity_ConcurrentMembersKeepEveryGain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.activities.LogActivity(ctx, f.hid(), nil, report("Sprint", 0, 10, 0, 0), model.SourceManual)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	profile, err := f.dogs.Profile(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, 3, profile.Dog.Level)
	assert.Equal(t, 0, profile.Dog.XP)
	phy := statByType(profile.Stats, model.StatPhysical)
	require.NotNil(t, phy)
	assert.Equal(t, 3, phy.Level)
	assert.Equal(t, 0, phy.XP)
}

func TestLogActivity_RejectsInvalidReport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	bad := report("Walk", 0, -5, 0, 0)
	_, err := f.activities.LogActivity(ctx, f.hid(), nil, bad, model.SourceManual)
	assert.True(t, model.IsValidationError(err))

	_, err = f.activities.LogActivity(ctx, f.hid(), nil, &model.ActivityReport{ActivityName: "Walk"}, model.SourceManual)
	assert.True(t, model.IsValidationError(err))

	_, err = f.activities.LogActivity(ctx, f.hid(), nil, report("Walk", 0, math.MaxInt, 0, 0), model.SourceRealtime)
	assert.True(t, model.IsValidationError(err))

	_, err = f.activities.LogActivity(ctx, "missing-household", nil, report("Walk", 0, 10, 0, 0), model.SourceManual)
	assert.True(t, model.IsNotFoundError(err))

	acts, err := f.activities.ListRecent(ctx, f.hid(), 10)
	require.NoError(t, err)
	assert.Empty(t, acts)
	dog, err := f.dogs.Get(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, 1, dog.Level)
	assert.Equal(t, 0, dog.XP)
}

func TestLogCatalogActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.activities.LogCatalogActivity(ctx, f.hid(), nil, "walking", 20)
	require.NoError(t, err)
	assert.Equal(t, "Walk", res.Activity.Name)
	assert.Equal(t, model.SourceCatalog, res.Activity.Source)
	require.Len(t, res.Activity.Gains, 1)
	assert.Equal(t, model.StatPhysical, res.Activity.Gains[0].StatType)
	assert.Equal(t, 30, res.Activity.Gains[0].XP)
	assert.Equal(t, 30, res.Goal.PhysicalPoints)
	assert.False(t, res.GoalCompleted)

	_, err = f.activities.LogCatalogActivity(ctx, f.hid(), nil, "skydiving", 20)
	assert.True(t, model.IsValidationError(err))
	_, err = f.activities.LogCatalogActivity(ctx, f.hid(), nil, "walk", 0)
	assert.True(t, model.IsValidationError(err))
}

func TestDeleteActivity_KeepsProgress(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.activities.LogActivity(ctx, f.hid(), nil, report("Fetch", 0, 50, 0, 0), model.SourceManual)
	require.NoError(t, err)
	require.NoError(t, f.activities.Delete(ctx, f.hid(), res.Activity.ActivityID))

	acts, err := f.activities.ListRecent(ctx, f.hid(), 10)
	require.NoError(t, err)
	assert.Empty(t, acts)

	err = f.activities.Delete(ctx, f.hid(), res.Activity.ActivityID)
	assert.True(t, model.IsNotFoundError(err))

	dog, err := f.dogs.Get(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, 50, dog.XP)
}

func TestStreak_AcrossDays(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	complete := func() *model.ActivityResult {
		t.Helper()
		res, err := f.activities.LogActivity(ctx, f.hid(), nil, report("Park", 20, 60, 0, 20), model.SourceManual)
		require.NoError(t, err)
		require.True(t, res.GoalCompleted)
		return res
	}

	assert.Equal(t, 1, complete().Streak.Current)
	f.clock.Advance(24 * time.Hour)
	res := complete()
	assert.Equal(t, 2, res.Streak.Current)
	assert.Equal(t, 2, res.Streak.Longest)

	f.clock.Advance(48 * time.Hour)
	got, err := f.streaks.Get(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, 0, got.Current)
	assert.Equal(t, 2, got.Longest)

	res = complete()
	assert.Equal(t, 1, res.Streak.Current)
	assert.Equal(t, 2, res.Streak.Longest)
}

func TestNextStreak(t *testing.T) {
	day := func(s string) *string { return &s }
	cases := []struct {
		name string
		in   model.Streak
		day  string
		cur  int
		long int
	}{
		{"first ever", model.Streak{}, "2026-03-10", 1, 1},
		{"yesterday extends", model.Streak{Current: 3, Longest: 3, LastCompletedDay: day("2026-03-09")}, "2026-03-10", 4, 4},
		{"same day no-op", model.Streak{Current: 3, Longest: 5, LastCompletedDay: day("2026-03-10")}, "2026-03-10", 3, 5},
		{"gap resets", model.Streak{Current: 4, Longest: 4, LastCompletedDay: day("2026-03-07")}, "2026-03-10", 1, 4},
		{"month boundary", model.Streak{Current: 1, Longest: 1, LastCompletedDay: day("2026-02-28")}, "2026-03-01", 2, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NextStreak(tc.in, tc.day)
			assert.Equal(t, tc.cur, got.Current)
			assert.Equal(t, tc.long, got.Longest)
			require.NotNil(t, got.LastCompletedDay)
			assert.Equal(t, tc.day, *got.LastCompletedDay)
		})
	}
}

func TestGoals_TodayAndUpdateTargets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	g, err := f.goals.Today(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, "2026-03-10", g.Day)
	assert.Equal(t, 60, g.PhysicalTarget)
	assert.Equal(t, 40, g.MentalTarget)
	assert.Nil(t, g.CompletedTime)

	_, err = f.goals.UpdateTargets(ctx, f.hid(), 0, 10)
	assert.True(t, model.IsValidationError(err))

	_, err = f.activities.LogActivity(ctx, f.hid(), nil, report("Sniff walk", 10, 30, 10, 0), model.SourceManual)
	require.NoError(t, err)

	g, err = f.goals.UpdateTargets(ctx, f.hid(), 30, 20)
	require.NoError(t, err)
	assert.NotNil(t, g.CompletedTime)

	st, err := f.streaks.Get(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, 1, st.Current)
}

func TestGoals_DayFollowsHouseholdZone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.households.Create(ctx, CreateHouseholdInput{HouseholdName: "West", MemberName: "A", DogName: "Mochi", TimeZone: "America/Los_Angeles"})
	require.NoError(t, err)
	f.clock.Advance(-10 * time.Hour) // 05:00 UTC is still the previous day in Los Angeles
	g, err := f.goals.Today(ctx, m.Household.HouseholdID)
	require.NoError(t, err)
	assert.Equal(t, "2026-03-09", g.Day)
}

func TestDogProfile(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.dogs.Profile(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, "Bumi", p.Dog.Name)
	assert.Len(t, p.Stats, 4)
	assert.Equal(t, 0, p.Today.PhysicalPoints)
	assert.Equal(t, 0, p.Streak.Current)
	assert.Nil(t, p.Equipped)

	_, err = f.cosmetics.Equip(ctx, f.hid(), "collar-red")
	require.NoError(t, err)
	p, err = f.dogs.Profile(ctx, f.hid())
	require.NoError(t, err)
	require.NotNil(t, p.Equipped)
	assert.Equal(t, "collar-red", p.Equipped.ItemID)
}

func TestMoods(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.moods.Log(ctx, f.hid(), nil, "sleepy", nil)
	assert.True(t, model.IsValidationError(err))

	_, err = f.moods.Latest(ctx, f.hid())
	assert.True(t, model.IsNotFoundError(err))

	blank := "  "
	m, err := f.moods.Log(ctx, f.hid(), &f.member.User.UserID, " Happy ", &blank)
	require.NoError(t, err)
	assert.Equal(t, model.MoodHappy, m.Mood)
	assert.Nil(t, m.Note)

	f.clock.Advance(time.Minute)
	note := "barked at the mail"
	_, err = f.moods.Log(ctx, f.hid(), nil, model.MoodAnxious, &note)
	require.NoError(t, err)

	latest, err := f.moods.Latest(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, model.MoodAnxious, latest.Mood)

	list, err := f.moods.List(ctx, f.hid(), 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestCosmetics_EquipRequiresLevelAndQueuesArt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	views, err := f.cosmetics.List(ctx, f.hid())
	require.NoError(t, err)
	require.NotEmpty(t, views)
	for _, v := range views {
		assert.Equal(t, v.UnlockLevel <= 1, v.Unlocked, v.ItemID)
		assert.False(t, v.Equipped)
	}

	_, err = f.cosmetics.Equip(ctx, f.hid(), "bandana-blue")
	assert.True(t, model.IsValidationError(err))
	_, err = f.cosmetics.Equip(ctx, f.hid(), "no-such-item")
	assert.True(t, model.IsNotFoundError(err))

	_, err = f.cosmetics.Equip(ctx, f.hid(), "collar-red")
	require.NoError(t, err)
	n, err := f.store.Outbox().CountByStatus(ctx, store.OutboxPending)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "item without art prompt must not queue art")

	_, err = f.activities.LogActivity(ctx, f.hid(), nil, report("Big day", 0, 100, 0, 0), model.SourceManual)
	require.NoError(t, err)

	eq, err := f.cosmetics.Equip(ctx, f.hid(), "bandana-blue")
	require.NoError(t, err)
	assert.Nil(t, eq.ImageURL)
	n, err = f.store.Outbox().CountByStatus(ctx, store.OutboxPending)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	views, err = f.cosmetics.List(ctx, f.hid())
	require.NoError(t, err)
	for _, v := range views {
		assert.Equal(t, v.ItemID == "bandana-blue", v.Equipped, v.ItemID)
	}

	require.NoError(t, f.cosmetics.Unequip(ctx, f.hid()))
	assert.True(t, model.IsNotFoundError(f.cosmetics.Unequip(ctx, f.hid())))
}

type fakeChat struct {
	content string
	err     error
	gotUser string
}

func (f *fakeChat) ChatJSON(_ context.Context, _, _, user string) (string, error) {
	f.gotUser = user
	return f.content, f.err
}

type fakeMinter struct{ model, voice string }

func (f *fakeMinter) CreateRealtimeSession(_ context.Context, model, voice string) (*openai.RealtimeSession, error) {
	f.model, f.voice = model, voice
	return &openai.RealtimeSession{ClientSecret: "ek_test", Model: model, Voice: voice}, nil
}

func TestVoice_ParseActivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	chat := &fakeChat{content: `{"activity_name":"Walk","int_xp":0,"phy_xp":30,"imp_xp":5,"soc_xp":0,"physical_points":30,"mental_points":5,"duration_minutes":20}`}
	svc := NewVoiceService(f.activities, chat, &fakeMinter{}, VoiceConfig{}, zerolog.Nop())

	out, err := svc.ParseActivity(ctx, f.hid(), nil, "Hey Bumi, we walked for 20 minutes")
	require.NoError(t, err)
	assert.True(t, out.WakeWord.Detected)
	assert.Equal(t, "we walked for 20 minutes", chat.gotUser)
	assert.Equal(t, model.SourceVoice, out.Result.Activity.Source)
	assert.Equal(t, 30, out.Result.Goal.PhysicalPoints)
	assert.NotEmpty(t, out.Message)

	_, err = svc.ParseActivity(ctx, f.hid(), nil, "we played fetch")
	require.NoError(t, err)
	assert.Equal(t, "we played fetch", chat.gotUser)

	_, err = svc.ParseActivity(ctx, f.hid(), nil, "hey bumi!")
	assert.True(t, model.IsValidationError(err))

	chat.content = `{"activity_name":"Walk"}`
	_, err = svc.ParseActivity(ctx, f.hid(), nil, "walked")
	assert.True(t, model.IsValidationError(err))

	chat.content = "not json"
	_, err = svc.ParseActivity(ctx, f.hid(), nil, "walked")
	assert.True(t, errors.Is(err, openai.ErrBadResponse))
	assert.Equal(t, "The assistant returned an unexpected response.", openai.UserMessage(err))

	chat.content, chat.err = "", &openai.Error{Kind: openai.ErrRateLimited, Op: "parse_activity", Message: "busy"}
	_, err = svc.ParseActivity(ctx, f.hid(), nil, "walked")
	assert.True(t, errors.Is(err, openai.ErrRateLimited))
}

func TestVoice_MintRealtimeToken(t *testing.T) {
	f := newFixture(t)
	minter := &fakeMinter{}
	svc := NewVoiceService(f.activities, nil, minter, VoiceConfig{RealtimeModel: "gpt-realtime", RealtimeVoice: "alloy"}, zerolog.Nop())

	sess, err := svc.MintRealtimeToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ek_test", sess.ClientSecret)
	assert.Equal(t, "gpt-realtime", minter.model)
	assert.Equal(t, "alloy", minter.voice)

	_, err = NewVoiceService(f.activities, nil, nil, VoiceConfig{}, zerolog.Nop()).MintRealtimeToken(context.Background())
	assert.ErrorIs(t, err, openai.ErrNotConfigured)
}

type fakeRecommender struct {
	user string
	recs []model.Recommendation
}

func (f *fakeRecommender) Recommendations(_ context.Context, _, user string) ([]model.Recommendation, error) {
	f.user = user
	return f.recs, nil
}

func TestRecommendations_Weekly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	ai := &fakeRecommender{recs: []model.Recommendation{{Title: "Leave it drills", Stat: model.StatImpulseControl}}}
	svc := NewRecommendationService(f.store, Rules{Now: f.clock.Now}, ai, zerolog.Nop())

	_, err := f.activities.LogActivity(ctx, f.hid(), nil, report("Old hike", 0, 10, 0, 0), model.SourceManual)
	require.NoError(t, err)
	f.clock.Advance(8 * 24 * time.Hour)
	_, err = f.activities.LogActivity(ctx, f.hid(), nil, report("Puzzle Toy", 25, 0, 0, 0), model.SourceManual)
	require.NoError(t, err)
	_, err = f.moods.Log(ctx, f.hid(), nil, model.MoodTired, nil)
	require.NoError(t, err)

	recs, err := svc.Weekly(ctx, f.hid())
	require.NoError(t, err)
	assert.Equal(t, ai.recs, recs)
	assert.Contains(t, ai.user, "Puzzle Toy")
	assert.NotContains(t, ai.user, "Old hike")
	assert.Contains(t, ai.user, `"tired"`)
	assert.Contains(t, ai.user, "Bumi")
}
