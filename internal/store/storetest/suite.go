package storetest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// Run exercises a compliance suite against a store.Store implementation.
// Implementations should provide a migrated store and return it from makeStore.
// The suite only uses fresh identifiers, so a shared database is acceptable.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()

	s := makeStore(t)
	ctx := context.Background()

	// Households + users
	code := "QC-" + uuid.New().String()[:8]
	h, err := s.Households().Create(ctx, &model.Household{Name: "The Nguyens", InviteCode: code, TimeZone: "UTC"})
	if err != nil {
		t.Fatalf("CreateHousehold: %v", err)
	}
	if h.HouseholdID == "" {
		t.Fatalf("CreateHousehold: empty id")
	}
	if got, err := s.Households().GetByInviteCode(ctx, code); err != nil || got.HouseholdID != h.HouseholdID {
		t.Fatalf("GetByInviteCode: got=%v err=%v", got, err)
	}
	if _, err := s.Households().Create(ctx, &model.Household{Name: "dup", InviteCode: code, TimeZone: "UTC"}); !model.IsConflictError(err) {
		t.Fatalf("duplicate invite code: want ConflictError, got %v", err)
	}
	if _, err := s.Households().Get(ctx, uuid.New().String()); !model.IsNotFoundError(err) {
		t.Fatalf("GetHousehold missing: want NotFoundError, got %v", err)
	}

	u1, err := s.Users().Create(ctx, &model.User{HouseholdID: h.HouseholdID, Name: "Thomas"})
	if err != nil {
		t.Fatalf("CreateUser: %v", err)
	}
	if _, err := s.Users().Create(ctx, &model.User{HouseholdID: h.HouseholdID, Name: "Partner", CreationTime: u1.CreationTime.Add(time.Second)}); err != nil {
		t.Fatalf("CreateUser 2: %v", err)
	}
	if n, err := s.Users().CountByHousehold(ctx, h.HouseholdID); err != nil || n != 2 {
		t.Fatalf("CountByHousehold: n=%d err=%v", n, err)
	}
	if lst, err := s.Users().ListByHousehold(ctx, h.HouseholdID); err != nil || len(lst) != 2 || lst[0].UserID != u1.UserID {
		t.Fatalf("ListByHousehold: %v err=%v", lst, err)
	}

	// Dogs + stats
	d, err := s.Dogs().Create(ctx, &model.Dog{HouseholdID: h.HouseholdID, Name: "Bumi"})
	if err != nil {
		t.Fatalf("CreateDog: %v", err)
	}
	if d.Level != 1 || d.XP != 0 {
		t.Fatalf("CreateDog defaults: level=%d xp=%d", d.Level, d.XP)
	}
	if _, err := s.Dogs().Create(ctx, &model.Dog{HouseholdID: h.HouseholdID, Name: "Second"}); !model.IsConflictError(err) {
		t.Fatalf("second dog: want ConflictError, got %v", err)
	}
	if _, err := s.Stats().Init(ctx, d.DogID); err != nil {
		t.Fatalf("InitStats: %v", err)
	}
	sts, err := s.Stats().List(ctx, d.DogID)
	if err != nil || len(sts) != 4 {
		t.Fatalf("ListStats: n=%d err=%v", len(sts), err)
	}
	for i, want := range model.AllStats {
		if sts[i].StatType != want || sts[i].Level != 1 || sts[i].XP != 0 {
			t.Fatalf("stat %d: got %+v", i, sts[i])
		}
	}
	sts[1].Level, sts[1].XP = 2, 15
	if err := s.Stats().Update(ctx, sts[1]); err != nil {
		t.Fatalf("UpdateStat: %v", err)
	}
	if err := s.Dogs().UpdateProgress(ctx, d.DogID, 3, 40); err != nil {
		t.Fatalf("UpdateProgress: %v", err)
	}
	if got, err := s.Dogs().GetByHousehold(ctx, h.HouseholdID); err != nil || got.Level != 3 || got.XP != 40 {
		t.Fatalf("GetByHousehold: got=%+v err=%v", got, err)
	}
	if err := s.Dogs().UpdateProgress(ctx, uuid.New().String(), 1, 0); !model.IsNotFoundError(err) {
		t.Fatalf("UpdateProgress missing: want NotFoundError, got %v", err)
	}

	// Activities
	base := time.Now().UTC().Truncate(time.Second)
	mins := 20
	a1, err := s.Activities().Create(ctx, &model.Activity{
		DogID: d.DogID, UserID: &u1.UserID, Name: "Walk", DurationMinutes: &mins, Source: model.SourceCatalog,
		PhysicalPoints: 30, Gains: []model.ActivityStatGain{{StatType: model.StatPhysical, XP: 30}, {StatType: model.StatSocial, XP: 0}},
		CreationTime: base.Add(-time.Hour),
	})
	if err != nil {
		t.Fatalf("CreateActivity: %v", err)
	}
	if len(a1.Gains) != 1 {
		t.Fatalf("CreateActivity gains: %+v", a1.Gains)
	}
	a2, err := s.Activities().Create(ctx, &model.Activity{
		DogID: d.DogID, Name: "Stayed calm", Source: model.SourceRealtime, MentalPoints: 20,
		Gains:        []model.ActivityStatGain{{StatType: model.StatImpulseControl, XP: 15}, {StatType: model.StatSocial, XP: 5}},
		CreationTime: base,
	})
	if err != nil {
		t.Fatalf("CreateActivity 2: %v", err)
	}
	lst, err := s.Activities().List(ctx, model.ListActivitiesRequest{DogID: d.DogID})
	if err != nil || len(lst) != 2 {
		t.Fatalf("ListActivities: n=%d err=%v", len(lst), err)
	}
	if lst[0].ActivityID != a2.ActivityID || len(lst[0].Gains) != 2 || lst[1].UserID == nil || *lst[1].UserID != u1.UserID {
		t.Fatalf("ListActivities order/gains: %+v %+v", lst[0], lst[1])
	}
	after := base.Add(-30 * time.Minute)
	if lst, err := s.Activities().List(ctx, model.ListActivitiesRequest{DogID: d.DogID, After: &after}); err != nil || len(lst) != 1 {
		t.Fatalf("ListActivities after: n=%d err=%v", len(lst), err)
	}
	if got, err := s.Activities().Get(ctx, d.DogID, a1.ActivityID); err != nil || got.DurationMinutes == nil || *got.DurationMinutes != 20 {
		t.Fatalf("GetActivity: got=%+v err=%v", got, err)
	}
	if err := s.Activities().Delete(ctx, d.DogID, a1.ActivityID); err != nil {
		t.Fatalf("DeleteActivity: %v", err)
	}
	if err := s.Activities().Delete(ctx, d.DogID, a1.ActivityID); !model.IsNotFoundError(err) {
		t.Fatalf("DeleteActivity twice: want NotFoundError, got %v", err)
	}

	// Goals + streaks
	if _, err := s.Goals().Get(ctx, d.DogID, "2025-01-02"); !model.IsNotFoundError(err) {
		t.Fatalf("GetGoal missing: want NotFoundError, got %v", err)
	}
	g := &model.DailyGoal{DogID: d.DogID, Day: "2025-01-02", PhysicalPoints: 10, PhysicalTarget: 60, MentalTarget: 40}
	if err := s.Goals().Upsert(ctx, g); err != nil {
		t.Fatalf("UpsertGoal: %v", err)
	}
	done := base
	g.PhysicalPoints, g.MentalPoints, g.CompletedTime = 60, 45, &done
	if err := s.Goals().Upsert(ctx, g); err != nil {
		t.Fatalf("UpsertGoal 2: %v", err)
	}
	if got, err := s.Goals().Get(ctx, d.DogID, "2025-01-02"); err != nil || got.MentalPoints != 45 || got.CompletedTime == nil || !got.Met() {
		t.Fatalf("GetGoal: got=%+v err=%v", got, err)
	}
	if st, err := s.Streaks().Get(ctx, d.DogID); err != nil || st.Current != 0 || st.LastCompletedDay != nil {
		t.Fatalf("GetStreak empty: got=%+v err=%v", st, err)
	}
	day := "2025-01-02"
	if err := s.Streaks().Put(ctx, &model.Streak{DogID: d.DogID, Current: 3, Longest: 5, LastCompletedDay: &day}); err != nil {
		t.Fatalf("PutStreak: %v", err)
	}
	if st, err := s.Streaks().Get(ctx, d.DogID); err != nil || st.Current != 3 || st.Longest != 5 || *st.LastCompletedDay != day {
		t.Fatalf("GetStreak: got=%+v err=%v", st, err)
	}

	// Moods
	if _, err := s.Moods().Latest(ctx, d.DogID); !model.IsNotFoundError(err) {
		t.Fatalf("LatestMood empty: want NotFoundError, got %v", err)
	}
	for i, m := range []model.Mood{model.MoodCalm, model.MoodExcited} {
		if _, err := s.Moods().Create(ctx, &model.MoodLog{DogID: d.DogID, Mood: m, CreationTime: base.Add(time.Duration(i) * time.Minute)}); err != nil {
			t.Fatalf("CreateMood: %v", err)
		}
	}
	if m, err := s.Moods().Latest(ctx, d.DogID); err != nil || m.Mood != model.MoodExcited {
		t.Fatalf("LatestMood: got=%+v err=%v", m, err)
	}
	if ms, err := s.Moods().List(ctx, model.ListMoodsRequest{DogID: d.DogID, Limit: 1}); err != nil || len(ms) != 1 {
		t.Fatalf("ListMoods: n=%d err=%v", len(ms), err)
	}

	// Cosmetics
	items, err := s.Cosmetics().ListItems(ctx)
	if err != nil || len(items) == 0 {
		t.Fatalf("ListItems: n=%d err=%v", len(items), err)
	}
	for i := 1; i < len(items); i++ {
		if items[i].UnlockLevel < items[i-1].UnlockLevel {
			t.Fatalf("ListItems not ordered by unlock level")
		}
	}
	unlocked, err := s.Cosmetics().UnlockedBetween(ctx, 0, 1000)
	if err != nil || len(unlocked) != len(items) {
		t.Fatalf("UnlockedBetween: n=%d err=%v", len(unlocked), err)
	}
	if none, err := s.Cosmetics().UnlockedBetween(ctx, 5, 5); err != nil || len(none) != 0 {
		t.Fatalf("UnlockedBetween empty range: n=%d err=%v", len(none), err)
	}
	item := items[0]
	if err := s.Cosmetics().Equip(ctx, &model.EquippedItem{DogID: d.DogID, ItemID: item.ItemID}); err != nil {
		t.Fatalf("Equip: %v", err)
	}
	if ok, err := s.Cosmetics().SetEquippedImage(ctx, d.DogID, item.ItemID, "https://img.test/a.png"); err != nil || !ok {
		t.Fatalf("SetEquippedImage: ok=%v err=%v", ok, err)
	}
	if ok, err := s.Cosmetics().SetEquippedImage(ctx, d.DogID, "not-equipped", "https://img.test/b.png"); err != nil || ok {
		t.Fatalf("SetEquippedImage stale: ok=%v err=%v", ok, err)
	}
	if eq, err := s.Cosmetics().GetEquipped(ctx, d.DogID); err != nil || eq.ImageURL == nil || *eq.ImageURL != "https://img.test/a.png" {
		t.Fatalf("GetEquipped: got=%+v err=%v", eq, err)
	}
	if err := s.Cosmetics().Unequip(ctx, d.DogID); err != nil {
		t.Fatalf("Unequip: %v", err)
	}
	if err := s.Cosmetics().Unequip(ctx, d.DogID); !model.IsNotFoundError(err) {
		t.Fatalf("Unequip twice: want NotFoundError, got %v", err)
	}

	// Transactions roll back on error.
	sentinel := errors.New("rollback please")
	err = s.WithTx(ctx, func(tx store.Store) error {
		if _, err := tx.Moods().Create(ctx, &model.MoodLog{DogID: d.DogID, Mood: model.MoodGrumpy, CreationTime: base.Add(time.Hour)}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx: want sentinel, got %v", err)
	}
	if m, err := s.Moods().Latest(ctx, d.DogID); err != nil || m.Mood != model.MoodExcited {
		t.Fatalf("WithTx rollback: latest=%+v err=%v", m, err)
	}

	runLockedProgress(t, s, h, d.DogID)
	runOutbox(t, s, d.DogID)
}

// runLockedProgress increments the dog's progress from concurrent
// transactions through the locking reads; no increment may be lost.
func runLockedProgress(t *testing.T, s store.Store, h *model.Household, dogID string) {
	t.Helper()
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx store.Store) error {
		got, err := tx.Households().GetByInviteCodeForUpdate(ctx, h.InviteCode)
		if err != nil {
			return err
		}
		if got.HouseholdID != h.HouseholdID {
			t.Errorf("GetByInviteCodeForUpdate: got %s want %s", got.HouseholdID, h.HouseholdID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("GetByInviteCodeForUpdate: %v", err)
	}
	if _, err := s.Dogs().GetByHouseholdForUpdate(ctx, uuid.New().String()); !model.IsNotFoundError(err) {
		t.Fatalf("GetByHouseholdForUpdate missing: want NotFoundError, got %v", err)
	}

	start, err := s.Dogs().Get(ctx, dogID)
	if err != nil {
		t.Fatalf("GetDog: %v", err)
	}
	const workers, step = 20, 10
	var wg sync.WaitGroup
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.WithTx(ctx, func(tx store.Store) error {
				d, err := tx.Dogs().GetByHouseholdForUpdate(ctx, h.HouseholdID)
				if err != nil {
					return err
				}
				total := d.Level*100 + d.XP + step
				return tx.Dogs().UpdateProgress(ctx, d.DogID, total/100, total%100)
			})
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("locked progress update: %v", err)
		}
	}
	end, err := s.Dogs().Get(ctx, dogID)
	if err != nil {
		t.Fatalf("GetDog: %v", err)
	}
	want := start.Level*100 + start.XP + workers*step
	if got := end.Level*100 + end.XP; got != want {
		t.Fatalf("concurrent progress: got %d want %d (lost updates)", got, want)
	}
}

func runOutbox(t *testing.T, s store.Store, aggregateID string) {
	t.Helper()
	ctx := context.Background()

	if err := s.Outbox().Enqueue(ctx, aggregateID, "test_op", map[string]string{"k": "v"}); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	now := time.Now().Add(time.Second)
	jobs, err := s.Outbox().Lease(ctx, 100, now, time.Minute)
	if err != nil {
		t.Fatalf("Lease: %v", err)
	}
	var job *store.OutboxJob
	for i := range jobs {
		if jobs[i].AggregateID == aggregateID {
			job = &jobs[i]
		}
	}
	if job == nil || string(job.Payload) != `{"k":"v"}` {
		t.Fatalf("Lease: job for %s not found in %+v", aggregateID, jobs)
	}

	// Leased rows are invisible until the lease expires.
	again, err := s.Outbox().Lease(ctx, 100, now, time.Minute)
	if err != nil {
		t.Fatalf("Lease again: %v", err)
	}
	for _, j := range again {
		if j.ID == job.ID {
			t.Fatalf("Lease again: job %d leased twice", job.ID)
		}
	}

	if err := s.Outbox().MarkFailed(ctx, job.ID, now, errors.New("boom")); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}
	// First failure backs off 2s.
	if jobs, err := s.Outbox().Lease(ctx, 100, now.Add(time.Second), time.Minute); err != nil || containsJob(jobs, job.ID) {
		t.Fatalf("Lease during backoff: jobs=%+v err=%v", jobs, err)
	}
	jobs, err = s.Outbox().Lease(ctx, 100, now.Add(3*time.Second), time.Minute)
	if err != nil || !containsJob(jobs, job.ID) {
		t.Fatalf("Lease after backoff: jobs=%+v err=%v", jobs, err)
	}
	for _, j := range jobs {
		if j.ID == job.ID && j.AttemptCount != 1 {
			t.Fatalf("AttemptCount: want 1, got %d", j.AttemptCount)
		}
	}
	if err := s.Outbox().MarkDone(ctx, job.ID, now); err != nil {
		t.Fatalf("MarkDone: %v", err)
	}
	if jobs, err := s.Outbox().Lease(ctx, 100, now.Add(time.Hour), time.Minute); err != nil || containsJob(jobs, job.ID) {
		t.Fatalf("Lease after done: jobs=%+v err=%v", jobs, err)
	}
}

func containsJob(jobs []store.OutboxJob, id int64) bool {
	for _, j := range jobs {
		if j.ID == id {
			return true
		}
	}
	return false
}
