package services

import (
	"context"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// NextStreak applies a completed day to s. Completing yesterday's successor
// extends the run, completing the same day again is a no-op, and any gap
// restarts at 1.
func NextStreak(s model.Streak, day string) model.Streak {
	out := s
	switch {
	case s.LastCompletedDay != nil && *s.LastCompletedDay == day:
		return out
	case s.LastCompletedDay != nil && *s.LastCompletedDay == PreviousDay(day):
		out.Current = s.Current + 1
	default:
		out.Current = 1
	}
	if out.Current > out.Longest {
		out.Longest = out.Current
	}
	d := day
	out.LastCompletedDay = &d
	return out
}

// goalCredit is the outcome of adding points to a day.
type goalCredit struct {
	Goal      *model.DailyGoal
	Completed bool
	Streak    *model.Streak
}

// creditGoal adds points to the dog's goal for day and, the first time both
// targets are met that day, stamps completion and advances the streak.
// It must run inside a transaction.
func (r Rules) creditGoal(ctx context.Context, tx store.Store, dogID, day string, physical, mental int) (*goalCredit, error) {
	g, err := r.loadGoal(ctx, tx, dogID, day)
	if err != nil {
		return nil, err
	}
	if physical > 0 {
		g.PhysicalPoints += physical
	}
	if mental > 0 {
		g.MentalPoints += mental
	}
	return r.settleGoal(ctx, tx, g)
}

// settleGoal persists g and handles first completion.
func (r Rules) settleGoal(ctx context.Context, tx store.Store, g *model.DailyGoal) (*goalCredit, error) {
	out := &goalCredit{Goal: g}
	if g.CompletedTime == nil && g.Met() {
		now := r.now()
		g.CompletedTime = &now
		out.Completed = true
		cur, err := tx.Streaks().Get(ctx, g.DogID)
		if err != nil {
			return nil, err
		}
		next := NextStreak(*cur, g.Day)
		if err := tx.Streaks().Put(ctx, &next); err != nil {
			return nil, err
		}
		out.Streak = &next
	}
	if err := tx.Goals().Upsert(ctx, g); err != nil {
		return nil, err
	}
	return out, nil
}

// loadGoal returns the stored goal for day or a fresh one with default targets.
func (r Rules) loadGoal(ctx context.Context, st store.Store, dogID, day string) (*model.DailyGoal, error) {
	g, err := st.Goals().Get(ctx, dogID, day)
	if err == nil {
		return g, nil
	}
	if !model.IsNotFoundError(err) {
		return nil, err
	}
	physical, mental := r.targets()
	return &model.DailyGoal{DogID: dogID, Day: day, PhysicalTarget: physical, MentalTarget: mental}, nil
}

// GoalService reads and adjusts today's goal.
type GoalService struct {
	store store.Store
	rules Rules
	bus   events.Publisher
}

func NewGoalService(s store.Store, rules Rules, bus events.Publisher) *GoalService {
	if bus == nil {
		bus = events.Discard{}
	}
	return &GoalService{store: s, rules: rules, bus: bus}
}

// Today returns today's goal in the household's zone, creating it on first read.
func (s *GoalService) Today(ctx context.Context, householdID string) (*model.DailyGoal, error) {
	var out *model.DailyGoal
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		h, d, err := lockedHouseholdDog(ctx, tx, householdID)
		if err != nil {
			return err
		}
		day := DayKey(s.rules.now(), h.TimeZone)
		g, err := tx.Goals().Get(ctx, d.DogID, day)
		if err == nil {
			out = g
			return nil
		}
		if !model.IsNotFoundError(err) {
			return err
		}
		g, err = s.rules.loadGoal(ctx, tx, d.DogID, day)
		if err != nil {
			return err
		}
		if err := tx.Goals().Upsert(ctx, g); err != nil {
			return err
		}
		out = g
		return nil
	})
	return out, err
}

// UpdateTargets changes today's targets. Lowering a target can complete the day.
func (s *GoalService) UpdateTargets(ctx context.Context, householdID string, physical, mental int) (*model.DailyGoal, error) {
	if physical <= 0 {
		return nil, model.NewValidationError("physicalTarget", "must be positive")
	}
	if mental <= 0 {
		return nil, model.NewValidationError("mentalTarget", "must be positive")
	}
	var credit *goalCredit
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		h, d, err := lockedHouseholdDog(ctx, tx, householdID)
		if err != nil {
			return err
		}
		g, err := s.rules.loadGoal(ctx, tx, d.DogID, DayKey(s.rules.now(), h.TimeZone))
		if err != nil {
			return err
		}
		g.PhysicalTarget, g.MentalTarget = physical, mental
		credit, err = s.rules.settleGoal(ctx, tx, g)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Kind: events.EventGoalUpdated, HouseholdID: householdID, Data: credit.Goal})
	if credit.Streak != nil {
		s.bus.Publish(events.Event{Kind: events.EventStreakUpdated, HouseholdID: householdID, Data: credit.Streak})
	}
	return credit.Goal, nil
}

// StreakService reports the consecutive-day streak.
type StreakService struct {
	store store.Store
	rules Rules
}

func NewStreakService(s store.Store, rules Rules) *StreakService {
	return &StreakService{store: s, rules: rules}
}

// Get returns the streak as of today. A run whose last completed day is older
// than yesterday is reported with Current 0; the stored row is unchanged until
// the next completion.
func (s *StreakService) Get(ctx context.Context, householdID string) (*model.Streak, error) {
	h, d, err := householdDog(ctx, s.store, householdID)
	if err != nil {
		return nil, err
	}
	st, err := s.store.Streaks().Get(ctx, d.DogID)
	if err != nil {
		return nil, err
	}
	return effectiveStreak(st, DayKey(s.rules.now(), h.TimeZone)), nil
}

func effectiveStreak(st *model.Streak, today string) *model.Streak {
	if st.LastCompletedDay == nil {
		return st
	}
	last := *st.LastCompletedDay
	if last != today && last != PreviousDay(today) {
		cp := *st
		cp.Current = 0
		return &cp
	}
	return st
}
