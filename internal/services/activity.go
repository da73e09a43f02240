package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/metrics"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/progression"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// ActivityService logs training activities and applies their XP.
type ActivityService struct {
	store   store.Store
	rules   Rules
	catalog *progression.Catalog
	bus     events.Publisher
	log     zerolog.Logger
}

func NewActivityService(s store.Store, rules Rules, catalog *progression.Catalog, bus events.Publisher, log zerolog.Logger) *ActivityService {
	if catalog == nil {
		catalog = progression.DefaultCatalog()
	}
	if bus == nil {
		bus = events.Discard{}
	}
	return &ActivityService{store: s, rules: rules, catalog: catalog, bus: bus, log: log}
}

// Catalog returns the activity types used by LogCatalogActivity.
func (s *ActivityService) Catalog() *progression.Catalog { return s.catalog }

// LogActivity persists report for the household's dog in one transaction:
// the activity and its gains, per-stat and overall level-ups, today's goal
// points and, on first completion of the day, the streak.
func (s *ActivityService) LogActivity(ctx context.Context, householdID string, userID *string, report *model.ActivityReport, source model.ActivitySource) (*model.ActivityResult, error) {
	if report == nil {
		return nil, model.NewValidationError("activity", "is required")
	}
	report.ActivityName = strings.TrimSpace(report.ActivityName)
	if err := report.Validate(); err != nil {
		return nil, err
	}
	if source == "" {
		source = model.SourceManual
	}
	gains := report.Gains()

	var res model.ActivityResult
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		h, dog, err := lockedHouseholdDog(ctx, tx, householdID)
		if err != nil {
			return err
		}
		if userID != nil {
			u, err := tx.Users().Get(ctx, *userID)
			if err != nil {
				return err
			}
			if u.HouseholdID != householdID {
				return model.NewValidationError("userId", "member does not belong to this household")
			}
		}
		now := s.rules.now()

		stats, err := tx.Stats().List(ctx, dog.DogID)
		if err != nil {
			return err
		}
		for _, st := range stats {
			gain := gains[st.StatType]
			if gain <= 0 {
				continue
			}
			lu := progression.CalculateLevelUp(st.Level, st.XP, gain)
			if lu.LeveledUp {
				res.LevelUps = append(res.LevelUps, model.StatLevelUp{
					StatType: st.StatType, OldLevel: st.Level, NewLevel: lu.NewLevel, LevelsGained: lu.LevelsGained,
				})
			}
			st.Level, st.XP, st.UpdateTime = lu.NewLevel, lu.NewXP, now
			if err := tx.Stats().Update(ctx, st); err != nil {
				return err
			}
		}

		oldLevel := dog.Level
		overall := progression.CalculateLevelUp(dog.Level, dog.XP, report.TotalXP())
		if overall.LeveledUp {
			res.LevelUps = append(res.LevelUps, model.StatLevelUp{
				OldLevel: oldLevel, NewLevel: overall.NewLevel, LevelsGained: overall.LevelsGained,
			})
		}
		if err := tx.Dogs().UpdateProgress(ctx, dog.DogID, overall.NewLevel, overall.NewXP); err != nil {
			return err
		}
		dog.Level, dog.XP = overall.NewLevel, overall.NewXP

		act := &model.Activity{
			DogID:           dog.DogID,
			UserID:          userID,
			Name:            report.ActivityName,
			DurationMinutes: report.DurationMinutes,
			Notes:           report.Notes,
			Source:          source,
			PhysicalPoints:  *report.PhysicalPoints,
			MentalPoints:    *report.MentalPoints,
			CreationTime:    now,
		}
		for _, stat := range model.AllStats {
			if xp := gains[stat]; xp > 0 {
				act.Gains = append(act.Gains, model.ActivityStatGain{StatType: stat, XP: xp})
			}
		}
		if res.Activity, err = tx.Activities().Create(ctx, act); err != nil {
			return err
		}

		day := DayKey(now, h.TimeZone)
		credit, err := s.rules.creditGoal(ctx, tx, dog.DogID, day, act.PhysicalPoints, act.MentalPoints)
		if err != nil {
			return err
		}
		res.Goal, res.GoalCompleted = credit.Goal, credit.Completed
		if credit.Streak != nil {
			res.Streak = credit.Streak
		} else {
			cur, err := tx.Streaks().Get(ctx, dog.DogID)
			if err != nil {
				return err
			}
			res.Streak = effectiveStreak(cur, day)
		}

		if overall.NewLevel > oldLevel {
			if res.NewlyUnlocked, err = tx.Cosmetics().UnlockedBetween(ctx, oldLevel, overall.NewLevel); err != nil {
				return err
			}
		}
		if res.Stats, err = tx.Stats().List(ctx, dog.DogID); err != nil {
			return err
		}
		res.Dog = dog
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ActivitiesLogged.WithLabelValues(string(source)).Inc()
	for _, lu := range res.LevelUps {
		stat := string(lu.StatType)
		if stat == "" {
			stat = "overall"
		}
		metrics.LevelUps.WithLabelValues(stat).Add(float64(lu.LevelsGained))
	}
	s.bus.Publish(events.Event{Kind: events.EventActivityLogged, HouseholdID: householdID, Data: &res})
	s.bus.Publish(events.Event{Kind: events.EventGoalUpdated, HouseholdID: householdID, Data: res.Goal})
	if res.GoalCompleted {
		s.bus.Publish(events.Event{Kind: events.EventStreakUpdated, HouseholdID: householdID, Data: res.Streak})
	}
	s.log.Info().
		Str("household_id", householdID).
		Str("activity_id", res.Activity.ActivityID).
		Str("source", string(source)).
		Int("xp", report.TotalXP()).
		Int("level_ups", len(res.LevelUps)).
		Msg("activity logged")
	return &res, nil
}

// LogCatalogActivity computes the report for a catalog activity type and logs it.
func (s *ActivityService) LogCatalogActivity(ctx context.Context, householdID string, userID *string, activityType string, minutes int) (*model.ActivityResult, error) {
	report, err := s.catalog.Report(activityType, minutes)
	if err != nil {
		return nil, err
	}
	return s.LogActivity(ctx, householdID, userID, report, model.SourceCatalog)
}

// ListRecent returns the newest activities first.
func (s *ActivityService) ListRecent(ctx context.Context, householdID string, limit int) ([]*model.Activity, error) {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	return s.store.Activities().List(ctx, model.ListActivitiesRequest{DogID: dog.DogID, Limit: limit})
}

// ListSince returns the newest activities logged after since.
func (s *ActivityService) ListSince(ctx context.Context, householdID string, since time.Time, limit int) ([]*model.Activity, error) {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	since = since.UTC()
	return s.store.Activities().List(ctx, model.ListActivitiesRequest{DogID: dog.DogID, Limit: limit, After: &since})
}

// Delete removes an activity record. XP, goal points and the streak it
// contributed are kept.
func (s *ActivityService) Delete(ctx context.Context, householdID, activityID string) error {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return err
	}
	if err := s.store.Activities().Delete(ctx, dog.DogID, activityID); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.EventActivityDeleted, HouseholdID: householdID, Data: map[string]string{"activityId": activityID}})
	return nil
}
