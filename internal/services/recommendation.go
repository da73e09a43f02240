package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/openai"
	"github.com/thomasnguyen/corgi-quest/internal/prompts"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// Recommender produces training suggestions from a system and user prompt.
type Recommender interface {
	Recommendations(ctx context.Context, system, user string) ([]model.Recommendation, error)
}

// RecommendationService builds weekly training suggestions.
type RecommendationService struct {
	store store.Store
	rules Rules
	ai    Recommender
	log   zerolog.Logger
}

func NewRecommendationService(s store.Store, rules Rules, ai Recommender, log zerolog.Logger) *RecommendationService {
	return &RecommendationService{store: s, rules: rules, ai: ai, log: log}
}

const recommendationWindow = 7 * 24 * time.Hour

type weeklyActivity struct {
	Name     string         `json:"name"`
	Day      string         `json:"day"`
	Minutes  *int           `json:"minutes,omitempty"`
	Gains    map[string]int `json:"gains"`
	Physical int            `json:"physicalPoints"`
	Mental   int            `json:"mentalPoints"`
}

type weeklyStat struct {
	Stat  model.StatType `json:"stat"`
	Level int            `json:"level"`
	XP    int            `json:"xp"`
}

type weeklyMood struct {
	Mood model.Mood `json:"mood"`
	Day  string     `json:"day"`
	Note *string    `json:"note,omitempty"`
}

type weeklyContext struct {
	Dog        string           `json:"dog"`
	Level      int              `json:"level"`
	Stats      []weeklyStat     `json:"stats"`
	Activities []weeklyActivity `json:"activities"`
	Moods      []weeklyMood     `json:"moods"`
}

// Weekly asks the AI for suggestions based on the last 7 days of activities,
// the current stats and recent moods.
func (s *RecommendationService) Weekly(ctx context.Context, householdID string) ([]model.Recommendation, error) {
	h, dog, err := householdDog(ctx, s.store, householdID)
	if err != nil {
		return nil, err
	}
	if s.ai == nil {
		return nil, openai.ErrNotConfigured
	}
	user, err := s.weeklyPrompt(ctx, h, dog)
	if err != nil {
		return nil, err
	}
	recs, err := s.ai.Recommendations(ctx, prompts.RecommendationsSystem, user)
	if err != nil {
		s.log.Warn().Err(err).Str("household_id", householdID).Msg("weekly recommendations failed")
		return nil, err
	}
	return recs, nil
}

func (s *RecommendationService) weeklyPrompt(ctx context.Context, h *model.Household, dog *model.Dog) (string, error) {
	since := s.rules.now().Add(-recommendationWindow)
	acts, err := s.store.Activities().List(ctx, model.ListActivitiesRequest{DogID: dog.DogID, Limit: 200, After: &since})
	if err != nil {
		return "", err
	}
	stats, err := s.store.Stats().List(ctx, dog.DogID)
	if err != nil {
		return "", err
	}
	moods, err := s.store.Moods().List(ctx, model.ListMoodsRequest{DogID: dog.DogID, Limit: 50, After: &since})
	if err != nil {
		return "", err
	}

	wc := weeklyContext{Dog: dog.Name, Level: dog.Level, Activities: []weeklyActivity{}, Moods: []weeklyMood{}}
	for _, st := range stats {
		wc.Stats = append(wc.Stats, weeklyStat{Stat: st.StatType, Level: st.Level, XP: st.XP})
	}
	for _, a := range acts {
		gains := make(map[string]int, len(a.Gains))
		for _, g := range a.Gains {
			gains[string(g.StatType)] = g.XP
		}
		wc.Activities = append(wc.Activities, weeklyActivity{
			Name: a.Name, Day: DayKey(a.CreationTime, h.TimeZone), Minutes: a.DurationMinutes,
			Gains: gains, Physical: a.PhysicalPoints, Mental: a.MentalPoints,
		})
	}
	for _, m := range moods {
		wc.Moods = append(wc.Moods, weeklyMood{Mood: m.Mood, Day: DayKey(m.CreationTime, h.TimeZone), Note: m.Note})
	}
	b, err := json.Marshal(wc)
	if err != nil {
		return "", fmt.Errorf("encode weekly context: %w", err)
	}
	return "Here is the last week for our dog:\n" + string(b), nil
}
