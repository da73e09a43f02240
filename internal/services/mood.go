package services

import (
	"context"
	"strings"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// MoodService records how the dog is feeling.
type MoodService struct {
	store store.Store
	rules Rules
	bus   events.Publisher
}

func NewMoodService(s store.Store, rules Rules, bus events.Publisher) *MoodService {
	if bus == nil {
		bus = events.Discard{}
	}
	return &MoodService{store: s, rules: rules, bus: bus}
}

// Log stores a mood for the household's dog. An empty note is dropped.
func (s *MoodService) Log(ctx context.Context, householdID string, userID *string, mood model.Mood, note *string) (*model.MoodLog, error) {
	mood = model.Mood(strings.ToLower(strings.TrimSpace(string(mood))))
	if !mood.Valid() {
		return nil, model.NewValidationError("mood", "unknown mood "+string(mood))
	}
	if note != nil {
		trimmed := strings.TrimSpace(*note)
		if trimmed == "" {
			note = nil
		} else {
			note = &trimmed
		}
	}
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	m, err := s.store.Moods().Create(ctx, &model.MoodLog{
		DogID:        dog.DogID,
		UserID:       userID,
		Mood:         mood,
		Note:         note,
		CreationTime: s.rules.now(),
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Kind: events.EventMoodLogged, HouseholdID: householdID, Data: m})
	return m, nil
}

// List returns the newest mood logs first.
func (s *MoodService) List(ctx context.Context, householdID string, limit int) ([]*model.MoodLog, error) {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	return s.store.Moods().List(ctx, model.ListMoodsRequest{DogID: dog.DogID, Limit: limit})
}

// Latest returns the most recent mood, or a NotFoundError when none exists.
func (s *MoodService) Latest(ctx context.Context, householdID string) (*model.MoodLog, error) {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	return s.store.Moods().Latest(ctx, dog.DogID)
}
