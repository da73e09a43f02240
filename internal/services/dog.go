package services

import (
	"context"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// DogService assembles the dog's profile.
type DogService struct {
	store   store.Store
	goals   *GoalService
	streaks *StreakService
}

func NewDogService(s store.Store, goals *GoalService, streaks *StreakService) *DogService {
	return &DogService{store: s, goals: goals, streaks: streaks}
}

// Get returns the household's dog.
func (s *DogService) Get(ctx context.Context, householdID string) (*model.Dog, error) {
	return s.store.Dogs().GetByHousehold(ctx, householdID)
}

// Profile returns the dog with its stats, today's goal, the streak and the
// equipped cosmetic.
func (s *DogService) Profile(ctx context.Context, householdID string) (*model.DogProfile, error) {
	today, err := s.goals.Today(ctx, householdID)
	if err != nil {
		return nil, err
	}
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.Stats().List(ctx, dog.DogID)
	if err != nil {
		return nil, err
	}
	streak, err := s.streaks.Get(ctx, householdID)
	if err != nil {
		return nil, err
	}
	equipped, err := s.store.Cosmetics().GetEquipped(ctx, dog.DogID)
	if err != nil && !model.IsNotFoundError(err) {
		return nil, err
	}
	return &model.DogProfile{Dog: dog, Stats: stats, Today: today, Streak: streak, Equipped: equipped}, nil
}
