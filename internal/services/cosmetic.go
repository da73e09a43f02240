package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/thomasnguyen/corgi-quest/internal/events"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/outbox"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// CosmeticService manages unlockable items and the equipped slot.
type CosmeticService struct {
	store store.Store
	rules Rules
	bus   events.Publisher
}

func NewCosmeticService(s store.Store, rules Rules, bus events.Publisher) *CosmeticService {
	if bus == nil {
		bus = events.Discard{}
	}
	return &CosmeticService{store: s, rules: rules, bus: bus}
}

// List returns the catalog annotated with the dog's unlock and equip state.
func (s *CosmeticService) List(ctx context.Context, householdID string) ([]model.CosmeticView, error) {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, err
	}
	items, err := s.store.Cosmetics().ListItems(ctx)
	if err != nil {
		return nil, err
	}
	equippedID := ""
	eq, err := s.store.Cosmetics().GetEquipped(ctx, dog.DogID)
	switch {
	case err == nil:
		equippedID = eq.ItemID
	case !model.IsNotFoundError(err):
		return nil, err
	}
	out := make([]model.CosmeticView, 0, len(items))
	for _, it := range items {
		out = append(out, model.CosmeticView{
			CosmeticItem: *it,
			Unlocked:     dog.Level >= it.UnlockLevel,
			Equipped:     it.ItemID == equippedID,
		})
	}
	return out, nil
}

// Equip puts itemID in the dog's single slot. Items with an art prompt queue
// an art generation job in the same transaction.
func (s *CosmeticService) Equip(ctx context.Context, householdID, itemID string) (*model.EquippedItem, error) {
	itemID = strings.TrimSpace(itemID)
	if itemID == "" {
		return nil, model.NewValidationError("itemId", "is required")
	}
	var out *model.EquippedItem
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		dog, err := tx.Dogs().GetByHousehold(ctx, householdID)
		if err != nil {
			return err
		}
		item, err := tx.Cosmetics().GetItem(ctx, itemID)
		if err != nil {
			return err
		}
		if dog.Level < item.UnlockLevel {
			return model.NewValidationError("itemId", fmt.Sprintf("unlocks at level %d", item.UnlockLevel))
		}
		e := &model.EquippedItem{DogID: dog.DogID, ItemID: item.ItemID, UpdateTime: s.rules.now()}
		if err := tx.Cosmetics().Equip(ctx, e); err != nil {
			return err
		}
		if item.ArtPrompt != nil && *item.ArtPrompt != "" {
			job := outbox.ArtJob{HouseholdID: householdID, DogID: dog.DogID, ItemID: item.ItemID}
			if err := tx.Outbox().Enqueue(ctx, dog.DogID, outbox.OpGenerateEquippedArt, job); err != nil {
				return err
			}
		}
		out = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bus.Publish(events.Event{Kind: events.EventCosmeticEquipped, HouseholdID: householdID, Data: out})
	return out, nil
}

// Unequip clears the slot. It returns a NotFoundError when nothing is equipped.
func (s *CosmeticService) Unequip(ctx context.Context, householdID string) error {
	dog, err := s.store.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return err
	}
	if err := s.store.Cosmetics().Unequip(ctx, dog.DogID); err != nil {
		return err
	}
	s.bus.Publish(events.Event{Kind: events.EventCosmeticEquipped, HouseholdID: householdID, Data: map[string]interface{}{"dogId": dog.DogID, "itemId": nil}})
	return nil
}
