package services

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

// HouseholdService creates households and admits members by invite code.
type HouseholdService struct {
	store store.Store
	rules Rules
}

func NewHouseholdService(s store.Store, rules Rules) *HouseholdService {
	return &HouseholdService{store: s, rules: rules}
}

// CreateHouseholdInput is everything needed to start a household.
type CreateHouseholdInput struct {
	HouseholdName string `json:"householdName"`
	MemberName    string `json:"memberName"`
	DogName       string `json:"dogName"`
	TimeZone      string `json:"timeZone,omitempty"`
}

// HouseholdMembership is returned on create and join.
type HouseholdMembership struct {
	Household *model.Household `json:"household"`
	User      *model.User      `json:"user"`
	Dog       *model.Dog       `json:"dog"`
}

const inviteAttempts = 3

// Create makes a household with its first member, its dog and the dog's four stats.
func (s *HouseholdService) Create(ctx context.Context, in CreateHouseholdInput) (*HouseholdMembership, error) {
	in.HouseholdName = strings.TrimSpace(in.HouseholdName)
	in.MemberName = strings.TrimSpace(in.MemberName)
	in.DogName = strings.TrimSpace(in.DogName)
	if in.HouseholdName == "" {
		return nil, model.NewValidationError("householdName", "is required")
	}
	if in.MemberName == "" {
		return nil, model.NewValidationError("memberName", "is required")
	}
	if in.DogName == "" {
		return nil, model.NewValidationError("dogName", "is required")
	}
	if in.TimeZone == "" {
		in.TimeZone = s.rules.DefaultTimeZone
	}
	if in.TimeZone == "" {
		in.TimeZone = "UTC"
	}
	if _, err := time.LoadLocation(in.TimeZone); err != nil {
		return nil, model.NewValidationError("timeZone", "unknown time zone "+in.TimeZone)
	}

	var out *HouseholdMembership
	var err error
	for attempt := 0; attempt < inviteAttempts; attempt++ {
		out, err = s.create(ctx, in, NewInviteCode())
		if err == nil || !model.IsConflictError(err) {
			break
		}
	}
	return out, err
}

func (s *HouseholdService) create(ctx context.Context, in CreateHouseholdInput, code string) (*HouseholdMembership, error) {
	var out HouseholdMembership
	now := s.rules.now()
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		h, err := tx.Households().Create(ctx, &model.Household{Name: in.HouseholdName, InviteCode: code, TimeZone: in.TimeZone, CreationTime: now})
		if err != nil {
			return err
		}
		u, err := tx.Users().Create(ctx, &model.User{HouseholdID: h.HouseholdID, Name: in.MemberName, CreationTime: now})
		if err != nil {
			return err
		}
		d, err := tx.Dogs().Create(ctx, &model.Dog{HouseholdID: h.HouseholdID, Name: in.DogName, Level: 1, CreationTime: now})
		if err != nil {
			return err
		}
		if _, err := tx.Stats().Init(ctx, d.DogID); err != nil {
			return err
		}
		out = HouseholdMembership{Household: h, User: u, Dog: d}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Join adds a member to the household owning inviteCode. Households are capped
// at the configured member count.
func (s *HouseholdService) Join(ctx context.Context, inviteCode, memberName string) (*HouseholdMembership, error) {
	inviteCode = strings.ToUpper(strings.TrimSpace(inviteCode))
	memberName = strings.TrimSpace(memberName)
	if inviteCode == "" {
		return nil, model.NewValidationError("inviteCode", "is required")
	}
	if memberName == "" {
		return nil, model.NewValidationError("name", "is required")
	}
	var out HouseholdMembership
	err := s.store.WithTx(ctx, func(tx store.Store) error {
		h, err := tx.Households().GetByInviteCodeForUpdate(ctx, inviteCode)
		if err != nil {
			return err
		}
		n, err := tx.Users().CountByHousehold(ctx, h.HouseholdID)
		if err != nil {
			return err
		}
		if n >= s.rules.maxMembers() {
			return model.NewConflictError("household", "household is full")
		}
		u, err := tx.Users().Create(ctx, &model.User{HouseholdID: h.HouseholdID, Name: memberName, CreationTime: s.rules.now()})
		if err != nil {
			return err
		}
		d, err := tx.Dogs().GetByHousehold(ctx, h.HouseholdID)
		if err != nil {
			return err
		}
		out = HouseholdMembership{Household: h, User: u, Dog: d}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *HouseholdService) Get(ctx context.Context, householdID string) (*model.Household, error) {
	return s.store.Households().Get(ctx, householdID)
}

func (s *HouseholdService) Members(ctx context.Context, householdID string) ([]*model.User, error) {
	return s.store.Users().ListByHousehold(ctx, householdID)
}

// NewInviteCode returns an 8-character uppercase code.
func NewInviteCode() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return strings.ToUpper(raw[:8])
}
