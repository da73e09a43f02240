package store

import (
	"context"
	"time"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

// Store exposes persistence operations required by services.
// The SQL implementation lives in internal/store/sqlstore; drivers are opened
// by internal/store/postgres and internal/store/sqlite.
type Store interface {
	Households() Households
	Users() Users
	Dogs() Dogs
	Stats() Stats
	Activities() Activities
	Goals() Goals
	Streaks() Streaks
	Moods() Moods
	Cosmetics() Cosmetics
	Outbox() Outbox

	// WithTx runs fn against a transaction-scoped Store. The transaction commits
	// when fn returns nil and rolls back otherwise. Inside fn only the passed
	// Store may be used.
	WithTx(ctx context.Context, fn func(tx Store) error) error
}

type Households interface {
	Create(ctx context.Context, h *model.Household) (*model.Household, error)
	Get(ctx context.Context, householdID string) (*model.Household, error)
	GetByInviteCode(ctx context.Context, code string) (*model.Household, error)
	// GetByInviteCodeForUpdate is GetByInviteCode that also holds a row lock
	// until the surrounding transaction ends.
	GetByInviteCodeForUpdate(ctx context.Context, code string) (*model.Household, error)
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID string) (*model.User, error)
	ListByHousehold(ctx context.Context, householdID string) ([]*model.User, error)
	CountByHousehold(ctx context.Context, householdID string) (int, error)
}

type Dogs interface {
	Create(ctx context.Context, d *model.Dog) (*model.Dog, error)
	Get(ctx context.Context, dogID string) (*model.Dog, error)
	GetByHousehold(ctx context.Context, householdID string) (*model.Dog, error)
	// GetByHouseholdForUpdate locks the dog row until the surrounding
	// transaction ends. Writers of dog, stat, goal or streak progress take it
	// first so concurrent members serialise per dog.
	GetByHouseholdForUpdate(ctx context.Context, householdID string) (*model.Dog, error)
	UpdateProgress(ctx context.Context, dogID string, level, xp int) error
}

type Stats interface {
	// Init creates the four stat rows at level 1 with 0 XP.
	Init(ctx context.Context, dogID string) ([]*model.DogStat, error)
	List(ctx context.Context, dogID string) ([]*model.DogStat, error)
	Update(ctx context.Context, s *model.DogStat) error
}

type Activities interface {
	// Create persists the activity and its stat gains.
	Create(ctx context.Context, a *model.Activity) (*model.Activity, error)
	Get(ctx context.Context, dogID, activityID string) (*model.Activity, error)
	List(ctx context.Context, req model.ListActivitiesRequest) ([]*model.Activity, error)
	Delete(ctx context.Context, dogID, activityID string) error
}

type Goals interface {
	Get(ctx context.Context, dogID, day string) (*model.DailyGoal, error)
	Upsert(ctx context.Context, g *model.DailyGoal) error
}

type Streaks interface {
	// Get returns a zero streak when none has been recorded yet.
	Get(ctx context.Context, dogID string) (*model.Streak, error)
	Put(ctx context.Context, s *model.Streak) error
}

type Moods interface {
	Create(ctx context.Context, m *model.MoodLog) (*model.MoodLog, error)
	List(ctx context.Context, req model.ListMoodsRequest) ([]*model.MoodLog, error)
	Latest(ctx context.Context, dogID string) (*model.MoodLog, error)
}

type Cosmetics interface {
	ListItems(ctx context.Context) ([]*model.CosmeticItem, error)
	GetItem(ctx context.Context, itemID string) (*model.CosmeticItem, error)
	// UnlockedBetween lists items with fromLevel < unlock_level <= toLevel.
	UnlockedBetween(ctx context.Context, fromLevel, toLevel int) ([]*model.CosmeticItem, error)
	GetEquipped(ctx context.Context, dogID string) (*model.EquippedItem, error)
	Equip(ctx context.Context, e *model.EquippedItem) error
	Unequip(ctx context.Context, dogID string) error
	// SetEquippedImage stores the generated art only if itemID is still equipped.
	SetEquippedImage(ctx context.Context, dogID, itemID, imageURL string) (bool, error)
}

// OutboxJob is a leased outbox row.
type OutboxJob struct {
	ID           int64
	AggregateID  string
	Op           string
	Payload      []byte
	AttemptCount int
}

type Outbox interface {
	Enqueue(ctx context.Context, aggregateID, op string, payload interface{}) error
	// Lease claims up to limit ready rows by pushing their next attempt past leaseFor.
	Lease(ctx context.Context, limit int, now time.Time, leaseFor time.Duration) ([]OutboxJob, error)
	MarkDone(ctx context.Context, id int64, now time.Time) error
	MarkFailed(ctx context.Context, id int64, now time.Time, cause error) error
	MarkDead(ctx context.Context, id int64, now time.Time, cause error) error
	CountByStatus(ctx context.Context, status string) (int, error)
}

// Outbox row statuses.
const (
	OutboxPending = "pending"
	OutboxDone    = "done"
	OutboxFailed  = "failed"
)

// OutboxRetryDelay is the backoff for a row that had already failed attempt
// times before the current failure: min(2^(attempt+1), 300) seconds.
func OutboxRetryDelay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	secs := 300
	if attempt < 8 {
		if p := 1 << uint(attempt+1); p < secs {
			secs = p
		}
	}
	return time.Duration(secs) * time.Second
}
