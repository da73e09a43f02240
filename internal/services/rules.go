package services

import (
	"context"
	"time"
	_ "time/tzdata" // household zones must resolve on hosts without zoneinfo

	"github.com/thomasnguyen/corgi-quest/internal/config"
	"github.com/thomasnguyen/corgi-quest/internal/model"
	"github.com/thomasnguyen/corgi-quest/internal/store"
)

const dayLayout = "2006-01-02"

// Rules carries the household-level settings shared by the services.
type Rules struct {
	MaxHouseholdMembers int
	DailyPhysicalTarget int
	DailyMentalTarget   int
	DefaultTimeZone     string
	// Now is the clock; nil means time.Now.
	Now func() time.Time
}

// RulesFromConfig builds Rules from the service configuration.
func RulesFromConfig(cfg *config.Config) Rules {
	return Rules{
		MaxHouseholdMembers: cfg.MaxHouseholdMembers,
		DailyPhysicalTarget: cfg.DailyPhysicalTarget,
		DailyMentalTarget:   cfg.DailyMentalTarget,
		DefaultTimeZone:     cfg.TimeZone,
	}
}

func (r Rules) now() time.Time {
	if r.Now != nil {
		return r.Now().UTC()
	}
	return time.Now().UTC()
}

func (r Rules) maxMembers() int {
	if r.MaxHouseholdMembers <= 0 {
		return 2
	}
	return r.MaxHouseholdMembers
}

func (r Rules) targets() (physical, mental int) {
	physical, mental = r.DailyPhysicalTarget, r.DailyMentalTarget
	if physical <= 0 {
		physical = 60
	}
	if mental <= 0 {
		mental = 40
	}
	return physical, mental
}

// DayKey formats t as YYYY-MM-DD in the named IANA zone, falling back to UTC.
func DayKey(t time.Time, timeZone string) string {
	loc, err := time.LoadLocation(timeZone)
	if err != nil || timeZone == "" {
		loc = time.UTC
	}
	return t.In(loc).Format(dayLayout)
}

// PreviousDay returns the calendar day before day (YYYY-MM-DD).
func PreviousDay(day string) string {
	t, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return t.AddDate(0, 0, -1).Format(dayLayout)
}

// householdDog loads the household and its dog.
func householdDog(ctx context.Context, st store.Store, householdID string) (*model.Household, *model.Dog, error) {
	h, err := st.Households().Get(ctx, householdID)
	if err != nil {
		return nil, nil, err
	}
	d, err := st.Dogs().GetByHousehold(ctx, householdID)
	if err != nil {
		return nil, nil, err
	}
	return h, d, nil
}

// lockedHouseholdDog is householdDog for read-modify-write transactions: the
// dog row stays locked until tx ends so concurrent progress updates serialise.
func lockedHouseholdDog(ctx context.Context, tx store.Store, householdID string) (*model.Household, *model.Dog, error) {
	h, err := tx.Households().Get(ctx, householdID)
	if err != nil {
		return nil, nil, err
	}
	d, err := tx.Dogs().GetByHouseholdForUpdate(ctx, householdID)
	if err != nil {
		return nil, nil, err
	}
	return h, d, nil
}
