package model

import "time"

// StatType identifies one of the four trainable stats.
type StatType string

const (
	StatIntelligence   StatType = "INT"
	StatPhysical       StatType = "PHY"
	StatImpulseControl StatType = "IMP"
	StatSocial         StatType = "SOC"
)

// AllStats lists stats in display order.
var AllStats = []StatType{StatIntelligence, StatPhysical, StatImpulseControl, StatSocial}

// Valid reports whether s is a known stat code.
func (s StatType) Valid() bool {
	switch s {
	case StatIntelligence, StatPhysical, StatImpulseControl, StatSocial:
		return true
	}
	return false
}

// Household groups the members who share one dog.
type Household struct {
	HouseholdID  string    `json:"householdId"`
	Name         string    `json:"name"`
	InviteCode   string    `json:"inviteCode,omitempty"`
	TimeZone     string    `json:"timeZone"`
	CreationTime time.Time `json:"creationTime"`
}

// User is a household member.
type User struct {
	UserID       string    `json:"userId"`
	HouseholdID  string    `json:"householdId"`
	Name         string    `json:"name"`
	CreationTime time.Time `json:"creationTime"`
}

// Dog carries the overall level; per-stat progress lives in DogStat.
type Dog struct {
	DogID        string    `json:"dogId"`
	HouseholdID  string    `json:"householdId"`
	Name         string    `json:"name"`
	Level        int       `json:"level"`
	XP           int       `json:"xp"`
	CreationTime time.Time `json:"creationTime"`
}

type DogStat struct {
	DogID      string    `json:"dogId"`
	StatType   StatType  `json:"statType"`
	Level      int       `json:"level"`
	XP         int       `json:"xp"`
	UpdateTime time.Time `json:"updateTime"`
}

// ActivitySource records how an activity reached the service.
type ActivitySource string

const (
	SourceManual   ActivitySource = "manual"
	SourceCatalog  ActivitySource = "catalog"
	SourceVoice    ActivitySource = "voice"
	SourceRealtime ActivitySource = "realtime"
)

type Activity struct {
	ActivityID      string             `json:"activityId"`
	DogID           string             `json:"dogId"`
	UserID          *string            `json:"userId,omitempty"`
	Name            string             `json:"name"`
	DurationMinutes *int               `json:"durationMinutes,omitempty"`
	Notes           *string            `json:"notes,omitempty"`
	Source          ActivitySource     `json:"source"`
	PhysicalPoints  int                `json:"physicalPoints"`
	MentalPoints    int                `json:"mentalPoints"`
	Gains           []ActivityStatGain `json:"gains"`
	CreationTime    time.Time          `json:"creationTime"`
}

type ActivityStatGain struct {
	ActivityID string   `json:"activityId"`
	StatType   StatType `json:"statType"`
	XP         int      `json:"xp"`
}

// DailyGoal accumulates points for one calendar day (Day is YYYY-MM-DD in the household zone).
type DailyGoal struct {
	DogID          string     `json:"dogId"`
	Day            string     `json:"day"`
	PhysicalPoints int        `json:"physicalPoints"`
	MentalPoints   int        `json:"mentalPoints"`
	PhysicalTarget int        `json:"physicalTarget"`
	MentalTarget   int        `json:"mentalTarget"`
	CompletedTime  *time.Time `json:"completedTime,omitempty"`
}

// Met reports whether both targets are reached.
func (g *DailyGoal) Met() bool {
	return g.PhysicalPoints >= g.PhysicalTarget && g.MentalPoints >= g.MentalTarget
}

type Streak struct {
	DogID            string  `json:"dogId"`
	Current          int     `json:"current"`
	Longest          int     `json:"longest"`
	LastCompletedDay *string `json:"lastCompletedDay,omitempty"`
}

type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodCalm    Mood = "calm"
	MoodExcited Mood = "excited"
	MoodAnxious Mood = "anxious"
	MoodTired   Mood = "tired"
	MoodGrumpy  Mood = "grumpy"
)

func (m Mood) Valid() bool {
	switch m {
	case MoodHappy, MoodCalm, MoodExcited, MoodAnxious, MoodTired, MoodGrumpy:
		return true
	}
	return false
}

type MoodLog struct {
	MoodLogID    string    `json:"moodLogId"`
	DogID        string    `json:"dogId"`
	UserID       *string   `json:"userId,omitempty"`
	Mood         Mood      `json:"mood"`
	Note         *string   `json:"note,omitempty"`
	CreationTime time.Time `json:"creationTime"`
}

type ElementType string

const (
	ElementHat        ElementType = "hat"
	ElementCollar     ElementType = "collar"
	ElementOutfit     ElementType = "outfit"
	ElementAccessory  ElementType = "accessory"
	ElementBackground ElementType = "background"
)

type CosmeticItem struct {
	ItemID      string      `json:"itemId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	ElementType ElementType `json:"elementType"`
	UnlockLevel int         `json:"unlockLevel"`
	ArtPrompt   *string     `json:"artPrompt,omitempty"`
}

// CosmeticView is a catalog entry annotated for a specific dog.
type CosmeticView struct {
	CosmeticItem
	Unlocked bool `json:"unlocked"`
	Equipped bool `json:"equipped"`
}

// EquippedItem is unique per dog.
type EquippedItem struct {
	DogID      string    `json:"dogId"`
	ItemID     string    `json:"itemId"`
	ImageURL   *string   `json:"imageUrl,omitempty"`
	UpdateTime time.Time `json:"updateTime"`
}

// Recommendation is one AI-suggested training idea.
type Recommendation struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Stat            StatType `json:"stat,omitempty"`
	DurationMinutes int      `json:"durationMinutes,omitempty"`
}

// DogProfile is the aggregate read model shown on the home screen.
type DogProfile struct {
	Dog      *Dog          `json:"dog"`
	Stats    []*DogStat    `json:"stats"`
	Today    *DailyGoal    `json:"today"`
	Streak   *Streak       `json:"streak"`
	Equipped *EquippedItem `json:"equipped,omitempty"`
}

// ListActivitiesRequest captures filters used when listing activities.
type ListActivitiesRequest struct {
	DogID string
	Limit int
	After *time.Time
}

// ListMoodsRequest captures filters used when listing mood logs.
type ListMoodsRequest struct {
	DogID string
	Limit int
	After *time.Time
}
