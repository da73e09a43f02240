package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxReportValue bounds every XP and point field of a single report.
const MaxReportValue = 10000

// ActivityReport is the structured description of one training activity. It is
// produced by the realtime log_activity tool call, by batch text parsing, or
// sent directly by a client. Pointer fields distinguish "missing" from zero.
type ActivityReport struct {
	ActivityName    string  `json:"activity_name"`
	DurationMinutes *int    `json:"duration_minutes,omitempty"`
	Notes           *string `json:"notes,omitempty"`
	IntXP           *int    `json:"int_xp"`
	PhyXP           *int    `json:"phy_xp"`
	ImpXP           *int    `json:"imp_xp"`
	SocXP           *int    `json:"soc_xp"`
	PhysicalPoints  *int    `json:"physical_points"`
	MentalPoints    *int    `json:"mental_points"`
}

// ParseActivityReport decodes and validates a JSON argument string.
func ParseActivityReport(raw string) (*ActivityReport, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, NewValidationError("arguments", "empty activity payload")
	}
	var r ActivityReport
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return nil, fmt.Errorf("malformed activity JSON: %w", err)
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Validate checks that every required field is present and within
// [0, MaxReportValue].
func (r *ActivityReport) Validate() error {
	if strings.TrimSpace(r.ActivityName) == "" {
		return NewValidationError("activity_name", "activity name is required")
	}
	var missing []string
	required := []struct {
		name string
		v    *int
	}{
		{"int_xp", r.IntXP},
		{"phy_xp", r.PhyXP},
		{"imp_xp", r.ImpXP},
		{"soc_xp", r.SocXP},
		{"physical_points", r.PhysicalPoints},
		{"mental_points", r.MentalPoints},
	}
	for _, f := range required {
		if f.v == nil {
			missing = append(missing, f.name)
			continue
		}
		if *f.v < 0 {
			return NewValidationError(f.name, "must not be negative")
		}
		if *f.v > MaxReportValue {
			return NewValidationError(f.name, fmt.Sprintf("must not exceed %d", MaxReportValue))
		}
	}
	if len(missing) > 0 {
		return NewValidationError(strings.Join(missing, ","), "missing required fields: "+strings.Join(missing, ", "))
	}
	if r.DurationMinutes != nil && *r.DurationMinutes < 0 {
		return NewValidationError("duration_minutes", "must not be negative")
	}
	return nil
}

// Gains returns the non-zero stat gains in display order. Call after Validate.
func (r *ActivityReport) Gains() map[StatType]int {
	out := make(map[StatType]int, 4)
	add := func(s StatType, v *int) {
		if v != nil && *v > 0 {
			out[s] = *v
		}
	}
	add(StatIntelligence, r.IntXP)
	add(StatPhysical, r.PhyXP)
	add(StatImpulseControl, r.ImpXP)
	add(StatSocial, r.SocXP)
	return out
}

// TotalXP is the sum of all stat gains.
func (r *ActivityReport) TotalXP() int {
	total := 0
	for _, v := range r.Gains() {
		total += v
	}
	return total
}

// NewActivityReport builds a report from computed gains and points.
func NewActivityReport(name string, minutes *int, gains map[StatType]int, physical, mental int) *ActivityReport {
	v := func(s StatType) *int {
		n := gains[s]
		return &n
	}
	return &ActivityReport{
		ActivityName:    name,
		DurationMinutes: minutes,
		IntXP:           v(StatIntelligence),
		PhyXP:           v(StatPhysical),
		ImpXP:           v(StatImpulseControl),
		SocXP:           v(StatSocial),
		PhysicalPoints:  &physical,
		MentalPoints:    &mental,
	}
}

// StatLevelUp describes a stat (or the dog's overall level when StatType is empty) that levelled up.
type StatLevelUp struct {
	StatType     StatType `json:"statType,omitempty"`
	OldLevel     int      `json:"oldLevel"`
	NewLevel     int      `json:"newLevel"`
	LevelsGained int      `json:"levelsGained"`
}

// ActivityResult is returned after an activity is persisted.
type ActivityResult struct {
	Activity      *Activity       `json:"activity"`
	Dog           *Dog            `json:"dog"`
	Stats         []*DogStat      `json:"stats"`
	LevelUps      []StatLevelUp   `json:"levelUps,omitempty"`
	Goal          *DailyGoal      `json:"goal"`
	GoalCompleted bool            `json:"goalCompleted"`
	Streak        *Streak         `json:"streak"`
	NewlyUnlocked []*CosmeticItem `json:"newlyUnlocked,omitempty"`
}

// Summary is a short human sentence suitable for speaking back to the user.
func (r *ActivityResult) Summary() string {
	if r == nil || r.Activity == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Logged %s", r.Activity.Name)
	total := 0
	for _, g := range r.Activity.Gains {
		total += g.XP
	}
	fmt.Fprintf(&b, " for %d XP", total)
	for _, lu := range r.LevelUps {
		if lu.StatType == "" {
			fmt.Fprintf(&b, "; %s reached level %d", r.Dog.Name, lu.NewLevel)
		} else {
			fmt.Fprintf(&b, "; %s is now level %d", lu.StatType, lu.NewLevel)
		}
	}
	if r.GoalCompleted {
		b.WriteString("; today's goal is complete")
	}
	b.WriteString(".")
	return b.String()
}
