package progression

import (
	"math"

	"github.com/thomasnguyen/corgi-quest/internal/model"
)

// LevelThreshold is the XP needed for one level, for every stat and for the dog.
const LevelThreshold = 100

// LevelUpResult is the outcome of applying an XP gain to a level/XP pair.
type LevelUpResult struct {
	NewLevel     int
	NewXP        int
	LevelsGained int
	LeveledUp    bool
}

// CalculateLevelUp applies gain to (level, xp) with overflow into further levels.
// Negative xp or gain is treated as zero so the remainder stays in [0, LevelThreshold).
// Sums that would overflow int saturate at math.MaxInt.
func CalculateLevelUp(level, xp, gain int) LevelUpResult {
	if xp < 0 {
		xp = 0
	}
	if gain < 0 {
		gain = 0
	}
	total := math.MaxInt
	if gain <= math.MaxInt-xp {
		total = xp + gain
	}
	gained := total / LevelThreshold
	newLevel := math.MaxInt
	if level <= 0 || gained <= math.MaxInt-level {
		newLevel = level + gained
	}
	return LevelUpResult{
		NewLevel:     newLevel,
		NewXP:        total % LevelThreshold,
		LevelsGained: gained,
		LeveledUp:    gained > 0,
	}
}

// PointsFor maps stat gains onto the daily goal: physical points are the PHY
// gain, mental points are INT + IMP + SOC.
func PointsFor(gains map[model.StatType]int) (physical, mental int) {
	for stat, xp := range gains {
		if xp <= 0 {
			continue
		}
		if stat == model.StatPhysical {
			physical += xp
		} else {
			mental += xp
		}
	}
	return physical, mental
}

// ProgressPercent returns points as a percentage of target, clamped to [0, 100].
func ProgressPercent(points, target int) int {
	if target <= 0 {
		if points > 0 {
			return 100
		}
		return 0
	}
	pct := points * 100 / target
	switch {
	case pct < 0:
		return 0
	case pct > 100:
		return 100
	}
	return pct
}
