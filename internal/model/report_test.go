package model

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseActivityReport_Valid(t *testing.T) {
	r, err := ParseActivityReport(`{"activity_name":"Stayed calm when bike passed","int_xp":0,"phy_xp":0,"imp_xp":15,"soc_xp":5,"physical_points":0,"mental_points":20}`)
	require.NoError(t, err)
	assert.Equal(t, "Stayed calm when bike passed", r.ActivityName)
	assert.Equal(t, map[StatType]int{StatImpulseControl: 15, StatSocial: 5}, r.Gains())
	assert.Equal(t, 20, r.TotalXP())
}

func TestParseActivityReport_Malformed(t *testing.T) {
	_, err := ParseActivityReport(`{"activity_name":"walk",`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "malformed activity JSON")
	assert.False(t, IsValidationError(err))
}

func TestParseActivityReport_MissingFieldsAreNamed(t *testing.T) {
	_, err := ParseActivityReport(`{"activity_name":"walk","phy_xp":30}`)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	for _, f := range []string{"int_xp", "imp_xp", "soc_xp", "physical_points", "mental_points"} {
		assert.True(t, strings.Contains(err.Error(), f), "error should name %s: %v", f, err)
	}
}

func TestParseActivityReport_MissingName(t *testing.T) {
	_, err := ParseActivityReport(`{"activity_name":"  ","int_xp":0,"phy_xp":0,"imp_xp":0,"soc_xp":0,"physical_points":0,"mental_points":0}`)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestParseActivityReport_Negative(t *testing.T) {
	_, err := ParseActivityReport(`{"activity_name":"walk","int_xp":0,"phy_xp":-3,"imp_xp":0,"soc_xp":0,"physical_points":0,"mental_points":0}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "phy_xp")
}

func TestParseActivityReport_ValueCeiling(t *testing.T) {
	_, err := ParseActivityReport(`{"activity_name":"walk","int_xp":0,"phy_xp":9223372036854775807,"imp_xp":0,"soc_xp":0,"physical_points":0,"mental_points":0}`)
	require.Error(t, err)
	require.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "phy_xp")

	_, err = ParseActivityReport(`{"activity_name":"walk","int_xp":0,"phy_xp":0,"imp_xp":0,"soc_xp":0,"physical_points":0,"mental_points":10001}`)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
	assert.Contains(t, err.Error(), "mental_points")

	r, err := ParseActivityReport(`{"activity_name":"marathon","int_xp":0,"phy_xp":10000,"imp_xp":0,"soc_xp":0,"physical_points":10000,"mental_points":0}`)
	require.NoError(t, err)
	assert.Equal(t, 10000, r.TotalXP())
}

func TestActivityResultSummary(t *testing.T) {
	res := &ActivityResult{
		Activity: &Activity{Name: "Fetch", Gains: []ActivityStatGain{{StatType: StatPhysical, XP: 21}, {StatType: StatImpulseControl, XP: 9}}},
		Dog:      &Dog{Name: "Bumi"},
		LevelUps: []StatLevelUp{{StatType: StatPhysical, OldLevel: 1, NewLevel: 2, LevelsGained: 1}},
	}
	assert.Equal(t, "Logged Fetch for 30 XP; PHY is now level 2.", res.Summary())
}
