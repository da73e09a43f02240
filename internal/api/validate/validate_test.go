package validate

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUID(t *testing.T) {
	assert.NoError(t, UUID("householdId", "3f0c6c1e-8a3b-4c55-9a8e-3c1f2b7d9e10"))
	assert.EqualError(t, UUID("householdId", ""), "householdId is required")
	assert.EqualError(t, UUID("householdId", "not-a-uuid"), "householdId must be a UUID")
}

func TestDate(t *testing.T) {
	d, err := Date("since", "2026-03-09")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC), d)

	_, err = Date("since", "03/09/2026")
	assert.EqualError(t, err, "since must be a date (YYYY-MM-DD)")
}

func TestLimit(t *testing.T) {
	tests := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"", 20, false},
		{"5", 5, false},
		{"200", 200, false},
		{"201", 0, true},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
	}
	for _, tt := range tests {
		got, err := Limit(tt.in, 20)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		assert.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestNonEmptyAndMaxLen(t *testing.T) {
	assert.EqualError(t, NonEmpty("text", "  "), "text is required")
	assert.NoError(t, NonEmpty("text", "walked"))

	long := strings.Repeat("a", 11)
	assert.EqualError(t, MaxLen("note", &long, 10), "note exceeds 10 characters")
	assert.NoError(t, MaxLen("note", nil, 10))
	assert.Error(t, Positive("durationMinutes", 0))
}
