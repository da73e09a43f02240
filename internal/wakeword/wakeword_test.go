package wakeword

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDetect_PayloadAfterComma(t *testing.T) {
	r := Detect("hey bumi, stayed calm")
	assert.True(t, r.Detected)
	assert.Equal(t, "hey bumi", r.WakeWord)
	assert.Equal(t, "stayed calm", r.Payload)
	assert.Equal(t, 0, r.StartIndex)
	assert.Equal(t, 8, r.EndIndex)
}

func TestDetect_CaseInsensitiveMidTranscript(t *testing.T) {
	r := Detect("okay so HEY Boomie... we did a 20 minute walk")
	assert.True(t, r.Detected)
	assert.Equal(t, "hey boomie", r.WakeWord)
	assert.Equal(t, 8, r.StartIndex)
	assert.Equal(t, 18, r.EndIndex)
	assert.Equal(t, "we did a 20 minute walk", r.Payload)
}

func TestDetect_LongestVariantWinsAtSamePosition(t *testing.T) {
	// "hey boomie" and "hey boomi" both match at 0.
	r := Detect("hey boomie fetch")
	assert.Equal(t, "hey boomie", r.WakeWord)
	assert.Equal(t, "fetch", r.Payload)
}

func TestDetect_EarliestMatchWins(t *testing.T) {
	r := Detect("hi bumi then hey bumi again")
	assert.Equal(t, "hi bumi", r.WakeWord)
	assert.Equal(t, 0, r.StartIndex)
	assert.Equal(t, "then hey bumi again", r.Payload)
}

func TestDetect_NoMatch(t *testing.T) {
	r := Detect("we went to the park")
	assert.False(t, r.Detected)
	assert.Equal(t, "", r.Payload)
	assert.Equal(t, -1, r.StartIndex)
	assert.Equal(t, -1, r.EndIndex)
	assert.Equal(t, Result{StartIndex: -1, EndIndex: -1}, Detect(""))
}

func TestDetect_WakeWordOnly(t *testing.T) {
	r := Detect("Hey Bumi!")
	assert.True(t, r.Detected)
	assert.Equal(t, "", r.Payload)
}

func TestDetect_ByteOffsetsWithMultibytePrefix(t *testing.T) {
	r := Detect("café hey bumi sit")
	assert.True(t, r.Detected)
	// "café " is 6 bytes.
	assert.Equal(t, 6, r.StartIndex)
	assert.Equal(t, 14, r.EndIndex)
	assert.Equal(t, "sit", r.Payload)
}

func TestDetectWith_CustomVariants(t *testing.T) {
	r := DetectWith("yo rex, sit", []string{"yo rex", ""})
	assert.True(t, r.Detected)
	assert.Equal(t, "sit", r.Payload)
	assert.False(t, DetectWith("hey bumi", nil).Detected)
}
