// Package wakeword detects the "hey Bumi" family of wake phrases in a speech
// transcript and extracts the command that follows.
package wakeword

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultVariants are the spellings a speech recognizer commonly produces for "hey Bumi".
var DefaultVariants = []string{
	"hey bumi",
	"hey boomie",
	"hey bummy",
	"hey boomi",
	"hey bumie",
	"hey bumy",
	"hi bumi",
	"a bumi",
}

// Result describes a detection. Indices are byte offsets into the transcript;
// EndIndex is exclusive. Both are -1 when nothing matched.
type Result struct {
	Detected   bool   `json:"detected"`
	WakeWord   string `json:"wakeWord,omitempty"`
	Payload    string `json:"payload"`
	StartIndex int    `json:"startIndex"`
	EndIndex   int    `json:"endIndex"`
}

// Detect runs DetectWith over DefaultVariants.
func Detect(transcript string) Result {
	return DetectWith(transcript, DefaultVariants)
}

// DetectWith finds the earliest occurrence of any variant, case-insensitively.
// When several variants start at the same position the longest match wins.
// The payload is the remainder after the match with leading whitespace and
// punctuation removed.
func DetectWith(transcript string, variants []string) Result {
	miss := Result{StartIndex: -1, EndIndex: -1}
	if transcript == "" || len(variants) == 0 {
		return miss
	}
	for start := 0; start < len(transcript); {
		bestEnd, bestVariant := -1, ""
		for _, v := range variants {
			if v == "" {
				continue
			}
			if end := matchAt(transcript, start, v); end > bestEnd {
				bestEnd, bestVariant = end, v
			}
		}
		if bestEnd >= 0 {
			return Result{
				Detected:   true,
				WakeWord:   bestVariant,
				Payload:    strings.TrimLeftFunc(transcript[bestEnd:], isLeadingNoise),
				StartIndex: start,
				EndIndex:   bestEnd,
			}
		}
		_, size := utf8.DecodeRuneInString(transcript[start:])
		start += size
	}
	return miss
}

// matchAt returns the byte offset just past variant when it matches s at
// position start, or -1.
func matchAt(s string, start int, variant string) int {
	i := start
	for _, want := range variant {
		if i >= len(s) {
			return -1
		}
		got, size := utf8.DecodeRuneInString(s[i:])
		if !foldEqual(got, want) {
			return -1
		}
		i += size
	}
	return i
}

func foldEqual(a, b rune) bool {
	if a == b {
		return true
	}
	return unicode.ToLower(a) == unicode.ToLower(b)
}

func isLeadingNoise(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsPunct(r)
}
