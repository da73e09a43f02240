// Package validate holds the request-level checks shared by the HTTP handlers.
// Every helper returns a plain error whose text is safe to show to clients.
package validate

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-openapi/strfmt"
)

// MaxListLimit caps ?limit= on every list endpoint.
const MaxListLimit = 200

func NonEmpty(field, v string) error {
	if strings.TrimSpace(v) == "" {
		return fmt.Errorf("%s is required", field)
	}
	return nil
}

func MaxLen(field string, v *string, limit int) error {
	if v == nil {
		return nil
	}
	if len(*v) > limit {
		return fmt.Errorf("%s exceeds %d characters", field, limit)
	}
	return nil
}

// UUID checks that v is a canonical UUID (ids minted by the store).
func UUID(field, v string) error {
	if v == "" {
		return fmt.Errorf("%s is required", field)
	}
	if !strfmt.IsUUID(v) {
		return fmt.Errorf("%s must be a UUID", field)
	}
	return nil
}

// Date parses a YYYY-MM-DD value as midnight UTC.
func Date(field, v string) (time.Time, error) {
	if !strfmt.IsDate(v) {
		return time.Time{}, fmt.Errorf("%s must be a date (YYYY-MM-DD)", field)
	}
	d, err := time.Parse(strfmt.RFC3339FullDate, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s must be a date (YYYY-MM-DD)", field)
	}
	return d, nil
}

// Limit parses an optional ?limit= value. Empty means def.
func Limit(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > MaxListLimit {
		return 0, fmt.Errorf("limit must not exceed %d", MaxListLimit)
	}
	return n, nil
}

// Positive checks an integer request field.
func Positive(field string, v int) error {
	if v <= 0 {
		return fmt.Errorf("%s must be positive", field)
	}
	return nil
}
