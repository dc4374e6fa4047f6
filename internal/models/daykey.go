package models

import (
	"fmt"
	"time"
)

const dayKeyLayout = "02012006"

// DayKey derives the canonical contest identifier for the UTC calendar day
// containing t. Every component that reads or writes a ContestRecord must go
// through this function; there is deliberately no other date-to-key code in
// the repo.
func DayKey(t time.Time) string {
	return t.UTC().Format(dayKeyLayout)
}

// ParseDayKey validates a client- or admin-supplied day key and returns the
// UTC midnight it identifies.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day key %q: %w", key, err)
	}
	return t, nil
}
