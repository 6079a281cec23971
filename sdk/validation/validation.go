// Package validation holds small helpers for pointer-typed optional
// fields and the HH:MM / YYYY-MM-DD formats used throughout lexprep.
package validation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

func StringPtr(s string) *string {
	return &s
}

// StringPtrIfNotEmpty returns a pointer to s if not empty, otherwise nil.
func StringPtrIfNotEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func BoolPtr(b bool) *bool {
	return &b
}

// GetStringOrEmpty returns the string value or "" if nil.
func GetStringOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// GetBoolOrFalse returns the bool value or false if nil.
func GetBoolOrFalse(b *bool) bool {
	if b == nil {
		return false
	}
	return *b
}

// ValidClockTime reports whether s is a well-formed HH:MM 24-hour time.
func ValidClockTime(s string) bool {
	h, m, ok := SplitClockTime(s)
	return ok && h >= 0 && h <= 23 && m >= 0 && m <= 59
}

// SplitClockTime splits an HH:MM string into hour and minute parts.
func SplitClockTime(s string) (hour, minute int, ok bool) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, false
	}
	return h, m, true
}

// FormatClockTime renders hour and minute as a zero-padded HH:MM string.
func FormatClockTime(hour, minute int) string {
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

// ValidDate reports whether s is a well-formed YYYY-MM-DD calendar date.
func ValidDate(s string) bool {
	_, err := time.Parse("2006-01-02", s)
	return err == nil
}

// DateOf renders t's local calendar date as YYYY-MM-DD.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
