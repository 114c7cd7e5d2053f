// Package validation contains input validation rules shared by the store
// and HTTP layers.
package validation

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]{1,30}$`)
	joinCodeRegex = regexp.MustCompile(`^[A-Z0-9]{6}$`)
)

const (
	maxGroupNameLen   = 80
	maxDescriptionLen = 280
)

// ValidateUsername validates username format.
func ValidateUsername(username string) error {
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("username is required")
	}
	if !usernameRegex.MatchString(username) {
		return fmt.Errorf("username must be 1-30 characters and contain only letters, numbers, dots, underscores, and hyphens")
	}
	return nil
}

// ValidateGroupName validates group name presence and length.
func ValidateGroupName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("group name is required")
	}
	if len(name) > maxGroupNameLen {
		return fmt.Errorf("group name too long (max %d characters)", maxGroupNameLen)
	}
	return nil
}

// ValidateDescription validates the justification attached to an aura award.
func ValidateDescription(description string) error {
	if strings.TrimSpace(description) == "" {
		return fmt.Errorf("description is required")
	}
	if len(description) > maxDescriptionLen {
		return fmt.Errorf("description too long (max %d characters)", maxDescriptionLen)
	}
	return nil
}

// NormalizeJoinCode uppercases and trims a join code for case-insensitive matching.
func NormalizeJoinCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// ValidateJoinCode validates a join code, normalizing it first so the
// check is case-insensitive like code matching itself.
func ValidateJoinCode(code string) error {
	if !joinCodeRegex.MatchString(NormalizeJoinCode(code)) {
		return fmt.Errorf("join code must be 6 characters, letters and digits only")
	}
	return nil
}
