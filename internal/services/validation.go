package services

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/skinguardian/client/types"
)

const (
	minUsernameLen = 2
	minPasswordLen = 6
	minFullNameLen = 2
)

// ValidationError is a locally detected, field-scoped input error. It is
// returned before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ValidateCredentials checks a login or sign-up form.
func ValidateCredentials(creds types.Credentials) error {
	if utf8.RuneCountInString(strings.TrimSpace(creds.Username)) < minUsernameLen {
		return invalid("username", fmt.Sprintf("Username must be at least %d characters.", minUsernameLen))
	}
	if utf8.RuneCountInString(creds.Password) < minPasswordLen {
		return invalid("password", fmt.Sprintf("Password must be at least %d characters.", minPasswordLen))
	}
	return nil
}

// ValidateProfile checks a profile creation form.
func ValidateProfile(profile types.UserProfile) error {
	if utf8.RuneCountInString(strings.TrimSpace(profile.FullName)) < minFullNameLen {
		return invalid("fullname", fmt.Sprintf("Fullname must be at least %d characters.", minFullNameLen))
	}
	if profile.Age < 0 {
		return invalid("age", "Age must be a whole number of years, zero or more.")
	}
	return nil
}

// ValidateSubmission checks a diagnosis form: a known localization and
// exactly one non-empty image.
func ValidateSubmission(sub types.DiagnosisSubmission) error {
	if sub.Localization == "" {
		return invalid("localization", "Please select a localization.")
	}
	if !sub.Localization.Valid() {
		return invalid("localization", fmt.Sprintf("Unknown localization %q.", sub.Localization))
	}
	switch len(sub.Images) {
	case 0:
		return invalid("image", "Please upload an image.")
	case 1:
	default:
		return invalid("image", "Please upload exactly one image.")
	}
	if len(sub.Images[0].Data) == 0 {
		return invalid("image", "The uploaded image is empty.")
	}
	return nil
}
