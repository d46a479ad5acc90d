// Package validate holds the input-validation rules shared by the vault
// engine and its collaborators: master-password strength, secret key
// syntax, and the environment enum.
package validate

import (
	"errors"
	"fmt"
	"regexp"
)

// Sentinel errors. Callers that need the stable error-code strings from
// the taxonomy should wrap these with their own typed errors; this
// package only enforces the rules.
var (
	ErrInvalidKey         = errors.New("validate: invalid key")
	ErrInvalidEnvironment = errors.New("validate: invalid environment")
)

// Environments is the fixed, exhaustive set of valid environment labels.
var Environments = []string{"dev", "staging", "prod", "all"}

// DefaultEnvironment is used wherever a caller omits environment.
const DefaultEnvironment = "all"

const (
	// MaxKeyLength is the maximum length of a secret key name.
	MaxKeyLength = 255

	// MinPasswordLength is the minimum acceptable master password length.
	MinPasswordLength = 12

	// StrongPasswordLength is the length threshold for "strong".
	StrongPasswordLength = 16
)

var (
	keyPattern     = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)
	upperPattern   = regexp.MustCompile(`[A-Z]`)
	lowerPattern   = regexp.MustCompile(`[a-z]`)
	digitPattern   = regexp.MustCompile(`[0-9]`)
	specialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
)

// PasswordStrength is the tier assigned to a password that passes the
// hard requirements.
type PasswordStrength string

const (
	StrengthWeak   PasswordStrength = "weak"
	StrengthMedium PasswordStrength = "medium"
	StrengthStrong PasswordStrength = "strong"
)

// PasswordValidation is the result of ValidatePassword.
type PasswordValidation struct {
	Valid    bool
	Errors   []string
	Strength PasswordStrength
}

// ValidatePassword checks pw against the master-password rules: length
// >= 12, and at least one uppercase, lowercase, digit, and symbol
// character. Strength is "strong" if length >= 16 and there are no
// errors, "medium" if length >= 12 and at most one error, "weak"
// otherwise.
func ValidatePassword(pw string) PasswordValidation {
	var errs []string

	if len(pw) < MinPasswordLength {
		errs = append(errs, fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if !upperPattern.MatchString(pw) {
		errs = append(errs, "password must include an uppercase letter")
	}
	if !lowerPattern.MatchString(pw) {
		errs = append(errs, "password must include a lowercase letter")
	}
	if !digitPattern.MatchString(pw) {
		errs = append(errs, "password must include a digit")
	}
	if !specialPattern.MatchString(pw) {
		errs = append(errs, "password must include a special character")
	}

	strength := StrengthWeak
	switch {
	case len(pw) >= StrongPasswordLength && len(errs) == 0:
		strength = StrengthStrong
	case len(pw) >= MinPasswordLength && len(errs) <= 1:
		strength = StrengthMedium
	}

	return PasswordValidation{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Strength: strength,
	}
}

// ValidateExportPassword applies the export password's lower
// strength floor (8 characters, no composition rules).
func ValidateExportPassword(pw string) error {
	if len(pw) < 8 {
		return fmt.Errorf("validate: export password must be at least 8 characters")
	}
	return nil
}

// ValidateSecretKey checks key against the secret key-name syntax:
// ^[A-Z][A-Z0-9_]*$, length <= 255.
func ValidateSecretKey(key string) error {
	if len(key) == 0 || len(key) > MaxKeyLength {
		return fmt.Errorf("%w: %q: length must be 1-%d characters", ErrInvalidKey, key, MaxKeyLength)
	}
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("%w: %q: must match ^[A-Z][A-Z0-9_]*$", ErrInvalidKey, key)
	}
	return nil
}

// ValidateEnvironment checks env against the fixed four-value enum.
func ValidateEnvironment(env string) error {
	for _, e := range Environments {
		if env == e {
			return nil
		}
	}
	return fmt.Errorf("%w: %q: must be one of %v", ErrInvalidEnvironment, env, Environments)
}

// ValidateTags checks a tag list against a conservative count/length
// limit, the way the vault engine's secret metadata is bounded elsewhere.
func ValidateTags(tags []string) error {
	const maxTags = 10
	const maxTagLength = 64
	if len(tags) > maxTags {
		return fmt.Errorf("validate: at most %d tags allowed, got %d", maxTags, len(tags))
	}
	for _, t := range tags {
		if len(t) == 0 || len(t) > maxTagLength {
			return fmt.Errorf("validate: tag %q must be 1-%d characters", t, maxTagLength)
		}
	}
	return nil
}
