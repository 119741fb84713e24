// Package validate holds the credential rules applied before an account is
// created or its password changed.
package validate

import (
	"errors"
	"strings"
	"unicode"
)

var (
	ErrWeakPassword = errors.New("validate: weak password")
	ErrInvalidName  = errors.New("validate: invalid name")
)

// Error carries the human readable reason for a failed rule. Kind is one of
// ErrWeakPassword or ErrInvalidName and is reachable through errors.Is.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string { return e.Reason }
func (e *Error) Unwrap() error { return e.Kind }

// Reason returns the reason carried by err, or "" if err is not an *Error.
func Reason(err error) string {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return ""
}

const (
	MinPasswordLength = 8
	SpecialCharacters = `!@#$%^&*()-_+=/\`
)

const (
	ReasonPasswordTooShort  = "Password should be at least 8 characters"
	ReasonPasswordHasEmail  = "Password should not contain email"
	ReasonPasswordNoSpecial = "Password should contain atleast 1 special character"
	ReasonPasswordNoDigit   = "Password should contain atleast 1 number"
	ReasonPasswordNoUpper   = "Password should contain atleast 1 uppercase letter"
	ReasonPasswordNoLower   = "Password should contain atleast 1 lowercase letter"
	ReasonNamesEmpty        = "First name and last name cannot be empty"
	ReasonNamesInvalidChars = "First name and last name shouldn't contain numbers or special characters"
)

// Validator is the rule set the lifecycle service applies.
type Validator interface {
	Password(password, email string) error
	Names(first, last string) error
}

type rules struct{}

// Default applies the package-level rules.
var Default Validator = rules{}

func (rules) Password(password, email string) error { return Password(password, email) }
func (rules) Names(first, last string) error        { return Names(first, last) }

// Password checks the rules in a fixed order and reports the first one that
// fails. Length is counted in characters, not bytes.
func Password(password, email string) error {
	weak := func(reason string) error { return &Error{Kind: ErrWeakPassword, Reason: reason} }

	if len([]rune(password)) < MinPasswordLength {
		return weak(ReasonPasswordTooShort)
	}
	if email != "" && strings.Contains(strings.ToLower(password), strings.ToLower(email)) {
		return weak(ReasonPasswordHasEmail)
	}
	if !strings.ContainsAny(password, SpecialCharacters) {
		return weak(ReasonPasswordNoSpecial)
	}
	if !strings.ContainsFunc(password, unicode.IsDigit) {
		return weak(ReasonPasswordNoDigit)
	}
	if !strings.ContainsFunc(password, unicode.IsUpper) {
		return weak(ReasonPasswordNoUpper)
	}
	if !strings.ContainsFunc(password, unicode.IsLower) {
		return weak(ReasonPasswordNoLower)
	}
	return nil
}

// Names requires both names to be non-empty and made only of letters.
func Names(first, last string) error {
	if first == "" || last == "" {
		return &Error{Kind: ErrInvalidName, Reason: ReasonNamesEmpty}
	}
	isLetters := func(s string) bool {
		return !strings.ContainsFunc(s, func(r rune) bool { return !unicode.IsLetter(r) })
	}
	if !isLetters(first) || !isLetters(last) {
		return &Error{Kind: ErrInvalidName, Reason: ReasonNamesInvalidChars}
	}
	return nil
}
