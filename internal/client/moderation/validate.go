// Package moderation is the admin console: reviewing temple submissions,
// publishing or rejecting them, pruning user-published temples, festivals
// and broadcast notifications.
package moderation

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/templesanathan/internal/client/models"
)

var (
	ErrNameRequired     = errors.New("temple name is required")
	ErrSuspiciousName   = errors.New("suspicious temple name")
	ErrDuplicateName    = errors.New("duplicate temple name")
	ErrLocationRequired = errors.New("district and state are required")
)

// ValidationError names the precondition that blocked an approval. The
// submission stays pending.
type ValidationError struct {
	Reason error
	Name   string
}

func (e *ValidationError) Error() string {
	switch e.Reason {
	case ErrNameRequired:
		return "Temple name is required"
	case ErrSuspiciousName:
		return fmt.Sprintf("%q appears to be a test/fake temple name. Please reject this submission.", e.Name)
	case ErrDuplicateName:
		return fmt.Sprintf("Temple %q already exists in the database. Please reject this duplicate submission.", e.Name)
	case ErrLocationRequired:
		return "District and State are required for temple approval"
	}
	return e.Reason.Error()
}

func (e *ValidationError) Unwrap() error { return e.Reason }

var (
	testTemple = regexp.MustCompile(`(?i)test.*temple`)
	shortWord  = regexp.MustCompile(`^\p{L}{1,5}$`)
)

// IsValidName rejects names that look like test or junk input.
func IsValidName(name string) bool {
	name = strings.TrimSpace(name)
	lower := strings.ToLower(name)
	switch {
	case utf8.RuneCountInString(name) <= 2,
		lower == "test", lower == "hello",
		testTemple.MatchString(name),
		shortWord.MatchString(name),
		strings.ContainsFunc(name, unicode.IsDigit),
		repeatedUnit(lower):
		return false
	}
	first, _ := utf8.DecodeRuneInString(name)
	return unicode.IsLetter(first)
}

// repeatedUnit reports whether the first word is a 2-4 letter unit
// repeated at least twice, like "ksks" or "abcabc".
func repeatedUnit(s string) bool {
	word, _, _ := strings.Cut(s, " ")
	n := len(word)
	for size := 2; size <= 4; size++ {
		if n < 2*size || n%size != 0 {
			continue
		}
		unit := word[:size]
		if strings.Repeat(unit, n/size) == word && isLetters(unit) {
			return true
		}
	}
	return false
}

func isLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return s != ""
}

// validateName covers the first two approval checks. The duplicate check
// needs the backend and runs before validateLocation.
func validateName(d models.SubmissionData) (string, error) {
	name := strings.TrimSpace(d.Name.English)
	if name == "" {
		return "", &ValidationError{Reason: ErrNameRequired}
	}
	if !IsValidName(name) {
		return name, &ValidationError{Reason: ErrSuspiciousName, Name: name}
	}
	return name, nil
}

func validateLocation(d models.SubmissionData, name string) error {
	if strings.TrimSpace(d.District) == "" || strings.TrimSpace(d.State) == "" {
		return &ValidationError{Reason: ErrLocationRequired, Name: name}
	}
	return nil
}
