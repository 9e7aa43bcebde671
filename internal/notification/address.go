package notification

import (
	"fmt"
	"regexp"
	"strings"
)

// addressPattern accepts a non-empty local part and a dotted domain.
// Input is lower-cased before matching.
var addressPattern = regexp.MustCompile(`^[a-z0-9._%+\-']+@[a-z0-9\-]+(\.[a-z0-9\-]+)*\.[a-z]{2,}$`)

// EmailAddress is a normalized (trimmed, lower-cased) email address.
// The zero value is not a valid address; use ParseAddress to build one.
type EmailAddress struct {
	value string
}

// ParseAddress trims and lower-cases raw and validates it against the
// address grammar. It fails with an error wrapping ErrInvalidArgument.
func ParseAddress(raw string) (EmailAddress, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if normalized == "" {
		return EmailAddress{}, fmt.Errorf("%w: email address cannot be empty", ErrInvalidArgument)
	}
	if !addressPattern.MatchString(normalized) {
		return EmailAddress{}, fmt.Errorf("%w: invalid email address format: %q", ErrInvalidArgument, raw)
	}
	return EmailAddress{value: normalized}, nil
}

// ParseAddressOrZero is like ParseAddress but reports failure through ok
// instead of an error.
func ParseAddressOrZero(raw string) (addr EmailAddress, ok bool) {
	addr, err := ParseAddress(raw)
	if err != nil {
		return EmailAddress{}, false
	}
	return addr, true
}

// String returns the normalized address.
func (a EmailAddress) String() string { return a.value }

// IsZero reports whether a was never successfully parsed.
func (a EmailAddress) IsZero() bool { return a.value == "" }

// Domain returns the part after the '@'.
func (a EmailAddress) Domain() string {
	_, domain, _ := strings.Cut(a.value, "@")
	return domain
}
