package notification

import (
	"fmt"
	"strings"
)

// Recipient is the addressee of a notification. Two recipients are equal
// when both address and name match, so the struct is comparable with ==.
type Recipient struct {
	Address EmailAddress
	Name    string
}

// NewRecipient parses email and trims name. A blank name is dropped.
func NewRecipient(email, name string) (Recipient, error) {
	addr, err := ParseAddress(email)
	if err != nil {
		return Recipient{}, err
	}
	return Recipient{Address: addr, Name: strings.TrimSpace(name)}, nil
}

// Formatted returns "Name <address>", or the bare address when no name is set.
func (r Recipient) Formatted() string {
	if r.Name == "" {
		return r.Address.String()
	}
	return fmt.Sprintf("%s <%s>", r.Name, r.Address.String())
}

func (r Recipient) String() string { return r.Formatted() }
