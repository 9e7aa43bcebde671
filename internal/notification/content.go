package notification

import (
	"fmt"
	"strings"
)

// Content is the subject and body of an email. Subject is optional and
// stored trimmed; Body is kept verbatim but may not be blank.
type Content struct {
	Subject string
	Body    string
	IsHTML  bool
}

// NewContent validates body and trims subject.
func NewContent(subject, body string, isHTML bool) (Content, error) {
	if strings.TrimSpace(body) == "" {
		return Content{}, fmt.Errorf("%w: email body cannot be empty", ErrInvalidArgument)
	}
	return Content{
		Subject: strings.TrimSpace(subject),
		Body:    body,
		IsHTML:  isHTML,
	}, nil
}

// HasSubject reports whether a non-blank subject was supplied.
func (c Content) HasSubject() bool { return c.Subject != "" }
