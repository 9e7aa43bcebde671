package service

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Code classifies a failed outcome. Codes are stable strings that callers
// may match on.
type Code string

const (
	CodeValidationRequired    Code = "Validation.Required"
	CodeValidationInvalid     Code = "Validation.Invalid"
	CodeValidationFailed      Code = "Validation.Failed"
	CodeEmailInvalidRecipient Code = "Email.InvalidRecipient"
	CodeEmailSendFailed       Code = "Email.SendFailed"
	CodeEmailAlreadyProcessed Code = "Email.AlreadyProcessed"
	CodeEmailInvalidStatus    Code = "Email.InvalidStatus"
	CodeEmailNotFound         Code = "Email.NotFound"
)

// Error is a business failure: a code plus a human-readable message.
// It is carried inside a Result, never returned as a Go error by handlers.
type Error struct {
	Code    Code
	Message string
}

func (e Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func ErrRequired(field string) Error {
	return Error{Code: CodeValidationRequired, Message: fmt.Sprintf("'%s' is required", field)}
}

func ErrInvalid(field, reason string) Error {
	return Error{Code: CodeValidationInvalid, Message: fmt.Sprintf("'%s' is invalid: %s", field, reason)}
}

// ErrValidationFailed aggregates validator messages, joined by "; ".
func ErrValidationFailed(messages []string) Error {
	return Error{Code: CodeValidationFailed, Message: strings.Join(messages, "; ")}
}

func ErrInvalidRecipient(email string) Error {
	return Error{Code: CodeEmailInvalidRecipient, Message: fmt.Sprintf("Invalid email address: '%s'", email)}
}

func ErrSendFailed(reason string) Error {
	return Error{Code: CodeEmailSendFailed, Message: fmt.Sprintf("Failed to send email: %s", reason)}
}

func ErrAlreadyProcessed(id uuid.UUID) Error {
	return Error{Code: CodeEmailAlreadyProcessed, Message: fmt.Sprintf("Email with ID '%s' has already been processed", id)}
}

func ErrInvalidStatus(current, expected string) Error {
	return Error{Code: CodeEmailInvalidStatus, Message: fmt.Sprintf("Email is in '%s' status, expected '%s'", current, expected)}
}

func ErrNotFound(id uuid.UUID) Error {
	return Error{Code: CodeEmailNotFound, Message: fmt.Sprintf("Email with ID '%s' was not found", id)}
}
