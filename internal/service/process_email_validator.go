package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
)

// fieldMessages maps a failed "Field.tag" rule to its user-facing message.
var fieldMessages = map[string]string{
	"NotificationID.required":   "NotificationId is required",
	"RecipientAddress.required": "RecipientAddress is required",
	"RecipientAddress.email":    "RecipientAddress must be a valid email address",
	"Body.required":             "Body is required",
	"Priority.min":              "Priority must be between 0 (Low) and 3 (Critical)",
	"Priority.max":              "Priority must be between 0 (Low) and 3 (Critical)",
}

// ProcessEmailValidator applies the structural rules declared on
// ProcessEmailCommand. Domain construction re-checks the address and body
// authoritatively, so passing here does not guarantee a valid entity.
type ProcessEmailValidator struct {
	validate *validator.Validate
}

func NewProcessEmailValidator() *ProcessEmailValidator {
	return &ProcessEmailValidator{validate: validator.New(validator.WithRequiredStructEnabled())}
}

func (v *ProcessEmailValidator) Validate(_ context.Context, cmd ProcessEmailCommand) []string {
	err := v.validate.Struct(cmd)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		if msg, ok := fieldMessages[fe.StructField()+"."+fe.Tag()]; ok {
			msgs = append(msgs, msg)
			continue
		}
		msgs = append(msgs, fe.Error())
	}
	return msgs
}
