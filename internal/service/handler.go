package service

import "context"

// Handler executes one command kind. A business failure is reported in the
// Result; a non-nil error means the attempt itself broke (for example the
// status channel was unreachable) and the caller should retry delivery.
type Handler[C, R any] interface {
	Handle(ctx context.Context, cmd C) (Result[R], error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc[C, R any] func(ctx context.Context, cmd C) (Result[R], error)

func (f HandlerFunc[C, R]) Handle(ctx context.Context, cmd C) (Result[R], error) {
	return f(ctx, cmd)
}

// Validator checks the structure of a command and returns one message per
// problem found. An empty slice means the command is acceptable.
type Validator[C any] interface {
	Validate(ctx context.Context, cmd C) []string
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc[C any] func(ctx context.Context, cmd C) []string

func (f ValidatorFunc[C]) Validate(ctx context.Context, cmd C) []string {
	return f(ctx, cmd)
}
