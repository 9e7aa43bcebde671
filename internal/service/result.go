package service

// Result is the outcome of a command: either a value or exactly one Error.
// Commands with nothing to return use Result[struct{}].
type Result[T any] struct {
	value T
	err   *Error
}

// Success wraps v in a successful result.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Ok is the successful result for commands without a value.
func Ok() Result[struct{}] {
	return Result[struct{}]{}
}

// Failure builds a failed result of any shape.
func Failure[T any](e Error) Result[T] {
	return Result[T]{err: &e}
}

func (r Result[T]) IsSuccess() bool { return r.err == nil }
func (r Result[T]) IsFailure() bool { return r.err != nil }

// Value returns the success value, or the zero value on failure.
func (r Result[T]) Value() T { return r.value }

// Err returns the failure and true, or the zero Error and false on success.
func (r Result[T]) Err() (Error, bool) {
	if r.err == nil {
		return Error{}, false
	}
	return *r.err, true
}

// Code returns the failure code, or "" on success.
func (r Result[T]) Code() Code {
	if r.err == nil {
		return ""
	}
	return r.err.Code
}
