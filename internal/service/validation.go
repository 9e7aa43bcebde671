package service

import (
	"context"
	"slices"
	"sync"
)

// WithValidation wraps next so that every validator runs, concurrently,
// before it. Any reported problem short-circuits with a Validation.Failed
// result and next is never called. With no validators next always runs.
func WithValidation[C, R any](next Handler[C, R], validators ...Validator[C]) Handler[C, R] {
	if len(validators) == 0 {
		return next
	}
	return HandlerFunc[C, R](func(ctx context.Context, cmd C) (Result[R], error) {
		found := make([][]string, len(validators))
		var wg sync.WaitGroup
		for i, v := range validators {
			wg.Go(func() {
				found[i] = v.Validate(ctx, cmd)
			})
		}
		wg.Wait()

		// Registration order keeps the aggregate message deterministic.
		if msgs := slices.Concat(found...); len(msgs) > 0 {
			return Failure[R](ErrValidationFailed(msgs)), nil
		}
		return next.Handle(ctx, cmd)
	})
}
