package portal

import (
	"context"
	"errors"
)

// firstOf runs every fn concurrently and returns the first success; the
// others see their context cancelled. It waits for all of them to return
// before it does. When every fn fails the errors are joined.
func firstOf[T any](ctx context.Context, fns ...func(context.Context) (T, error)) (T, error) {
	var zero T
	if len(fns) == 0 {
		return zero, errors.New("firstOf: nothing to run")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	results := make(chan outcome, len(fns))
	for _, fn := range fns {
		fn := fn // per-iteration copy (go 1.21 loop semantics)
		go func() {
			v, err := fn(ctx)
			results <- outcome{v, err}
		}()
	}

	var (
		won  bool
		best T
		errs []error
	)
	for range fns {
		r := <-results
		if won {
			continue
		}
		if r.err == nil {
			won, best = true, r.val
			cancel()
			continue
		}
		errs = append(errs, r.err)
	}
	if won {
		return best, nil
	}
	return zero, errors.Join(errs...)
}
