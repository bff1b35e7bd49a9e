package workflow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// FanOut runs one unit of work per task concurrently and waits for all of
// them. Results are index-aligned with tasks. If any task fails the shared
// context is cancelled and the first error is returned with no results.
// A limit <= 0 means no concurrency limit.
func FanOut[T, R any](ctx context.Context, tasks []T, limit int, run func(context.Context, T) (R, error)) ([]R, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}

	results := make([]R, len(tasks))
	for i, task := range tasks {
		g.Go(func() error {
			r, err := run(gctx, task)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
