// Package fn holds the small generic helpers the pipeline shares: ordered
// fan-out, slice shaping and retry with backoff.
package fn

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// All runs every task concurrently with ctx and returns the values in task
// order. Tasks report failure through their value; one task never cancels
// another.
func All[T any](ctx context.Context, tasks ...func(context.Context) T) []T {
	out := make([]T, len(tasks))
	var g errgroup.Group
	for i, task := range tasks {
		g.Go(func() error {
			out[i] = task(ctx)
			return nil
		})
	}
	_ = g.Wait()
	return out
}
