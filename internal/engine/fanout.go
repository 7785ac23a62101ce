package engine

import (
	"context"

	"github.com/you-humble/mediafanout/internal/domain"

	"golang.org/x/sync/errgroup"
)

type taskFunc func(ctx context.Context, i int) domain.Outcome

// join runs task for every index in 0..n-1 concurrently and waits for all of
// them. Slot i of the result always holds the outcome of task i.
// ctx is only handed to the tasks; join itself never gives up early.
func join(ctx context.Context, n int, task taskFunc) []domain.Outcome {
	outcomes := make([]domain.Outcome, n)

	var g errgroup.Group
	for i := range n {
		g.Go(func() error {
			outcomes[i] = task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}
