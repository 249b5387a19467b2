// internal/rules/batch.go
package rules

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/solatis/tagrules/internal/types"
)

// DefaultWorkers is the batch fan-out used when workers <= 0.
const DefaultWorkers = 4

// EvaluateBatch evaluates objs concurrently against rs and returns results
// in input order. Cancelling ctx stops objects not yet started; the
// returned error is then ctx.Err() and the results are discarded.
func EvaluateBatch(ctx context.Context, rs *RuleSet, objs []types.ObjectRecord, workers int) ([]MatchResult, error) {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	results := make([]MatchResult, len(objs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range objs {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = Evaluate(rs, objs[i])
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
