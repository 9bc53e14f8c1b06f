package analytics

import (
	"context"

	"golang.org/x/sync/singleflight"
)

var statisticsGroup singleflight.Group

// singleflightStatistics collapses concurrent builds of the same document,
// so a cold cache costs one set of queries rather than one per waiting
// request.
func singleflightStatistics(ctx context.Context, key string, fn func(context.Context) (any, error)) (any, error, bool) {
	resultChan := statisticsGroup.DoChan(key, func() (any, error) {
		return fn(ctx)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err(), false
	case res := <-resultChan:
		return res.Val, res.Err, res.Shared
	}
}
