// ABOUTME: Single-flight credential refresh shared by every failing request
// ABOUTME: Concurrent callers join the one in-transit refresh and receive its outcome

package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

const flightKey = "refresh"

// refreshFlight coordinates refresh calls. At most one refresh is in transit
// at a time; the singleflight entry is removed before waiters are released,
// so a caller arriving after completion starts a new flight.
type refreshFlight struct {
	sfGroup   singleflight.Group
	refresher Refresher
	tokens    Tokens
	log       *slog.Logger
	started   atomic.Int64
}

// join waits for the in-flight refresh, starting one if none is active.
//
// staleToken is the access token the rejected request carried. When the
// store already holds a different token, a refresh completed after that
// request was sent and the caller can replay without another one.
func (f *refreshFlight) join(ctx context.Context, staleToken string) error {
	if staleToken != "" {
		if current, ok := f.tokens.AccessToken(ctx); ok && current != staleToken {
			f.log.Debug("Access token already rotated, skipping refresh")
			return nil
		}
	}

	ch := f.sfGroup.DoChan(flightKey, func() (interface{}, error) {
		return nil, f.run(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run performs one refresh. Failure clears the store before any waiter
// observes the result.
func (f *refreshFlight) run(ctx context.Context) error {
	n := f.started.Add(1)
	f.log.Debug("Refreshing access token", "flight", n)

	if err := f.refresher.Refresh(ctx); err != nil {
		f.tokens.Clear(ctx)
		f.log.Warn("Token refresh failed, credentials cleared", "flight", n, "error", err)
		return err
	}

	f.log.Info("Access token refreshed", "flight", n)
	return nil
}
