package transform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

// Lookup defaults.
const (
	DefaultLookupDelay = 500 * time.Millisecond
	DefaultLookupWait  = time.Second
)

// LookupOptions bounds how a variant waits for a Provider.
type LookupOptions struct {
	// Delay stamps each query this far in the past to tolerate propagation
	// delay in the provider.
	Delay time.Duration
	// Wait is the per-attempt WaitForTransform timeout.
	Wait time.Duration
	// MaxAttempts caps the number of waits. Zero retries until the caller's
	// context ends.
	MaxAttempts int
}

func (o LookupOptions) withDefaults() LookupOptions {
	if o.Delay <= 0 {
		o.Delay = DefaultLookupDelay
	}
	if o.Wait <= 0 {
		o.Wait = DefaultLookupWait
	}
	if o.MaxAttempts < 0 {
		o.MaxAttempts = 0
	}
	return o
}

// resolver performs bounded-retry lookups for one variant.
type resolver struct {
	provider Provider
	clock    timeutil.Clock
	opts     LookupOptions
}

// lookup waits for (target, source) to become available and returns it.
// With MaxAttempts zero and a context that never ends, this blocks until the
// provider publishes the pair.
func (r resolver) lookup(ctx context.Context, target, source string) (pose.Pose6d, error) {
	at := r.clock.Now().Add(-r.opts.Delay)
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return pose.Identity(), fmt.Errorf("%w: %s to %s: %w", ErrLookupCancelled, target, source, err)
		}
		if r.provider.WaitForTransform(ctx, target, source, at, r.opts.Wait) {
			break
		}
		diagf("waiting for transform: %s to reference: %s (attempt %d)", target, source, attempt)
		if r.opts.MaxAttempts > 0 && attempt >= r.opts.MaxAttempts {
			return pose.Identity(), fmt.Errorf("%w: %s to %s after %d attempts", ErrLookupTimeout, target, source, attempt)
		}
	}
	p, err := r.provider.Lookup(ctx, target, source, at)
	if err != nil {
		if errors.Is(err, ErrNotYetAvailable) {
			return pose.Identity(), fmt.Errorf("lookup %s to %s: %w", target, source, err)
		}
		return pose.Identity(), fmt.Errorf("%w: lookup %s to %s: %w", ErrNotYetAvailable, target, source, err)
	}
	return p, nil
}
