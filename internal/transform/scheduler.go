package transform

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

// DefaultBroadcastPeriod is the publish period of the broadcast variants.
const DefaultBroadcastPeriod = time.Second

// Scheduler runs a callback periodically until the returned Task is stopped.
type Scheduler interface {
	Schedule(period time.Duration, tick func(ctx context.Context, now time.Time)) Task
}

// Task is a running periodic callback.
type Task interface {
	// Stop cancels the callback's context and waits for any tick in flight
	// to return. It must not be called from within the tick.
	Stop()
}

// TickerScheduler runs each task on its own goroutine driven by Clock.
type TickerScheduler struct {
	Clock timeutil.Clock
}

// Schedule starts tick on a new goroutine. The ticker is created before
// Schedule returns, so a mock clock advanced afterwards reaches it.
func (s TickerScheduler) Schedule(period time.Duration, tick func(ctx context.Context, now time.Time)) Task {
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	if period <= 0 {
		period = DefaultBroadcastPeriod
	}
	ticker := clock.NewTicker(period)
	ctx, cancel := context.WithCancel(context.Background())
	task := &tickerTask{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(task.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C():
				tick(ctx, now)
			}
		}
	}()
	return task
}

type tickerTask struct {
	once   sync.Once
	cancel context.CancelFunc
	done   chan struct{}
}

func (t *tickerTask) Stop() {
	t.once.Do(func() {
		t.cancel()
		<-t.done
	})
}
