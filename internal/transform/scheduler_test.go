package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

func TestTickerSchedulerRunsUntilStopped(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clock := timeutil.NewMockClock(epoch)
	ticks := make(chan time.Time, 4)

	task := TickerScheduler{Clock: clock}.Schedule(time.Second, func(_ context.Context, now time.Time) {
		ticks <- now
	})
	tickers := clock.Tickers()
	require.Len(t, tickers, 1)
	assert.Equal(t, time.Second, tickers[0].Interval())

	clock.Advance(time.Second)
	select {
	case now := <-ticks:
		assert.Equal(t, epoch.Add(time.Second), now)
	case <-time.After(5 * time.Second):
		t.Fatal("tick not delivered")
	}

	task.Stop()
	assert.True(t, tickers[0].Stopped())
	task.Stop()

	clock.Advance(time.Second)
	tickers[0].Trigger(epoch.Add(10 * time.Second))
	select {
	case <-ticks:
		t.Fatal("tick after stop")
	case <-time.After(20 * time.Millisecond):
	}
}

func TestTickerSchedulerCancelsTickContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	clock := timeutil.NewMockClock(epoch)
	entered := make(chan struct{})
	exited := make(chan error, 1)

	task := TickerScheduler{Clock: clock}.Schedule(time.Second, func(ctx context.Context, _ time.Time) {
		close(entered)
		<-ctx.Done()
		exited <- ctx.Err()
	})
	clock.Advance(time.Second)
	<-entered

	task.Stop()
	assert.ErrorIs(t, <-exited, context.Canceled)
}

func TestTickerSchedulerDefaults(t *testing.T) {
	clock := timeutil.NewMockClock(epoch)
	task := TickerScheduler{Clock: clock}.Schedule(0, func(context.Context, time.Time) {})
	defer task.Stop()
	assert.Equal(t, DefaultBroadcastPeriod, clock.Tickers()[0].Interval())
}

func TestBroadcastCloseStopsPublisher(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	clock := timeutil.NewMockClock(epoch)
	sink := &spyBroadcaster{}
	b, err := NewBroadcast("cam", pose.FromTranslation(1, 0, 0), Deps{Broadcaster: sink, Clock: clock})
	require.NoError(t, err)
	b.SetReferenceFrame("world")

	clock.Advance(DefaultBroadcastPeriod)
	require.Eventually(t, func() bool { return len(sink.published()) == 1 }, 5*time.Second, time.Millisecond)

	require.NoError(t, b.Close())
	assert.True(t, clock.Tickers()[0].Stopped())
}
