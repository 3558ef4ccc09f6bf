package transform

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/fsutil"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// publication is what a broadcast variant sends for a given cached pose.
type publication struct {
	target, source string
	pose           pose.Pose6d
}

// broadcaster holds a pose and republishes it every period once a reference
// frame is known. The cached pose in base is the only state shared with
// the tick goroutine.
type broadcaster struct {
	base
	sink   Broadcaster
	sched  Scheduler
	files  fsutil.FileSystem
	period time.Duration

	// publish maps the cached pose and reference frame to what is sent.
	publish func(ctx context.Context, p pose.Pose6d, ref string) (publication, error)
	// child names the frame written to static transform records.
	child string

	taskMu sync.Mutex
	task   Task
	closed bool
}

func (b *broadcaster) init(kind Kind, frame string, initial pose.Pose6d, d Deps) error {
	if d.Broadcaster == nil {
		return fmt.Errorf("%s: %w: broadcaster", kind, ErrMissingDependency)
	}
	d = d.withDefaults()
	b.base.init(kind, frame, initial)
	b.sink = d.Broadcaster
	b.sched = d.Scheduler
	b.files = d.Files
	b.period = d.BroadcastPeriod
	b.child = frame
	return nil
}

// PullTransform returns the cached pose.
func (b *broadcaster) PullTransform(context.Context) (pose.Pose6d, error) {
	if _, err := b.reference("pull"); err != nil {
		return pose.Identity(), err
	}
	return b.Current(), nil
}

// PushTransform replaces the cached pose. The pose is kept even before the
// interface is ready, but only a ready interface reports success; the next
// tick publishes it.
func (b *broadcaster) PushTransform(_ context.Context, p pose.Pose6d) error {
	b.setCurrent(p)
	if _, ok := b.state.get(); !ok {
		return ErrNotReady
	}
	return nil
}

// SetReferenceFrame marks the interface ready and, on the first call,
// starts the periodic publisher. Later calls only change the reference
// frame used by subsequent ticks.
func (b *broadcaster) SetReferenceFrame(frame string) {
	if !b.state.set(frame) {
		return
	}
	b.taskMu.Lock()
	defer b.taskMu.Unlock()
	if b.closed || b.task != nil {
		return
	}
	b.task = b.sched.Schedule(b.period, b.tick)
}

// tick publishes the current pose once.
func (b *broadcaster) tick(ctx context.Context, now time.Time) {
	ref, ok := b.state.get()
	if !ok {
		return
	}
	pub, err := b.publish(ctx, b.Current(), ref)
	if err != nil {
		opsf("broadcast %s: %v", b.frame, err)
		return
	}
	if err := b.sink.Publish(ctx, pub.target, pub.source, pub.pose, now); err != nil {
		opsf("broadcast %s: %v", b.frame, err)
		return
	}
	diagf("broadcast %s in %s", pub.target, pub.source)
}

// Store appends the published transform as a static transform record.
func (b *broadcaster) Store(ctx context.Context, path string) error {
	ref, err := b.reference("store")
	if err != nil {
		return err
	}
	pub, err := b.publish(ctx, b.Current(), ref)
	if err != nil {
		opsf("store %s: %v", b.frame, err)
		return err
	}
	return appendRecord(b.files, path, StaticTransformRecord{Parent: ref, Child: b.child, Pose: pub.pose})
}

// Close stops the periodic publisher. The interface cannot be restarted.
func (b *broadcaster) Close() error {
	b.taskMu.Lock()
	task := b.task
	b.task = nil
	b.closed = true
	b.taskMu.Unlock()
	if task != nil {
		task.Stop()
	}
	return nil
}

// Broadcast publishes its pose as (frame, reference).
type Broadcast struct {
	broadcaster
}

// NewBroadcast creates a Broadcast for frame holding initial.
func NewBroadcast(frame string, initial pose.Pose6d, d Deps) (*Broadcast, error) {
	b := &Broadcast{}
	if err := b.init(KindBroadcast, frame, initial, d); err != nil {
		return nil, err
	}
	b.publish = func(_ context.Context, p pose.Pose6d, ref string) (publication, error) {
		return publication{target: b.frame, source: ref, pose: p}, nil
	}
	return b, nil
}

// CameraBroadcast holds the reference-to-camera pose and publishes its
// inverse as (frame, reference), so a CameraListener on the same pair reads
// back the held pose.
type CameraBroadcast struct {
	broadcaster
}

// NewCameraBroadcast creates a CameraBroadcast for frame holding initial.
func NewCameraBroadcast(frame string, initial pose.Pose6d, d Deps) (*CameraBroadcast, error) {
	b := &CameraBroadcast{}
	if err := b.init(KindCameraBroadcast, frame, initial, d); err != nil {
		return nil, err
	}
	b.publish = func(_ context.Context, p pose.Pose6d, ref string) (publication, error) {
		return publication{target: b.frame, source: ref, pose: p.Inverse()}, nil
	}
	return b, nil
}

// CameraHousingBroadcast holds the optical-to-reference pose of a camera and
// publishes the housing that carries it: ref2housing = pose⁻¹ ∘ optical2housing,
// where optical2housing comes from the provider.
type CameraHousingBroadcast struct {
	broadcaster
	housing string
	resolve resolver
}

// NewCameraHousingBroadcast creates a CameraHousingBroadcast for the optical
// frame mounted in housing.
func NewCameraHousingBroadcast(frame, housing string, initial pose.Pose6d, d Deps) (*CameraHousingBroadcast, error) {
	if err := requireProvider(KindCameraHousingBroadcast, d); err != nil {
		return nil, err
	}
	b := &CameraHousingBroadcast{housing: housing}
	if err := b.init(KindCameraHousingBroadcast, frame, initial, d); err != nil {
		return nil, err
	}
	b.resolve = d.withDefaults().resolver()
	b.child = housing
	b.publish = func(ctx context.Context, p pose.Pose6d, ref string) (publication, error) {
		optical2housing, err := b.resolve.lookup(ctx, b.frame, b.housing)
		if err != nil {
			return publication{}, err
		}
		return publication{target: ref, source: b.housing, pose: p.Inverse().Mul(optical2housing)}, nil
	}
	return b, nil
}

// HousingFrame returns the housing frame name.
func (b *CameraHousingBroadcast) HousingFrame() string { return b.housing }
