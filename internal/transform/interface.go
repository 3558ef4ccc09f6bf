package transform

import (
	"context"
	"fmt"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/fsutil"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

// Interface is the capability every transform variant exposes to the
// calibration driver.
type Interface interface {
	// PullTransform reads the current pose from the variant's source.
	PullTransform(ctx context.Context) (pose.Pose6d, error)
	// PushTransform writes a new pose to the variant's sink.
	PushTransform(ctx context.Context, p pose.Pose6d) error
	// Store persists the current pose. Broadcast variants append a static
	// transform record to path; calibration variants ignore path.
	Store(ctx context.Context, path string) error
	// SetReferenceFrame assigns the frame poses are expressed against and
	// makes the interface ready.
	SetReferenceFrame(frame string)

	Kind() Kind
	TransformFrame() string
	ReferenceFrame() (string, bool)
	Ready() bool
	// Current returns the last pose pulled or pushed without I/O.
	Current() pose.Pose6d
	// Close releases background work. It is safe to call more than once.
	Close() error
}

// Chained is implemented by variants that resolve their pose through an
// intermediate mounting frame.
type Chained interface {
	Interface
	// IntermediateFrame returns the pose relating the mounting frame and the
	// reference frame, as used inside PullTransform.
	IntermediateFrame(ctx context.Context) (pose.Pose6d, error)
}

// Kind names a transform variant.
type Kind string

const (
	KindListener               Kind = "listener"
	KindCameraListener         Kind = "camera_listener"
	KindCameraHousingListener  Kind = "camera_housing_listener"
	KindBroadcast              Kind = "broadcast"
	KindCameraBroadcast        Kind = "camera_broadcast"
	KindCameraHousingBroadcast Kind = "camera_housing_broadcast"
	KindCameraHousingCal       Kind = "camera_housing_cal"
	KindSimpleCal              Kind = "simple_cal"
)

// Kinds lists every variant.
var Kinds = []Kind{
	KindListener, KindCameraListener, KindCameraHousingListener,
	KindBroadcast, KindCameraBroadcast, KindCameraHousingBroadcast,
	KindCameraHousingCal, KindSimpleCal,
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	for _, k := range Kinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown transform interface kind %q", s)
}

// Deps are the collaborators a variant may use. Each constructor checks for
// the ones it needs; the rest are ignored.
type Deps struct {
	Provider    Provider
	Broadcaster Broadcaster
	Joints      JointStore

	// Scheduler drives broadcast ticks. Defaults to a TickerScheduler on Clock.
	Scheduler Scheduler
	// Files receives static transform records. Defaults to the OS filesystem.
	Files fsutil.FileSystem
	// Clock stamps lookups. Defaults to the wall clock.
	Clock timeutil.Clock

	Lookup          LookupOptions
	BroadcastPeriod time.Duration
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = timeutil.RealClock{}
	}
	if d.Scheduler == nil {
		d.Scheduler = TickerScheduler{Clock: d.Clock}
	}
	if d.Files == nil {
		d.Files = fsutil.OSFileSystem{}
	}
	if d.BroadcastPeriod <= 0 {
		d.BroadcastPeriod = DefaultBroadcastPeriod
	}
	d.Lookup = d.Lookup.withDefaults()
	return d
}

func (d Deps) resolver() resolver {
	return resolver{provider: d.Provider, clock: d.Clock, opts: d.Lookup}
}

func requireProvider(kind Kind, d Deps) error {
	if d.Provider == nil {
		return fmt.Errorf("%s: %w: provider", kind, ErrMissingDependency)
	}
	return nil
}
