package transform

import (
	"context"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// Provider answers frame-pair queries against an external transform
// distribution system.
type Provider interface {
	// Lookup returns the pose for (target, source) at the given time. Any
	// error is reported to callers as ErrNotYetAvailable.
	Lookup(ctx context.Context, target, source string, at time.Time) (pose.Pose6d, error)

	// WaitForTransform blocks until (target, source) can be resolved at the
	// given time, the timeout elapses, or ctx ends. It reports whether the
	// transform is available.
	WaitForTransform(ctx context.Context, target, source string, at time.Time, timeout time.Duration) bool
}

// Broadcaster is the sink broadcast variants publish their pose to.
type Broadcaster interface {
	Publish(ctx context.Context, target, source string, p pose.Pose6d, at time.Time) error
}

// JointStore keeps named scalar joint values outside the process. Values are
// returned in the order the names were requested.
type JointStore interface {
	Get(ctx context.Context, names []string) ([]float64, error)
	Set(ctx context.Context, names []string, values []float64) error
	Persist(ctx context.Context) error
}

// jointSuffixes is the fixed order of the six calibration joints. The values
// stored under them are x, y, z, ez, ey, ex.
var jointSuffixes = [6]string{"_x", "_y", "_z", "_pitch", "_yaw", "_roll"}

// JointNames returns the six joint names derived from frame.
func JointNames(frame string) []string {
	names := make([]string, len(jointSuffixes))
	for i, s := range jointSuffixes {
		names[i] = frame + s
	}
	return names
}
