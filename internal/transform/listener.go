package transform

import (
	"context"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// listener is the shared pull path of the listener variants. Poses only
// flow from the provider to the caller; push only checks readiness and store
// does nothing.
type listener struct {
	base
	resolve resolver
	// inverted queries (reference, frame) instead of (frame, reference).
	inverted bool
}

func (l *listener) init(kind Kind, frame string, d Deps, inverted bool) error {
	if err := requireProvider(kind, d); err != nil {
		return err
	}
	d = d.withDefaults()
	l.base.init(kind, frame, pose.Identity())
	l.resolve = d.resolver()
	l.inverted = inverted
	return nil
}

// PullTransform looks the pose up from the provider. It waits according to
// the lookup options; with unbounded attempts only ctx ends the wait.
func (l *listener) PullTransform(ctx context.Context) (pose.Pose6d, error) {
	ref, err := l.reference("pull")
	if err != nil {
		return pose.Identity(), err
	}
	target, source := l.frame, ref
	if l.inverted {
		target, source = ref, l.frame
	}
	p, err := l.resolve.lookup(ctx, target, source)
	if err != nil {
		opsf("pull %s: %v", l.frame, err)
		return pose.Identity(), err
	}
	l.setCurrent(p)
	return p, nil
}

// PushTransform is a no-op for listeners once the reference frame is set.
func (l *listener) PushTransform(context.Context, pose.Pose6d) error {
	if _, err := l.reference("push"); err != nil {
		return err
	}
	return nil
}

// Store is a no-op for listeners.
func (l *listener) Store(context.Context, string) error { return nil }

// SetReferenceFrame marks the listener ready. No background work starts.
func (l *listener) SetReferenceFrame(frame string) { l.state.set(frame) }

// Close is a no-op for listeners.
func (l *listener) Close() error { return nil }

// Listener pulls the pose of (frame, reference) from the provider.
type Listener struct {
	listener
}

// NewListener creates a Listener for frame.
func NewListener(frame string, d Deps) (*Listener, error) {
	l := &Listener{}
	if err := l.init(KindListener, frame, d, false); err != nil {
		return nil, err
	}
	return l, nil
}

// CameraListener pulls the pose of (reference, frame): camera optical frames
// are expressed from the reference into the camera.
type CameraListener struct {
	listener
}

// NewCameraListener creates a CameraListener for frame.
func NewCameraListener(frame string, d Deps) (*CameraListener, error) {
	l := &CameraListener{}
	if err := l.init(KindCameraListener, frame, d, true); err != nil {
		return nil, err
	}
	return l, nil
}

// CameraHousingListener behaves as CameraListener and carries the housing
// frame for configuration. It is not the read side of a
// CameraHousingBroadcast: after that broadcaster pushes P, this listener
// reads P.Inverse(), while a plain Listener on the optical frame reads P.
type CameraHousingListener struct {
	listener
	housing string
}

// NewCameraHousingListener creates a CameraHousingListener for the optical
// frame mounted in housing.
func NewCameraHousingListener(frame, housing string, d Deps) (*CameraHousingListener, error) {
	l := &CameraHousingListener{housing: housing}
	if err := l.init(KindCameraHousingListener, frame, d, true); err != nil {
		return nil, err
	}
	return l, nil
}

// HousingFrame returns the housing frame name.
func (l *CameraHousingListener) HousingFrame() string { return l.housing }
