package transform

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// jointPose reads and writes a six-value pose held in a JointStore under the
// names derived from one frame.
type jointPose struct {
	store JointStore
	names []string

	mu    sync.Mutex
	cache []float64
}

func newJointPose(ctx context.Context, store JointStore, frame string) *jointPose {
	j := &jointPose{store: store, names: JointNames(frame)}
	// A failed warm-up is reported but does not block construction.
	if _, err := j.read(ctx); err != nil {
		opsf("initial joint get for %s: %v", frame, err)
	}
	return j
}

// Names returns a copy of the joint names.
func (j *jointPose) Names() []string {
	return append([]string(nil), j.names...)
}

// Values returns the last values read from or written to the store.
func (j *jointPose) Values() []float64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]float64(nil), j.cache...)
}

// read fetches the joint values and builds the pose they encode. The cache
// is left untouched on failure.
func (j *jointPose) read(ctx context.Context) (pose.Pose6d, error) {
	values, err := j.store.Get(ctx, j.names)
	if err != nil {
		return pose.Identity(), fmt.Errorf("%w: get joints: %w", ErrExternalService, err)
	}
	if len(values) != len(j.names) {
		return pose.Identity(), fmt.Errorf("%w: get joints: expected %d values, got %d",
			ErrExternalService, len(j.names), len(values))
	}
	j.mu.Lock()
	j.cache = append(j.cache[:0], values...)
	j.mu.Unlock()
	return pose.FromTranslationEuler(r3.Vec{X: values[0], Y: values[1], Z: values[2]},
		values[3], values[4], values[5]), nil
}

// write decomposes p into x, y, z, ez, ey, ex and sets all six joints in
// one call.
func (j *jointPose) write(ctx context.Context, p pose.Pose6d) error {
	t := p.Translation()
	ez, ey, ex := p.EulerZYX()
	values := []float64{t.X, t.Y, t.Z, ez, ey, ex}
	if err := j.store.Set(ctx, j.names, values); err != nil {
		return fmt.Errorf("%w: set joints: %w", ErrExternalService, err)
	}
	j.mu.Lock()
	j.cache = values
	j.mu.Unlock()
	return nil
}

func (j *jointPose) persist(ctx context.Context) error {
	if err := j.store.Persist(ctx); err != nil {
		return fmt.Errorf("%w: persist joints: %w", ErrExternalService, err)
	}
	return nil
}

func requireJoints(kind Kind, d Deps) error {
	if d.Joints == nil {
		return fmt.Errorf("%s: %w: joint store", kind, ErrMissingDependency)
	}
	return nil
}

// SimpleCal treats the six joint values of its frame as the pose itself.
type SimpleCal struct {
	base
	parent string
	joints *jointPose
}

// NewSimpleCal creates a SimpleCal for frame. parent names the frame the
// joints hang from in the robot description. ctx bounds the initial joint
// read.
func NewSimpleCal(ctx context.Context, frame, parent string, d Deps) (*SimpleCal, error) {
	if err := requireJoints(KindSimpleCal, d); err != nil {
		return nil, err
	}
	c := &SimpleCal{parent: parent}
	c.base.init(KindSimpleCal, frame, pose.Identity())
	c.joints = newJointPose(ctx, d.Joints, frame)
	return c, nil
}

// ParentFrame returns the parent frame name.
func (c *SimpleCal) ParentFrame() string { return c.parent }

// JointNames returns the joint names this interface reads and writes.
func (c *SimpleCal) JointNames() []string { return c.joints.Names() }

// JointValues returns the cached joint values.
func (c *SimpleCal) JointValues() []float64 { return c.joints.Values() }

// PullTransform reads the joints and returns the pose they encode.
func (c *SimpleCal) PullTransform(ctx context.Context) (pose.Pose6d, error) {
	if _, err := c.reference("pull"); err != nil {
		return pose.Identity(), err
	}
	p, err := c.joints.read(ctx)
	if err != nil {
		opsf("pull %s: %v", c.frame, err)
		return pose.Identity(), err
	}
	c.setCurrent(p)
	return p, nil
}

// PushTransform writes p to the joints.
func (c *SimpleCal) PushTransform(ctx context.Context, p pose.Pose6d) error {
	if _, err := c.reference("push"); err != nil {
		return err
	}
	if err := c.joints.write(ctx, p); err != nil {
		opsf("push %s: %v", c.frame, err)
		return err
	}
	c.setCurrent(p)
	return nil
}

// Store asks the joint store to persist its values. path is not used.
func (c *SimpleCal) Store(ctx context.Context, path string) error {
	if err := c.joints.persist(ctx); err != nil {
		opsf("store %s: %v", c.frame, err)
		return err
	}
	return nil
}

// SetReferenceFrame marks the interface ready.
func (c *SimpleCal) SetReferenceFrame(frame string) { c.state.set(frame) }

// Close is a no-op.
func (c *SimpleCal) Close() error { return nil }

// CameraHousingCal computes a camera's optical-to-reference pose through a
// calibrated housing on a fixed mount:
//
//	optical2ref = optical2housing ∘ housing2mount ∘ mount2ref
//
// optical2housing and mount2ref come from the provider; mount2housing is
// the unknown held in the joints named after the housing frame.
type CameraHousingCal struct {
	base
	housing  string
	mounting string
	resolve  resolver
	joints   *jointPose
}

// NewCameraHousingCal creates a CameraHousingCal for the optical frame in
// housing, which is mounted on mounting. ctx bounds the initial joint read.
func NewCameraHousingCal(ctx context.Context, frame, housing, mounting string, d Deps) (*CameraHousingCal, error) {
	if err := requireProvider(KindCameraHousingCal, d); err != nil {
		return nil, err
	}
	if err := requireJoints(KindCameraHousingCal, d); err != nil {
		return nil, err
	}
	d = d.withDefaults()
	c := &CameraHousingCal{housing: housing, mounting: mounting, resolve: d.resolver()}
	c.base.init(KindCameraHousingCal, frame, pose.Identity())
	c.joints = newJointPose(ctx, d.Joints, housing)
	return c, nil
}

// HousingFrame returns the housing frame name.
func (c *CameraHousingCal) HousingFrame() string { return c.housing }

// MountingFrame returns the mounting frame name.
func (c *CameraHousingCal) MountingFrame() string { return c.mounting }

// JointNames returns the joint names this interface reads and writes.
func (c *CameraHousingCal) JointNames() []string { return c.joints.Names() }

// JointValues returns the cached joint values.
func (c *CameraHousingCal) JointValues() []float64 { return c.joints.Values() }

// chain fetches the two provider legs of the housing chain.
func (c *CameraHousingCal) chain(ctx context.Context, ref string) (optical2housing, mount2ref pose.Pose6d, err error) {
	optical2housing, err = c.resolve.lookup(ctx, c.frame, c.housing)
	if err != nil {
		return pose.Identity(), pose.Identity(), err
	}
	mount2ref, err = c.resolve.lookup(ctx, c.mounting, ref)
	if err != nil {
		return pose.Identity(), pose.Identity(), err
	}
	return optical2housing, mount2ref, nil
}

// PullTransform returns optical2ref built from the provider legs and the
// calibrated mount-to-housing joints.
func (c *CameraHousingCal) PullTransform(ctx context.Context) (pose.Pose6d, error) {
	ref, err := c.reference("pull")
	if err != nil {
		return pose.Identity(), err
	}
	optical2housing, mount2ref, err := c.chain(ctx, ref)
	if err != nil {
		opsf("pull %s: %v", c.frame, err)
		return pose.Identity(), err
	}
	mount2housing, err := c.joints.read(ctx)
	if err != nil {
		opsf("pull %s: %v", c.frame, err)
		return pose.Identity(), err
	}
	p := pose.Compose(optical2housing, mount2housing.Inverse(), mount2ref)
	c.setCurrent(p)
	return p, nil
}

// PushTransform solves for the mount-to-housing joints that make
// PullTransform return p: mount2housing = mount2ref ∘ p⁻¹ ∘ optical2housing.
func (c *CameraHousingCal) PushTransform(ctx context.Context, p pose.Pose6d) error {
	ref, err := c.reference("push")
	if err != nil {
		return err
	}
	optical2housing, mount2ref, err := c.chain(ctx, ref)
	if err != nil {
		opsf("push %s: %v", c.frame, err)
		return err
	}
	mount2housing := pose.Compose(mount2ref, p.Inverse(), optical2housing)
	if err := c.joints.write(ctx, mount2housing); err != nil {
		opsf("push %s: %v", c.frame, err)
		return err
	}
	c.setCurrent(p)
	return nil
}

// IntermediateFrame returns the provider pose for (mounting, reference).
func (c *CameraHousingCal) IntermediateFrame(ctx context.Context) (pose.Pose6d, error) {
	ref, err := c.reference("intermediate frame")
	if err != nil {
		return pose.Identity(), err
	}
	return c.resolve.lookup(ctx, c.mounting, ref)
}

// Store asks the joint store to persist its values. path is not used.
func (c *CameraHousingCal) Store(ctx context.Context, path string) error {
	if err := c.joints.persist(ctx); err != nil {
		opsf("store %s: %v", c.frame, err)
		return err
	}
	return nil
}

// SetReferenceFrame marks the interface ready.
func (c *CameraHousingCal) SetReferenceFrame(frame string) { c.state.set(frame) }

// Close is a no-op.
func (c *CameraHousingCal) Close() error { return nil }

var (
	_ Interface = (*Listener)(nil)
	_ Interface = (*CameraListener)(nil)
	_ Interface = (*CameraHousingListener)(nil)
	_ Interface = (*Broadcast)(nil)
	_ Interface = (*CameraBroadcast)(nil)
	_ Interface = (*CameraHousingBroadcast)(nil)
	_ Interface = (*SimpleCal)(nil)
	_ Chained   = (*CameraHousingCal)(nil)
)
