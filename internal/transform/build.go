package transform

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/extrinsic.cal/internal/config"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// Spec describes one interface to build.
type Spec struct {
	Kind           Kind
	TransformFrame string
	HousingFrame   string
	MountingFrame  string
	ParentFrame    string
	// InitialPose seeds broadcast variants.
	InitialPose pose.Pose6d
}

// Validate checks that the frames the kind needs are present.
func (s Spec) Validate() error {
	if _, err := ParseKind(string(s.Kind)); err != nil {
		return err
	}
	if s.TransformFrame == "" {
		return fmt.Errorf("%s: transform frame is required", s.Kind)
	}
	switch s.Kind {
	case KindCameraHousingListener, KindCameraHousingBroadcast:
		if s.HousingFrame == "" {
			return fmt.Errorf("%s %s: housing frame is required", s.Kind, s.TransformFrame)
		}
	case KindCameraHousingCal:
		if s.HousingFrame == "" || s.MountingFrame == "" {
			return fmt.Errorf("%s %s: housing and mounting frames are required", s.Kind, s.TransformFrame)
		}
	}
	return nil
}

// New builds the variant named by spec.Kind.
func New(ctx context.Context, spec Spec, d Deps) (Interface, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	switch spec.Kind {
	case KindListener:
		return built(NewListener(spec.TransformFrame, d))
	case KindCameraListener:
		return built(NewCameraListener(spec.TransformFrame, d))
	case KindCameraHousingListener:
		return built(NewCameraHousingListener(spec.TransformFrame, spec.HousingFrame, d))
	case KindBroadcast:
		return built(NewBroadcast(spec.TransformFrame, spec.InitialPose, d))
	case KindCameraBroadcast:
		return built(NewCameraBroadcast(spec.TransformFrame, spec.InitialPose, d))
	case KindCameraHousingBroadcast:
		return built(NewCameraHousingBroadcast(spec.TransformFrame, spec.HousingFrame, spec.InitialPose, d))
	case KindCameraHousingCal:
		return built(NewCameraHousingCal(ctx, spec.TransformFrame, spec.HousingFrame, spec.MountingFrame, d))
	case KindSimpleCal:
		return built(NewSimpleCal(ctx, spec.TransformFrame, spec.ParentFrame, d))
	}
	return nil, fmt.Errorf("unknown transform interface kind %q", spec.Kind)
}

// built drops the typed nil a failed constructor returns.
func built[T Interface](ti T, err error) (Interface, error) {
	if err != nil {
		return nil, err
	}
	return ti, nil
}

// SpecFromConfig converts a configuration entry into a Spec.
func SpecFromConfig(ic config.InterfaceConfig) (Spec, error) {
	kind, err := ParseKind(ic.Kind)
	if err != nil {
		return Spec{}, err
	}
	spec := Spec{
		Kind:           kind,
		TransformFrame: ic.TransformFrame,
		HousingFrame:   ic.HousingFrame,
		MountingFrame:  ic.MountingFrame,
		ParentFrame:    ic.ParentFrame,
		InitialPose:    pose.Identity(),
	}
	if ic.InitialPose != nil {
		spec.InitialPose = PoseFromConfig(*ic.InitialPose)
	}
	return spec, spec.Validate()
}

// PoseFromConfig converts a configured translation and Z-Y-X Euler angles
// into a pose.
func PoseFromConfig(p config.PoseConfig) pose.Pose6d {
	return pose.FromTranslationEuler(r3.Vec{X: p.X, Y: p.Y, Z: p.Z}, p.EZ, p.EY, p.EX)
}

// LookupOptionsFromConfig returns the lookup timing configured for the rig.
func LookupOptionsFromConfig(c *config.RigConfig) LookupOptions {
	return LookupOptions{
		Delay:       c.GetLookupDelay(),
		Wait:        c.GetLookupWait(),
		MaxAttempts: c.GetLookupMaxAttempts(),
	}
}

// Set is a group of interfaces sharing one reference frame, as a
// calibration driver holds them.
type Set struct {
	items []Interface
}

// NewSet builds every interface described by cfg. Interfaces built before a
// failure are closed.
func NewSet(ctx context.Context, cfg *config.RigConfig, d Deps) (*Set, error) {
	if d.Lookup == (LookupOptions{}) {
		d.Lookup = LookupOptionsFromConfig(cfg)
	}
	if d.BroadcastPeriod <= 0 {
		d.BroadcastPeriod = cfg.GetBroadcastPeriod()
	}
	s := &Set{}
	for _, ic := range cfg.Interfaces {
		spec, err := SpecFromConfig(ic)
		if err != nil {
			s.Close()
			return nil, err
		}
		ti, err := New(ctx, spec, d)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.items = append(s.items, ti)
	}
	return s, nil
}

// Interfaces returns the interfaces in configuration order.
func (s *Set) Interfaces() []Interface {
	return append([]Interface(nil), s.items...)
}

// Get returns the interface for a transform frame.
func (s *Set) Get(frame string) (Interface, bool) {
	for _, ti := range s.items {
		if ti.TransformFrame() == frame {
			return ti, true
		}
	}
	return nil, false
}

// SetReferenceFrame sets the reference frame on every interface.
func (s *Set) SetReferenceFrame(frame string) {
	for _, ti := range s.items {
		ti.SetReferenceFrame(frame)
	}
}

// Store stores every interface to path, returning the first error after
// attempting all of them.
func (s *Set) Store(ctx context.Context, path string) error {
	var first error
	for _, ti := range s.items {
		if err := ti.Store(ctx, path); err != nil && first == nil {
			first = fmt.Errorf("store %s: %w", ti.TransformFrame(), err)
		}
	}
	return first
}

// Close closes every interface.
func (s *Set) Close() error {
	for _, ti := range s.items {
		ti.Close()
	}
	return nil
}
