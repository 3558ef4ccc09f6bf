package transform

import (
	"sync"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

// readiness records whether a reference frame has been assigned. It moves
// from unset to set once and stays set; later assignments only rename the
// reference frame.
type readiness struct {
	mu    sync.RWMutex
	ref   string
	ready bool
}

// set assigns the reference frame and reports whether this call made the
// instance ready.
func (r *readiness) set(frame string) (first bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	first = !r.ready
	r.ref = frame
	r.ready = true
	return first
}

func (r *readiness) get() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ref, r.ready
}

// base carries the state every variant shares: its own frame, readiness and
// the last pose pulled or pushed.
type base struct {
	kind  Kind
	frame string
	state readiness

	mu      sync.RWMutex
	current pose.Pose6d
}

func (b *base) init(kind Kind, frame string, initial pose.Pose6d) {
	b.kind = kind
	b.frame = frame
	b.current = initial
}

// Kind reports which variant this is.
func (b *base) Kind() Kind { return b.kind }

// TransformFrame returns the frame this interface describes.
func (b *base) TransformFrame() string { return b.frame }

// ReferenceFrame returns the reference frame and whether it has been set.
func (b *base) ReferenceFrame() (string, bool) { return b.state.get() }

// Ready reports whether SetReferenceFrame has been called.
func (b *base) Ready() bool {
	_, ok := b.state.get()
	return ok
}

// Current returns the last pose pulled or pushed.
func (b *base) Current() pose.Pose6d {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.current
}

func (b *base) setCurrent(p pose.Pose6d) {
	b.mu.Lock()
	b.current = p
	b.mu.Unlock()
}

// reference returns the reference frame, or ErrNotReady for op.
func (b *base) reference(op string) (string, error) {
	ref, ok := b.state.get()
	if !ok {
		opsf("%s %s: trying to use interface without setting reference frame", op, b.frame)
		return "", ErrNotReady
	}
	return ref, nil
}
