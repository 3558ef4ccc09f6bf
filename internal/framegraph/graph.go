// Package framegraph is an in-process transform buffer. It records poses
// published between pairs of frames and answers lookups between any two
// connected frames by chaining the recorded edges.
package framegraph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/monitoring"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

// DefaultHistory is the number of samples kept per edge.
const DefaultHistory = 64

var (
	// ErrUnknownFrame is returned when a frame has never been published.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrNotConnected is returned when two known frames share no path.
	ErrNotConnected = errors.New("frames are not connected")
	// ErrNoSample is returned when a path exists but an edge on it has no
	// sample at or before the requested time.
	ErrNoSample = errors.New("no sample at requested time")
)

type edgeKey struct {
	parent, child string
}

type sample struct {
	at   time.Time
	pose pose.Pose6d
}

// edge holds the pose of child expressed in parent. Samples are ordered by
// time, oldest first.
type edge struct {
	static  bool
	samples []sample
}

// at returns the latest sample no later than t. A zero t selects the latest
// sample.
func (e *edge) at(t time.Time) (pose.Pose6d, bool) {
	if len(e.samples) == 0 {
		return pose.Identity(), false
	}
	if e.static || t.IsZero() {
		return e.samples[len(e.samples)-1].pose, true
	}
	i := sort.Search(len(e.samples), func(i int) bool { return e.samples[i].at.After(t) })
	if i == 0 {
		return pose.Identity(), false
	}
	return e.samples[i-1].pose, true
}

// Graph is a transform buffer safe for concurrent use.
type Graph struct {
	clock   timeutil.Clock
	history int

	mu        sync.RWMutex
	edges     map[edgeKey]*edge
	neighbors map[string]map[string]bool
	// changed is closed and replaced on every update.
	changed chan struct{}
}

// Option configures a Graph.
type Option func(*Graph)

// WithClock sets the clock used for wait timeouts.
func WithClock(c timeutil.Clock) Option {
	return func(g *Graph) { g.clock = c }
}

// WithHistory sets how many samples are kept per edge.
func WithHistory(n int) Option {
	return func(g *Graph) {
		if n > 0 {
			g.history = n
		}
	}
}

// New creates an empty Graph.
func New(opts ...Option) *Graph {
	g := &Graph{
		clock:     timeutil.RealClock{},
		history:   DefaultHistory,
		edges:     make(map[edgeKey]*edge),
		neighbors: make(map[string]map[string]bool),
		changed:   make(chan struct{}),
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Publish records the pose of source expressed in target at the given time.
func (g *Graph) Publish(_ context.Context, target, source string, p pose.Pose6d, at time.Time) error {
	return g.record(target, source, sample{at: at, pose: p}, false)
}

// SetStatic records a pose valid for all times.
func (g *Graph) SetStatic(target, source string, p pose.Pose6d) error {
	return g.record(target, source, sample{pose: p}, true)
}

func (g *Graph) record(parent, child string, s sample, static bool) error {
	if parent == "" || child == "" {
		return fmt.Errorf("publish: empty frame name")
	}
	if parent == child {
		return fmt.Errorf("publish: %s relative to itself", parent)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.edges[edgeKey{child, parent}]; ok {
		return fmt.Errorf("publish %s in %s: reverse edge already recorded", child, parent)
	}
	key := edgeKey{parent, child}
	e, ok := g.edges[key]
	if !ok {
		e = &edge{static: static}
		g.edges[key] = e
		g.link(parent, child)
		monitoring.Logf("framegraph: new edge %s -> %s (static=%t)", parent, child, static)
	}
	switch {
	case static || e.static:
		e.static = true
		e.samples = append(e.samples[:0], s)
	default:
		i := sort.Search(len(e.samples), func(i int) bool { return e.samples[i].at.After(s.at) })
		e.samples = append(e.samples, sample{})
		copy(e.samples[i+1:], e.samples[i:])
		e.samples[i] = s
		if len(e.samples) > g.history {
			e.samples = e.samples[len(e.samples)-g.history:]
		}
	}

	close(g.changed)
	g.changed = make(chan struct{})
	return nil
}

func (g *Graph) link(a, b string) {
	for _, p := range [][2]string{{a, b}, {b, a}} {
		n, ok := g.neighbors[p[0]]
		if !ok {
			n = make(map[string]bool)
			g.neighbors[p[0]] = n
		}
		n[p[1]] = true
	}
}

// Lookup returns the pose of source expressed in target at the given time,
// chaining edges along the shortest path and inverting edges walked from
// child to parent.
func (g *Graph) Lookup(_ context.Context, target, source string, at time.Time) (pose.Pose6d, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.lookupLocked(target, source, at)
}

func (g *Graph) lookupLocked(target, source string, at time.Time) (pose.Pose6d, error) {
	if target == source {
		return pose.Identity(), nil
	}
	for _, f := range []string{target, source} {
		if _, ok := g.neighbors[f]; !ok {
			return pose.Identity(), fmt.Errorf("%w: %s", ErrUnknownFrame, f)
		}
	}
	path := g.path(target, source)
	if path == nil {
		return pose.Identity(), fmt.Errorf("%w: %s and %s", ErrNotConnected, target, source)
	}

	result := pose.Identity()
	for i := 0; i+1 < len(path); i++ {
		a, b := path[i], path[i+1]
		var step pose.Pose6d
		if e, ok := g.edges[edgeKey{a, b}]; ok {
			p, ok := e.at(at)
			if !ok {
				return pose.Identity(), fmt.Errorf("%w: %s -> %s", ErrNoSample, a, b)
			}
			step = p
		} else {
			p, ok := g.edges[edgeKey{b, a}].at(at)
			if !ok {
				return pose.Identity(), fmt.Errorf("%w: %s -> %s", ErrNoSample, b, a)
			}
			step = p.Inverse()
		}
		result = result.Mul(step)
	}
	return result, nil
}

// path returns the frames from target to source inclusive, or nil.
func (g *Graph) path(target, source string) []string {
	prev := map[string]string{target: ""}
	queue := []string{target}
	for len(queue) > 0 {
		f := queue[0]
		queue = queue[1:]
		if f == source {
			break
		}
		next := make([]string, 0, len(g.neighbors[f]))
		for n := range g.neighbors[f] {
			next = append(next, n)
		}
		sort.Strings(next)
		for _, n := range next {
			if _, seen := prev[n]; !seen {
				prev[n] = f
				queue = append(queue, n)
			}
		}
	}
	if _, ok := prev[source]; !ok {
		return nil
	}
	var path []string
	for f := source; f != ""; f = prev[f] {
		path = append([]string{f}, path...)
	}
	return path
}

// CanTransform reports whether Lookup would succeed.
func (g *Graph) CanTransform(target, source string, at time.Time) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	_, err := g.lookupLocked(target, source, at)
	return err == nil
}

// WaitForTransform blocks until the pair can be looked up at the given time,
// the timeout elapses on the graph's clock, or ctx ends.
func (g *Graph) WaitForTransform(ctx context.Context, target, source string, at time.Time, timeout time.Duration) bool {
	deadline := g.clock.After(timeout)
	for {
		g.mu.RLock()
		_, err := g.lookupLocked(target, source, at)
		changed := g.changed
		g.mu.RUnlock()
		if err == nil {
			return true
		}
		select {
		case <-changed:
		case <-deadline:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// Frames returns every known frame, sorted.
func (g *Graph) Frames() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make([]string, 0, len(g.neighbors))
	for f := range g.neighbors {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}
