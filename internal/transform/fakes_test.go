package transform

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
)

func init() {
	SetLogWriters(io.Discard, nil)
}

type frameQuery struct {
	target, source string
	at             time.Time
}

// spyProvider answers lookups from a fixed table and records every call.
type spyProvider struct {
	mu          sync.Mutex
	poses       map[[2]string]pose.Pose6d
	unavailable int // WaitForTransform calls that report false before the table is consulted
	waits       []frameQuery
	lookups     []frameQuery
}

func newSpyProvider() *spyProvider {
	return &spyProvider{poses: make(map[[2]string]pose.Pose6d)}
}

func (p *spyProvider) set(target, source string, v pose.Pose6d) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.poses[[2]string{target, source}] = v
}

func (p *spyProvider) WaitForTransform(_ context.Context, target, source string, at time.Time, _ time.Duration) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.waits = append(p.waits, frameQuery{target, source, at})
	if p.unavailable > 0 {
		p.unavailable--
		return false
	}
	_, ok := p.poses[[2]string{target, source}]
	return ok
}

func (p *spyProvider) Lookup(_ context.Context, target, source string, at time.Time) (pose.Pose6d, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lookups = append(p.lookups, frameQuery{target, source, at})
	v, ok := p.poses[[2]string{target, source}]
	if !ok {
		return pose.Identity(), ErrNotYetAvailable
	}
	return v, nil
}

func (p *spyProvider) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.waits) + len(p.lookups)
}

func (p *spyProvider) lookedUp() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][2]string, len(p.lookups))
	for i, q := range p.lookups {
		out[i] = [2]string{q.target, q.source}
	}
	return out
}

type publishCall struct {
	target, source string
	pose           pose.Pose6d
	at             time.Time
}

// spyBroadcaster records publications.
type spyBroadcaster struct {
	mu    sync.Mutex
	calls []publishCall
	err   error
}

func (b *spyBroadcaster) Publish(_ context.Context, target, source string, p pose.Pose6d, at time.Time) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.calls = append(b.calls, publishCall{target, source, p, at})
	return nil
}

func (b *spyBroadcaster) published() []publishCall {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]publishCall(nil), b.calls...)
}

type setCall struct {
	names  []string
	values []float64
}

// spyJoints is an in-memory joint store that records calls and can fail on
// demand.
type spyJoints struct {
	mu       sync.Mutex
	values   map[string]float64
	gets     [][]string
	sets     []setCall
	persists int

	getErr, setErr, persistErr error
}

var errJointService = errors.New("joint service unavailable")

func newSpyJoints(values map[string]float64) *spyJoints {
	if values == nil {
		values = make(map[string]float64)
	}
	return &spyJoints{values: values}
}

func (j *spyJoints) Get(_ context.Context, names []string) ([]float64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.gets = append(j.gets, append([]string(nil), names...))
	if j.getErr != nil {
		return nil, j.getErr
	}
	out := make([]float64, len(names))
	for i, n := range names {
		out[i] = j.values[n]
	}
	return out, nil
}

func (j *spyJoints) Set(_ context.Context, names []string, values []float64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sets = append(j.sets, setCall{append([]string(nil), names...), append([]float64(nil), values...)})
	if j.setErr != nil {
		return j.setErr
	}
	for i, n := range names {
		j.values[n] = values[i]
	}
	return nil
}

func (j *spyJoints) Persist(context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.persists++
	return j.persistErr
}

func (j *spyJoints) calls() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.gets) + len(j.sets) + j.persists
}

// manualScheduler captures scheduled ticks so tests can run them directly.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []*manualTask
}

type manualTask struct {
	period  time.Duration
	tick    func(context.Context, time.Time)
	ctx     context.Context
	cancel  context.CancelFunc
	stopped int
}

func (s *manualScheduler) Schedule(period time.Duration, tick func(context.Context, time.Time)) Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := context.WithCancel(context.Background())
	t := &manualTask{period: period, tick: tick, ctx: ctx, cancel: cancel}
	s.tasks = append(s.tasks, t)
	return t
}

func (t *manualTask) Stop() {
	t.stopped++
	t.cancel()
}

func (s *manualScheduler) scheduled() []*manualTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*manualTask(nil), s.tasks...)
}

// fire runs the only scheduled task once.
func (s *manualScheduler) fire(now time.Time) {
	tasks := s.scheduled()
	if len(tasks) != 1 {
		panic("fire: expected exactly one scheduled task")
	}
	tasks[0].tick(tasks[0].ctx, now)
}
