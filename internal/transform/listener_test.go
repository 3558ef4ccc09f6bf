package transform

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/timeutil"
)

func listenerDeps(p Provider) Deps {
	return Deps{Provider: p, Clock: timeutil.NewMockClock(epoch)}
}

// newListeners builds one of each listener variant for "cam" over p.
func newListeners(t *testing.T, p Provider) []Interface {
	t.Helper()
	d := listenerDeps(p)
	l, err := NewListener("cam", d)
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	cl, err := NewCameraListener("cam", d)
	if err != nil {
		t.Fatalf("NewCameraListener: %v", err)
	}
	hl, err := NewCameraHousingListener("cam", "housing", d)
	if err != nil {
		t.Fatalf("NewCameraHousingListener: %v", err)
	}
	return []Interface{l, cl, hl}
}

func TestListenersNotReady(t *testing.T) {
	p := newSpyProvider()
	p.set("cam", "world", pose.FromTranslation(1, 0, 0))
	p.set("world", "cam", pose.FromTranslation(-1, 0, 0))

	for _, ti := range newListeners(t, p) {
		got, err := ti.PullTransform(context.Background())
		if !errors.Is(err, ErrNotReady) {
			t.Errorf("%s: PullTransform err = %v, want ErrNotReady", ti.Kind(), err)
		}
		if !pose.ApproxEqual(pose.Identity(), got, 0) {
			t.Errorf("%s: PullTransform = %v, want identity", ti.Kind(), got)
		}
		if ti.Ready() {
			t.Errorf("%s: Ready() = true before SetReferenceFrame", ti.Kind())
		}
	}
	if n := p.calls(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestListenersPushRequiresReference(t *testing.T) {
	p := newSpyProvider()
	ctx := context.Background()
	push := pose.FromTranslation(1, 0, 0)

	for _, ti := range newListeners(t, p) {
		if err := ti.PushTransform(ctx, push); !errors.Is(err, ErrNotReady) {
			t.Errorf("%s: PushTransform before SetReferenceFrame err = %v, want ErrNotReady", ti.Kind(), err)
		}
		ti.SetReferenceFrame("world")
		if err := ti.PushTransform(ctx, push); err != nil {
			t.Errorf("%s: PushTransform after SetReferenceFrame: %v", ti.Kind(), err)
		}
		if got := ti.Current(); !pose.ApproxEqual(pose.Identity(), got, 0) {
			t.Errorf("%s: push changed current pose to %v", ti.Kind(), got)
		}
	}
	if n := p.calls(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestListenerLookupDirection(t *testing.T) {
	cam2world := pose.FromTranslation(1, 2, 3)
	world2cam := cam2world.Inverse()

	tests := []struct {
		name string
		make func(Deps) (Interface, error)
		pair [2]string
		want pose.Pose6d
	}{
		{"listener", func(d Deps) (Interface, error) { return built(NewListener("cam", d)) },
			[2]string{"cam", "world"}, cam2world},
		{"camera listener", func(d Deps) (Interface, error) { return built(NewCameraListener("cam", d)) },
			[2]string{"world", "cam"}, world2cam},
		{"camera housing listener", func(d Deps) (Interface, error) {
			return built(NewCameraHousingListener("cam", "housing", d))
		}, [2]string{"world", "cam"}, world2cam},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newSpyProvider()
			p.set("cam", "world", cam2world)
			p.set("world", "cam", world2cam)
			ti, err := tt.make(listenerDeps(p))
			if err != nil {
				t.Fatalf("build: %v", err)
			}

			ti.SetReferenceFrame("world")
			got, err := ti.PullTransform(context.Background())
			if err != nil {
				t.Fatalf("PullTransform: %v", err)
			}
			if !pose.ApproxEqual(tt.want, got, 0) {
				t.Errorf("PullTransform = %v, want %v", got, tt.want)
			}
			if !pose.ApproxEqual(tt.want, ti.Current(), 0) {
				t.Errorf("Current = %v, want %v", ti.Current(), tt.want)
			}
			if diff := cmp.Diff([][2]string{tt.pair}, p.lookedUp()); diff != "" {
				t.Errorf("lookups mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListenerNoOps(t *testing.T) {
	p := newSpyProvider()
	l, err := NewListener("cam", listenerDeps(p))
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	ctx := context.Background()

	if err := l.PushTransform(ctx, pose.FromTranslation(1, 0, 0)); !errors.Is(err, ErrNotReady) {
		t.Errorf("PushTransform before SetReferenceFrame err = %v, want ErrNotReady", err)
	}
	if err := l.Store(ctx, "/nonexistent/dir/file"); err != nil {
		t.Errorf("Store: %v", err)
	}
	l.SetReferenceFrame("world")
	if err := l.PushTransform(ctx, pose.FromTranslation(1, 0, 0)); err != nil {
		t.Errorf("PushTransform: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := l.Close(); err != nil {
			t.Errorf("Close #%d: %v", i+1, err)
		}
	}
	if !pose.ApproxEqual(pose.Identity(), l.Current(), 0) {
		t.Errorf("Current = %v, want identity", l.Current())
	}
	if n := p.calls(); n != 0 {
		t.Errorf("provider calls = %d, want 0", n)
	}
}

func TestListenerReferenceFrameRename(t *testing.T) {
	p := newSpyProvider()
	p.set("cam", "odom", pose.FromTranslation(4, 0, 0))
	l, err := NewListener("cam", listenerDeps(p))
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}

	l.SetReferenceFrame("world")
	l.SetReferenceFrame("odom")
	if ref, ok := l.ReferenceFrame(); !ok || ref != "odom" {
		t.Errorf("ReferenceFrame() = %q, %v; want \"odom\", true", ref, ok)
	}

	got, err := l.PullTransform(context.Background())
	if err != nil {
		t.Fatalf("PullTransform: %v", err)
	}
	if want := pose.FromTranslation(4, 0, 0); !pose.ApproxEqual(want, got, 0) {
		t.Errorf("PullTransform = %v, want %v", got, want)
	}
}

func TestListenerPullFailure(t *testing.T) {
	p := newSpyProvider()
	l, err := NewListener("cam", Deps{
		Provider: p,
		Clock:    timeutil.NewMockClock(epoch),
		Lookup:   LookupOptions{MaxAttempts: 2},
	})
	if err != nil {
		t.Fatalf("NewListener: %v", err)
	}
	l.SetReferenceFrame("world")

	if _, err := l.PullTransform(context.Background()); !errors.Is(err, ErrLookupTimeout) {
		t.Errorf("PullTransform err = %v, want ErrLookupTimeout", err)
	}
	if !pose.ApproxEqual(pose.Identity(), l.Current(), 0) {
		t.Errorf("Current = %v, want identity after failed pull", l.Current())
	}
}

func TestListenerRequiresProvider(t *testing.T) {
	if _, err := NewListener("cam", Deps{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("NewListener err = %v, want ErrMissingDependency", err)
	}
	if _, err := NewCameraHousingListener("cam", "housing", Deps{}); !errors.Is(err, ErrMissingDependency) {
		t.Errorf("NewCameraHousingListener err = %v, want ErrMissingDependency", err)
	}
}

func TestCameraHousingListenerHousingFrame(t *testing.T) {
	l, err := NewCameraHousingListener("cam", "housing", listenerDeps(newSpyProvider()))
	if err != nil {
		t.Fatalf("NewCameraHousingListener: %v", err)
	}
	if got := l.HousingFrame(); got != "housing" {
		t.Errorf("HousingFrame() = %q, want \"housing\"", got)
	}
	if got := l.Kind(); got != KindCameraHousingListener {
		t.Errorf("Kind() = %q, want %q", got, KindCameraHousingListener)
	}
}
