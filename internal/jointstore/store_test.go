package jointstore

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/extrinsic.cal/internal/monitoring"
	"github.com/banshee-data/extrinsic.cal/internal/transform"
)

var _ transform.JointStore = (*Store)(nil)

func init() {
	monitoring.SetWriter(io.Discard, "")
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "joints.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpenMigrates(t *testing.T) {
	s := openTestStore(t)
	version, dirty, err := s.MigrateVersion()
	require.NoError(t, err)
	assert.Equal(t, uint(2), version)
	assert.False(t, dirty)

	require.NoError(t, s.MigrateUp(), "second migration run is a no-op")
}

func TestReopenKeepsValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "joints.db")
	ctx := context.Background()

	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, []string{"a"}, []float64{1.5}))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1.5}, got)
}

func TestSetAndGetPreserveOrder(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	names := transform.JointNames("camera")
	values := []float64{1, 2, 3, 0.1, 0.2, 0.3}

	require.NoError(t, s.Set(ctx, names, values))
	got, err := s.Get(ctx, names)
	require.NoError(t, err)
	assert.Equal(t, values, got)

	reversed := []string{names[5], names[0], names[3]}
	got, err = s.Get(ctx, reversed)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.3, 1, 0.1}, got)

	require.NoError(t, s.Set(ctx, []string{"camera_x"}, []float64{-4}))
	got, err = s.Get(ctx, names[:1])
	require.NoError(t, err)
	assert.Equal(t, []float64{-4}, got)
}

func TestGetUnknownJoint(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, []string{"a"}, []float64{1}))

	_, err := s.Get(ctx, []string{"a", "b"})
	assert.ErrorIs(t, err, ErrUnknownJoint)
	assert.Contains(t, err.Error(), "b")

	got, err := s.Get(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSetRejects(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	assert.Error(t, s.Set(ctx, []string{"a", "b"}, []float64{1}))
	assert.Error(t, s.Set(ctx, []string{"a", ""}, []float64{1, 2}))

	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Empty(t, all, "failed sets write nothing")
}

func TestSeedKeepsExisting(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, []string{"a"}, []float64{7}))

	require.NoError(t, s.Seed(ctx, map[string]float64{"a": 1, "b": 2}))
	all, err := s.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{"a": 7, "b": 2}, all)
}

func TestPersistSnapshots(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	require.NoError(t, s.Set(ctx, []string{"a", "b"}, []float64{1, 2}))
	require.NoError(t, s.Persist(ctx))
	clock = clock.Add(time.Minute)
	require.NoError(t, s.Set(ctx, []string{"a"}, []float64{3}))
	second, err := s.Snapshot(ctx)
	require.NoError(t, err)

	snaps, err := s.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, second.SnapshotID, snaps[0].SnapshotID)
	assert.NotEqual(t, snaps[0].SnapshotID, snaps[1].SnapshotID)

	want := []map[string]float64{{"a": 3, "b": 2}, {"a": 1, "b": 2}}
	got := []map[string]float64{snaps[0].Values, snaps[1].Values}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot values mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, clock.UnixNano(), snaps[0].CreatedAt)
}

func TestAttachAdminRoutes(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Set(ctx, []string{"a"}, []float64{0.5}))

	mux := http.NewServeMux()
	s.AttachAdminRoutes(mux)

	for _, path := range []string{"/debug/joints", "/debug/tailsql/"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			// Debug routes may refuse non-local callers but must be registered.
			assert.NotEqual(t, http.StatusNotFound, w.Code)
			if path == "/debug/joints" && w.Code == http.StatusOK {
				assert.JSONEq(t, `{"a": 0.5}`, w.Body.String())
				assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			}
		})
	}
}
