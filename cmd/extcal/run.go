package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"text/tabwriter"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/extrinsic.cal/internal/config"
	"github.com/banshee-data/extrinsic.cal/internal/framegraph"
	"github.com/banshee-data/extrinsic.cal/internal/jointstore"
	"github.com/banshee-data/extrinsic.cal/internal/monitoring"
	"github.com/banshee-data/extrinsic.cal/internal/pose"
	"github.com/banshee-data/extrinsic.cal/internal/transform"
)

type options struct {
	configPath  string
	dbPath      string
	outPath     string
	timeout     time.Duration
	debugListen string
}

// run loads the rig, pulls every interface once, prints the poses to w and
// stores the result.
func run(ctx context.Context, opts options, w io.Writer) error {
	cfg, err := config.LoadRigConfig(opts.configPath)
	if err != nil {
		return err
	}

	dbPath := opts.dbPath
	if dbPath == "" {
		dbPath = cfg.GetJointStorePath()
	}
	store, err := jointstore.Open(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Seed(ctx, cfg.Joints); err != nil {
		return fmt.Errorf("seed joints: %w", err)
	}

	graph, err := buildGraph(cfg)
	if err != nil {
		return err
	}

	if opts.debugListen != "" {
		shutdown := serveDebug(opts.debugListen, store)
		defer shutdown()
	}

	set, err := transform.NewSet(ctx, cfg, transform.Deps{
		Provider:    graph,
		Broadcaster: graph,
		Joints:      store,
	})
	if err != nil {
		return err
	}
	defer set.Close()

	ref := cfg.GetReferenceFrame()
	set.SetReferenceFrame(ref)
	monitoring.Logf("built %d interfaces against reference frame %s", len(set.Interfaces()), ref)

	failed := pullAll(ctx, set, opts.timeout, w)

	out := opts.outPath
	if out == "" {
		out = cfg.GetLaunchFilePath()
	}
	if out != "" {
		if err := set.Store(ctx, out); err != nil {
			return err
		}
		monitoring.Logf("stored interfaces to %s", out)
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d interfaces failed to pull", failed, len(set.Interfaces()))
	}
	return nil
}

// buildGraph loads the configured static transforms into a new frame graph.
func buildGraph(cfg *config.RigConfig) (*framegraph.Graph, error) {
	graph := framegraph.New()
	for _, st := range cfg.StaticTransforms {
		if err := graph.SetStatic(st.Parent, st.Child, transform.PoseFromConfig(st.Pose)); err != nil {
			return nil, fmt.Errorf("static transform %s -> %s: %w", st.Parent, st.Child, err)
		}
	}
	return graph, nil
}

// maxConcurrentPulls bounds how many interfaces wait on the provider at once.
const maxConcurrentPulls = 4

type pullResult struct {
	pose pose.Pose6d
	err  error
}

// pullAll pulls every interface with its own timeout and prints one row per
// interface in configuration order. It returns the number of failures.
func pullAll(ctx context.Context, set *transform.Set, timeout time.Duration, w io.Writer) int {
	items := set.Interfaces()
	results := make([]pullResult, len(items))

	var g errgroup.Group
	g.SetLimit(maxConcurrentPulls)
	for i, ti := range items {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			p, err := ti.PullTransform(pctx)
			results[i] = pullResult{pose: p, err: err}
			return nil
		})
	}
	g.Wait()

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FRAME\tKIND\tX\tY\tZ\tEZ\tEY\tEX")
	failed := 0
	for i, ti := range items {
		if err := results[i].err; err != nil {
			failed++
			reason := "error"
			if errors.Is(err, transform.ErrLookupTimeout) || errors.Is(err, transform.ErrLookupCancelled) {
				reason = "timeout"
			}
			monitoring.Logf("pull %s: %v", ti.TransformFrame(), err)
			fmt.Fprintf(tw, "%s\t%s\t%s\n", ti.TransformFrame(), ti.Kind(), reason)
			continue
		}
		t := results[i].pose.Translation()
		ez, ey, ex := results[i].pose.EulerZYX()
		fmt.Fprintf(tw, "%s\t%s\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\t%.4f\n",
			ti.TransformFrame(), ti.Kind(), t.X, t.Y, t.Z, ez, ey, ex)
	}
	tw.Flush()
	return failed
}

// serveDebug starts the debug HTTP server and returns a function that shuts
// it down.
func serveDebug(addr string, store *jointstore.Store) func() {
	mux := http.NewServeMux()
	store.AttachAdminRoutes(mux)
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			monitoring.Logf("debug server: %v", err)
		}
	}()
	monitoring.Logf("debug routes on http://%s/debug/", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			monitoring.Logf("debug server shutdown error: %v", err)
			server.Close()
		}
	}
}
