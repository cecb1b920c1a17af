package internal

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hbomb79/mediatab/internal/api/batches"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

type proberFunc func(ctx context.Context, path string) (*probe.TrackSet, error)

func (f proberFunc) Probe(ctx context.Context, path string) (*probe.TrackSet, error) {
	return f(ctx, path)
}

func newTestApp(t *testing.T, dir string) *mediatabImpl {
	config := Config{
		Profile:               "framerate",
		InspectTimeoutSeconds: 5,
		LogLevel:              "info",
	}
	config.Output.Path = filepath.Join(dir, "results.csv")
	config.Output.Encoding = "utf-8"
	config.Probe.Backend = probe.MediaInfoBackend
	config.Watch.ForceSyncSeconds = 1
	config.Api.HostAddr = "127.0.0.1:0"

	app, err := New(config)
	require.NoError(t, err)

	app.prober = proberFunc(func(_ context.Context, path string) (*probe.TrackSet, error) {
		return &probe.TrackSet{Path: path, Tracks: []probe.Track{
			{Type: probe.GeneralTrack, Format: "MXF"},
			{Type: probe.VideoTrack, Format: "AVC", FrameRate: "25.000"},
		}}, nil
	})

	return app
}

func TestNew_RejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Profile: "bitrate", InspectTimeoutSeconds: 1, LogLevel: "info"})
	assert.Error(t, err)
}

func TestScan(t *testing.T) {
	t.Parallel()

	library := fs.NewDir(t, "media",
		fs.WithFile("a.mxf", "video"),
		fs.WithDir("nested", fs.WithFile("b.mxf", "video")),
	)
	out := t.TempDir()
	app := newTestApp(t, out)

	summary, err := app.Scan(context.Background(), []string{library.Path(), filepath.Join(library.Path(), "missing.mxf")})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Considered)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)

	data, err := os.ReadFile(filepath.Join(out, "results.csv"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(data)), "\n"), 3)

	report, err := os.ReadFile(filepath.Join(out, "skipped_files.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(report), "missing.mxf")

	require.Len(t, app.GetAllBatches(), 1)
	assert.Equal(t, job.COMPLETE, app.GetAllBatches()[0].State())
}

func TestWatch_FinalizesOnCancel(t *testing.T) {
	t.Parallel()

	library := fs.NewDir(t, "media", fs.WithFile("a.mxf", "video"))
	require.NoError(t, os.Chtimes(library.Join("a.mxf"), time.Now().Add(-time.Hour), time.Now().Add(-time.Hour)))
	out := t.TempDir()
	app := newTestApp(t, out)

	ctx, cancel := context.WithCancel(context.Background())
	type result struct {
		succeeded int
		err       error
	}
	done := make(chan result, 1)
	go func() {
		summary, err := app.Watch(ctx, library.Path())
		done <- result{summary.Succeeded, err}
	}()

	require.EventuallyWithT(t, func(c *assert.CollectT) {
		all := app.GetAllBatches()
		if assert.Len(c, all, 1) {
			assert.Equal(c, 1, all[0].Batch().Completed())
		}
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, 1, res.succeeded)
	case <-time.After(5 * time.Second):
		t.Fatal("watch did not return after cancellation")
	}
}

func TestServe_SubmitBatch(t *testing.T) {
	t.Parallel()

	library := fs.NewDir(t, "media", fs.WithFile("a.mxf", "video"))
	app := newTestApp(t, t.TempDir())

	_, err := app.SubmitBatch([]string{library.Path()}, media.FrameRateProfile, "")
	assert.ErrorIs(t, err, ErrNotServing)
	assert.ErrorIs(t, err, batches.ErrServiceUnavailable)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- app.Serve(ctx) }()

	var submitted *job.Job
	require.EventuallyWithT(t, func(c *assert.CollectT) {
		j, err := app.SubmitBatch([]string{library.Path()}, media.FrameRateProfile, filepath.Join(t.TempDir(), "api.csv"))
		if assert.NoError(c, err) {
			submitted = j
		}
	}, 5*time.Second, 20*time.Millisecond)

	require.EventuallyWithT(t, func(c *assert.CollectT) {
		assert.Equal(c, job.COMPLETE, app.GetBatch(submitted.ID()).State())
	}, 5*time.Second, 20*time.Millisecond)

	_, err = app.GetBatchRows(submitted.ID())
	assert.ErrorIs(t, err, batches.ErrRowsUnavailable)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancellation")
	}
}

func TestServe_CancelFinalizesRunningBatch(t *testing.T) {
	t.Parallel()

	library := t.TempDir()
	for i := range 300 {
		require.NoError(t, os.WriteFile(filepath.Join(library, fmt.Sprintf("%03d.mxf", i)), []byte("video"), 0o644))
	}

	out := t.TempDir()
	app := newTestApp(t, out)
	app.prober = proberFunc(func(ctx context.Context, _ string) (*probe.TrackSet, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- app.Serve(ctx) }()

	var submitted *job.Job
	require.EventuallyWithT(t, func(c *assert.CollectT) {
		j, err := app.SubmitBatch([]string{library}, media.FrameRateProfile, filepath.Join(out, "api.csv"))
		if assert.NoError(c, err) {
			submitted = j
		}
	}, 5*time.Second, 20*time.Millisecond)

	require.EventuallyWithT(t, func(c *assert.CollectT) {
		assert.Equal(c, job.RUNNING, app.GetBatch(submitted.ID()).State())
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not return after cancellation with a running batch")
	}

	assert.Equal(t, job.CANCELLED, submitted.State())
	report, err := os.ReadFile(filepath.Join(out, "skipped_files.txt"))
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(string(report)), "\n"), 300)
}
