//go:build integration

package integration_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hbomb79/mediatab/internal/database"
	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/hbomb79/mediatab/internal/job"
	"github.com/hbomb79/mediatab/internal/media"
	"github.com/hbomb79/mediatab/internal/probe"
	"github.com/hbomb79/mediatab/internal/sink"
	"github.com/hbomb79/mediatab/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proberFunc func(ctx context.Context, path string) (*probe.TrackSet, error)

func (f proberFunc) Probe(ctx context.Context, path string) (*probe.TrackSet, error) {
	return f(ctx, path)
}

func TestMain(m *testing.M) {
	code := m.Run()
	helpers.TeardownDatabases()
	os.Exit(code)
}

func connect(t *testing.T) database.Manager {
	db := database.New()
	require.NoError(t, db.Connect(helpers.ProvisionDatabase(t)))
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// TestMigrations_AreIdempotent ensures that re-running the migrations against
// an already migrated database is a no-op.
func TestMigrations_AreIdempotent(t *testing.T) {
	db := connect(t)
	assert.NoError(t, database.Migrate(db.GetSqlxDb().DB))

	var count int
	require.NoError(t, db.GetSqlxDb().Get(&count, `SELECT COUNT(*) FROM inspection_rows`))
	assert.Zero(t, count)
}

// TestMirror_RowsMatchCSV runs a batch with the database mirror enabled, and
// ensures every row written to the CSV is also stored against the batch.
func TestMirror_RowsMatchCSV(t *testing.T) {
	db := connect(t)
	dir, files := helpers.TempDirWithFiles(t, map[string]string{"a.mxf": "video", "b.mxf": "video", "c.mxf": ""})

	prober := proberFunc(func(_ context.Context, path string) (*probe.TrackSet, error) {
		return &probe.TrackSet{Path: path, Tracks: []probe.Track{
			{Type: probe.GeneralTrack, Format: "MXF"},
			{Type: probe.VideoTrack, Format: "AVC", FrameRate: "29.970"},
		}}, nil
	})

	store := sink.NewRowStore()
	executor := job.NewExecutor(prober, 2, 0, sink.NewMirror(db.GetSqlxDb(), store), nil)

	paths, skipped := ingest.Collect([]string{dir}, nil)
	batch := ingest.NewBatch(paths)
	batch.Seal()
	j := job.New(batch, media.FrameRateProfile, sink.Config{Path: filepath.Join(t.TempDir(), "results.csv"), Encoding: sink.EncodingUTF8}, skipped)

	summary, err := executor.Execute(context.Background(), j)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Equal(t, 1, summary.Skipped)

	rows, err := store.ListForBatch(db.GetSqlxDb(), j.ID())
	require.NoError(t, err)
	require.Len(t, rows, 2)

	stored := make([]string, 0, len(rows))
	for _, row := range rows {
		assert.Equal(t, j.ID(), row.BatchID)
		assert.Equal(t, "framerate", row.Profile)
		assert.Equal(t, "29.970/1", (*row.Fields.Get())["video_frame_rate"])
		stored = append(stored, row.Path)
	}
	assert.ElementsMatch(t, []string{files["a.mxf"], files["b.mxf"]}, stored)
}
