package ingest_test

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/hbomb79/mediatab/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gotest.tools/v3/fs"
)

func Test_Collect_RecursesAndOrdersLexically(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "collect",
		fs.WithFile("b.mp4", "b"),
		fs.WithFile("a.MXF", "a"),
		fs.WithDir("nested",
			fs.WithFile("c.mkv", "c"),
			fs.WithDir("deeper", fs.WithFile("d.mov", "d")),
		),
	)

	files, skipped := ingest.Collect([]string{dir.Path()}, nil)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{
		dir.Join("a.MXF"),
		dir.Join("b.mp4"),
		dir.Join("nested", "c.mkv"),
		dir.Join("nested", "deeper", "d.mov"),
	}, files)
}

func Test_Collect_IsIdempotent(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "collect",
		fs.WithFile("one.avi", "1"),
		fs.WithFile("notes.txt", "n"),
		fs.WithDir("sub", fs.WithFile("two.FLV", "2"), fs.WithFile("three.mp4", "3")),
	)

	filter := ingest.NewExtensionFilter("avi", ".flv", "MP4")
	first, _ := ingest.Collect([]string{dir.Path()}, filter)
	second, _ := ingest.Collect([]string{dir.Path()}, filter)

	assert.Len(t, first, 3)
	assert.Equal(t, first, second)
	assert.NotContains(t, first, dir.Join("notes.txt"), "filtered files should be silently excluded")
}

func Test_Collect_DeduplicatesInputs(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "collect", fs.WithFile("a.mp4", "a"), fs.WithDir("sub", fs.WithFile("b.mp4", "b")))

	files, skipped := ingest.Collect([]string{
		dir.Join("sub", "b.mp4"),
		dir.Path(),
		dir.Join("a.mp4"),
		dir.Join("sub", "..", "a.mp4"),
	}, nil)

	assert.Empty(t, skipped)
	assert.Equal(t, []string{dir.Join("sub", "b.mp4"), dir.Join("a.mp4")}, files)
}

func Test_Collect_MissingInputIsSkipped(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "collect", fs.WithFile("a.mp4", "a"))
	missing := dir.Join("missing.mp4")

	files, skipped := ingest.Collect([]string{missing, dir.Join("a.mp4")}, nil)
	assert.Equal(t, []string{dir.Join("a.mp4")}, files)
	require.Len(t, skipped, 1)
	assert.Equal(t, missing, skipped[0].Path)
	assert.Equal(t, ingest.PATH_FAILURE, skipped[0].Trouble.Type())
	assert.ErrorIs(t, skipped[0].Trouble, ingest.ErrNotFileOrDir)
	assert.Equal(t, "not a file or directory", skipped[0].Reason())
}

func Test_Collect_RelativeInputsAreMadeAbsolute(t *testing.T) {
	t.Parallel()

	dir := fs.NewDir(t, "collect", fs.WithFile("a.mp4", "a"))
	cwd, err := os.Getwd()
	require.NoError(t, err)
	rel, err := filepath.Rel(cwd, dir.Join("a.mp4"))
	require.NoError(t, err)

	files, skipped := ingest.Collect([]string{rel}, nil)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{dir.Join("a.mp4")}, files)
}

func Test_Collect_UnreadableSubtreeIsSkipped(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("directory permissions are not enforced for this user")
	}

	dir := fs.NewDir(t, "collect",
		fs.WithFile("a.mp4", "a"),
		fs.WithDir("locked", fs.WithMode(0o000)),
	)
	t.Cleanup(func() { _ = os.Chmod(dir.Join("locked"), 0o755) })

	files, skipped := ingest.Collect([]string{dir.Path()}, nil)
	assert.Equal(t, []string{dir.Join("a.mp4")}, files)
	require.Len(t, skipped, 1)
	assert.Equal(t, dir.Join("locked"), skipped[0].Path)
	assert.Equal(t, ingest.PATH_FAILURE, skipped[0].Trouble.Type())
}

func Test_ExtensionFilter(t *testing.T) {
	t.Parallel()

	empty := ingest.NewExtensionFilter()
	assert.True(t, empty.Allows("/anything/at/all"))

	filter := ingest.NewExtensionFilter("mxf", " .MOV ")
	assert.True(t, filter.Allows("/a/b.MXF"))
	assert.True(t, filter.Allows("clip.mov"))
	assert.False(t, filter.Allows("clip.mp4"))
	assert.False(t, filter.Allows("mxf"))
}

func Test_Collect_SymlinkedDirectoryIsWalked(t *testing.T) {
	t.Parallel()
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges")
	}

	target := fs.NewDir(t, "collect",
		fs.WithFile("a.mxf", "a"),
		fs.WithDir("nested", fs.WithFile("b.mxf", "b")),
	)
	link := filepath.Join(t.TempDir(), "library")
	require.NoError(t, os.Symlink(target.Path(), link))

	files, skipped := ingest.Collect([]string{link}, nil)
	assert.Empty(t, skipped)
	assert.Equal(t, []string{
		filepath.Join(link, "a.mxf"),
		filepath.Join(link, "nested", "b.mxf"),
	}, files)
}
