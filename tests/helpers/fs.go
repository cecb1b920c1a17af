package helpers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TempDirWithEmptyFiles creates a temporary directory containing an empty
// file for each of the names provided. The names are used as a suffix for
// the generated file names.
func TempDirWithEmptyFiles(t *testing.T, files []string) (string, []string) {
	dirPath := t.TempDir()
	filePaths := make([]string, 0, len(files))
	for _, filename := range files {
		file, err := os.CreateTemp(dirPath, "*"+filename)
		assert.Nil(t, err, "failed to create temporary file in temporary dir")
		_ = file.Close()
		filePaths = append(filePaths, file.Name())
	}

	assert.Len(t, filePaths, len(files), "Expected file paths recorded to match length of requested files")
	return dirPath, filePaths
}

// TempDirWithFiles creates a temporary directory containing the files provided. The
// keys are slash separated paths relative to the directory (parent directories are
// created as needed), and the values are the file contents. The absolute path of each
// file is returned in the same map shape.
func TempDirWithFiles(t *testing.T, files map[string]string) (string, map[string]string) {
	dirPath := t.TempDir()
	paths := make(map[string]string, len(files))
	for name, content := range files {
		path := filepath.Join(dirPath, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755), "failed to create parent directory for %s", name)
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644), "failed to create file %s", name)
		paths[name] = path
	}

	return dirPath, paths
}
