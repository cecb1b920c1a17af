package ingest

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hbomb79/mediatab/pkg/logger"
)

// ExtensionFilter is a case-insensitive allow-list of file extensions. An
// empty filter allows every file.
type ExtensionFilter map[string]struct{}

func NewExtensionFilter(extensions ...string) ExtensionFilter {
	filter := make(ExtensionFilter, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			filter[ext] = struct{}{}
		}
	}

	return filter
}

// Allows returns true if the path has an extension in the filter.
func (filter ExtensionFilter) Allows(path string) bool {
	if len(filter) == 0 {
		return true
	}

	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	_, ok := filter[ext]
	return ok
}

// Collect flattens the inputs in to an ordered, de-duplicated list of regular
// files. Directories are walked recursively in lexical order. Inputs which are
// neither a regular file nor a directory, and any subtree which cannot be read,
// are returned as PATH_FAILURE skip records. Files excluded by the filter are
// silently dropped.
//
// Paths are made absolute and cleaned, and duplicates are dropped at their
// first occurrence, so running Collect twice over an unchanged tree yields
// the same list.
func Collect(inputs []string, filter ExtensionFilter) ([]string, []SkipRecord) {
	files := make([]string, 0)
	skipped := make([]SkipRecord, 0)
	seen := make(map[string]struct{})

	include := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}

		if filter.Allows(path) {
			files = append(files, path)
		}
	}

	for _, input := range inputs {
		path, err := filepath.Abs(input)
		if err != nil {
			path = filepath.Clean(input)
		}

		info, err := os.Stat(path)
		switch {
		case err == nil && info.IsDir():
			walkErrs := recursivelyWalkFileSystem(path, include)
			skipped = append(skipped, walkErrs...)
		case err == nil && info.Mode().IsRegular():
			include(path)
		default:
			if _, ok := seen[path]; ok {
				continue
			}
			seen[path] = struct{}{}

			log.Emit(logger.WARNING, "Input %s is %s, skipping\n", path, ErrNotFileOrDir)
			skipped = append(skipped, SkipRecord{Path: path, Trouble: NewTrouble(PATH_FAILURE, ErrNotFileOrDir)})
		}
	}

	return files, skipped
}

// recursivelyWalkFileSystem will walk the file system, starting at the directory provided,
// calling found for each regular file inside (including any inside of nested directories, and
// symlinks which resolve to a regular file). Subtrees which cannot be read are skipped and
// returned as skip records, the walk continues regardless.
//
// If the root itself is a symlink, the directory it resolves to is walked, but the paths
// reported remain beneath the root path provided.
func recursivelyWalkFileSystem(rootDirPath string, found func(string)) []SkipRecord {
	walkRoot := rootDirPath
	if resolved, err := filepath.EvalSymlinks(rootDirPath); err == nil {
		walkRoot = resolved
	}

	underRoot := func(path string) string {
		if rel, err := filepath.Rel(walkRoot, path); err == nil {
			return filepath.Join(rootDirPath, rel)
		}

		return path
	}

	skipped := make([]SkipRecord, 0)
	err := filepath.WalkDir(walkRoot, func(path string, dir fs.DirEntry, err error) error {
		if err != nil {
			log.Emit(logger.WARNING, "Failed to walk %s: %v\n", underRoot(path), err)
			skipped = append(skipped, SkipRecord{Path: underRoot(path), Trouble: NewTrouble(PATH_FAILURE, fmt.Errorf("failed to walk file system: %w", err))})
			if dir != nil && dir.IsDir() && path != walkRoot {
				return fs.SkipDir
			}

			return nil
		}

		if dir.IsDir() {
			return nil
		}

		if dir.Type().IsRegular() {
			found(underRoot(path))
		} else if dir.Type()&fs.ModeSymlink != 0 {
			if info, err := os.Stat(path); err == nil && info.Mode().IsRegular() {
				found(underRoot(path))
			}
		}

		return nil
	})

	if err != nil && !errors.Is(err, fs.SkipDir) {
		skipped = append(skipped, SkipRecord{Path: rootDirPath, Trouble: NewTrouble(PATH_FAILURE, err)})
	}

	return skipped
}
