package indexer

import (
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

var (
	// DefaultIncludes selects the extracted-text formats ingested from a directory
	DefaultIncludes = []string{"**/*.txt", "**/*.md"}

	// DefaultExcludes skips hidden files and directories
	DefaultExcludes = []string{"**/.*", "**/.*/**"}
)

// discoverFiles walks root and returns paths relative to it, slash
// separated, that match an include pattern and no exclude pattern
func discoverFiles(root string, includes, excludes []string) ([]string, error) {
	if len(includes) == 0 {
		includes = DefaultIncludes
	}
	if excludes == nil {
		excludes = DefaultExcludes
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if rel == "." {
			return nil
		}

		if d.IsDir() {
			if matchAny(excludes, rel) || matchAny(excludes, rel+"/") {
				return filepath.SkipDir
			}
			return nil
		}

		if matchAny(includes, rel) && !matchAny(excludes, rel) {
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

func matchAny(patterns []string, path string) bool {
	for _, pattern := range patterns {
		matched, err := doublestar.Match(pattern, path)
		if err == nil && matched {
			return true
		}
	}
	return false
}

// sourceName derives the stored source key for a file path
func sourceName(rel string) string {
	return strings.TrimPrefix(filepath.ToSlash(rel), "./")
}
