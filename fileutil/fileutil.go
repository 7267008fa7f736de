package fileutil

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
)

// FileExists returns true if a file or directory with the given path exists.
func FileExists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// IsDir returns true if a directory with the given path exists.
func IsDir(filename string) bool {
	info, err := os.Stat(filename)
	return err == nil && info.IsDir()
}

// FindFiles returns the paths of all regular files below root whose name ends
// with suffix, sorted. Unreadable subdirectories are logged and skipped; an
// unreadable root is an error.
func FindFiles(root string, suffix string) ([]string, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, err
	}

	var filenames []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}
			log.WithError(err).Warnf("skipping unreadable path: %s", path)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type().IsRegular() && strings.HasSuffix(d.Name(), suffix) {
			filenames = append(filenames, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(filenames)
	return filenames, nil
}

// EnsureDir creates a directory and its parents if they do not exist yet.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
