// Package fswatch signals when a project's local directory changes, so the
// daemon can trigger a sync in watch mode.
package fswatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/afero"

	"github.com/laforge-app/laforge/pkg/errors"
)

var fs = afero.NewOsFs()

// Watch watches the project directory for changes. It sends an event on the
// returned channel whenever a file within the directory changes. Hidden
// files and directories are ignored, matching what a sync would upload.
func Watch(root string) (chan struct{}, error) {
	pathsToWatch, err := getPathsToWatch(root)
	if err != nil {
		return nil, errors.WithContext(err, "get paths")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WithContext(err, "create watcher")
	}

	for _, path := range pathsToWatch {
		if err := watcher.Add(path); err != nil {
			// Close the watcher so that we release the file handlers for the
			// previously added paths.
			if err := watcher.Close(); err != nil {
				log.WithError(err).Warn("Failed to close file watcher")
			}

			return nil, errors.WithContext(err, fmt.Sprintf("watch %q", path))
		}
	}
	return combineUpdates(watcher.Events), nil
}

func combineUpdates(updates <-chan fsnotify.Event) chan struct{} {
	combined := make(chan struct{}, 1)
	go func() {
		for update := range updates {
			if hidden(filepath.Base(update.Name)) {
				continue
			}
			select {
			case combined <- struct{}{}:
			default:
			}
		}
	}()
	return combined
}

// getPathsToWatch returns the directory and all its visible subdirectories.
// fsnotify doesn't watch directories recursively, so each subdirectory is
// added individually.
func getPathsToWatch(root string) (paths []string, err error) {
	fi, err := fs.Stat(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: root}
		}
		return nil, errors.WithContext(err, "stat")
	}
	if !fi.Mode().IsDir() {
		return nil, errors.New(fmt.Sprintf("%q is not a directory", root))
	}

	err = afero.Walk(fs, root, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk error")
		}
		if !fi.IsDir() {
			return nil
		}
		if path != root && hidden(filepath.Base(path)) {
			return filepath.SkipDir
		}
		paths = append(paths, path)
		return nil
	})
	return paths, err
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
