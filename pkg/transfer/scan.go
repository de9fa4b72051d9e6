package transfer

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"

	"github.com/laforge-app/laforge/pkg/errors"
)

// Mocked out for unit testing.
var fs = afero.NewOsFs()

// scanLocal walks the local build directory and returns the size of every
// regular file, keyed by slash-separated path relative to localPath.
// Hidden files and anything inside a hidden directory are skipped: the build
// output never includes them, and entries like .DS_Store would otherwise be
// re-uploaded forever.
func scanLocal(localPath string) (map[string]int64, error) {
	if _, err := fs.Stat(localPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.FileNotFound{Path: localPath}
		}
		return nil, errors.WithContext(err, "stat")
	}

	files := map[string]int64{}
	err := afero.Walk(fs, localPath, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return errors.WithContext(err, "walk")
		}

		if strings.HasPrefix(fi.Name(), ".") {
			if fi.IsDir() && path != localPath {
				return filepath.SkipDir
			}
			if !fi.IsDir() {
				return nil
			}
		}

		if fi.Mode().IsRegular() {
			rel, err := filepath.Rel(localPath, path)
			if err != nil {
				return errors.WithContext(err, "relative path")
			}
			files[filepath.ToSlash(rel)] = fi.Size()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// hiddenPath returns whether any component of the slash-separated path is
// hidden. Used for remote listings, which are walked manually.
func hiddenPath(p string) bool {
	for _, part := range strings.Split(p, "/") {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
