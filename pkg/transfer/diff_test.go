package transfer

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laforge-app/laforge/pkg/errors"
)

func TestScanLocal(t *testing.T) {
	fs = afero.NewMemMapFs()
	defer func() { fs = afero.NewOsFs() }()

	files := map[string]string{
		"/site/index.html":        "<html></html>",
		"/site/css/main.css":      "body {}",
		"/site/.DS_Store":         "junk",
		"/site/.git/config":       "hidden dir",
		"/site/assets/img/a.png":  "pngpng",
		"/site/assets/.hidden.js": "nope",
	}
	for path, contents := range files {
		require.NoError(t, afero.WriteFile(fs, path, []byte(contents), 0644))
	}

	scanned, err := scanLocal("/site")
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{
		"index.html":       13,
		"css/main.css":     7,
		"assets/img/a.png": 6,
	}, scanned)
}

func TestScanLocalMissingPath(t *testing.T) {
	fs = afero.NewMemMapFs()
	defer func() { fs = afero.NewOsFs() }()

	_, err := scanLocal("/does/not/exist")
	require.Error(t, err)
	_, ok := errors.RootCause(err).(errors.FileNotFound)
	assert.True(t, ok)
}

func TestComputeDiff(t *testing.T) {
	tests := []struct {
		name   string
		local  map[string]int64
		remote map[string]int64
		exp    []FileDiff
	}{
		{
			name:  "Empty",
			local: map[string]int64{},
			exp:   nil,
		},
		{
			name:   "AllStatuses",
			local:  map[string]int64{"a.html": 10, "b.css": 20, "c.js": 30},
			remote: map[string]int64{"b.css": 25, "c.js": 30, "old.html": 5},
			exp: []FileDiff{
				{Path: "a.html", Status: DiffAdded, LocalSize: 10},
				{Path: "b.css", Status: DiffModified, LocalSize: 20, RemoteSize: 25},
				{Path: "c.js", Status: DiffUnchanged, LocalSize: 30, RemoteSize: 30},
				{Path: "old.html", Status: DiffRemoved, RemoteSize: 5},
			},
		},
		{
			name:  "EmptyRemote",
			local: map[string]int64{"a.html": 10},
			exp: []FileDiff{
				{Path: "a.html", Status: DiffAdded, LocalSize: 10},
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.exp, computeDiff(test.local, test.remote))
		})
	}
}

func TestCountUploads(t *testing.T) {
	diffs := []FileDiff{
		{Path: "a", Status: DiffAdded},
		{Path: "b", Status: DiffModified},
		{Path: "c", Status: DiffUnchanged},
		{Path: "d", Status: DiffRemoved},
	}
	assert.Equal(t, 2, CountUploads(diffs))
}
