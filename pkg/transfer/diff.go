package transfer

import (
	"sort"
)

// computeDiff classifies every local file against the remote listing.
// The comparison is size-based: content hashing would require downloading
// every remote file, which defeats the point of a preview.
func computeDiff(local, remote map[string]int64) []FileDiff {
	var diffs []FileDiff

	for path, localSize := range local {
		diff := FileDiff{Path: path, LocalSize: localSize}
		remoteSize, ok := remote[path]
		switch {
		case !ok:
			diff.Status = DiffAdded
		case localSize != remoteSize:
			diff.Status = DiffModified
			diff.RemoteSize = remoteSize
		default:
			diff.Status = DiffUnchanged
			diff.RemoteSize = remoteSize
		}
		diffs = append(diffs, diff)
	}

	// Files present on the remote but not locally. They're reported so the
	// caller can surface them, but the engine never deletes remote files.
	for path, remoteSize := range remote {
		if _, ok := local[path]; !ok {
			diffs = append(diffs, FileDiff{
				Path:       path,
				Status:     DiffRemoved,
				RemoteSize: remoteSize,
			})
		}
	}

	sort.Slice(diffs, func(i, j int) bool {
		return diffs[i].Path < diffs[j].Path
	})
	return diffs
}

// CountUploads returns the number of files in the diff that need transfer.
func CountUploads(diffs []FileDiff) int {
	count := 0
	for _, d := range diffs {
		if d.NeedsUpload() {
			count++
		}
	}
	return count
}
