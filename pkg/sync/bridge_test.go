package sync

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/laforge-app/laforge/pkg/transfer"
)

func TestProgressNeverDecreases(t *testing.T) {
	sess := newSession("proj-1", 4)
	sess.Stage = StageUploading
	sess.Progress = 55

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileStart, File: "a.html", Progress: 37})
	assert.Equal(t, 55, sess.Progress)

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileComplete, File: "a.html", Progress: 72})
	assert.Equal(t, 72, sess.Progress)
}

func TestFileEventsDriveFileStates(t *testing.T) {
	sess := newSession("proj-1", 4)
	sess.FilesTotal = 2
	sess.Files = []FileState{
		{Path: "a.html", Status: FilePending},
		{Path: "b.css", Status: FilePending},
	}

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileStart, File: "a.html"})
	assert.Equal(t, StageUploading, sess.Stage)
	assert.Equal(t, "a.html", sess.CurrentFile)
	assert.Equal(t, FileUploading, sess.Files[0].Status)

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileComplete, File: "a.html"})
	assert.Empty(t, sess.CurrentFile)
	assert.Equal(t, FileUploaded, sess.Files[0].Status)
	assert.Equal(t, 1, sess.FilesCompleted)

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileError, File: "b.css", Message: "disk full"})
	assert.Equal(t, FileError, sess.Files[1].Status)
	assert.Equal(t, "disk full", sess.Files[1].Error)
}

func TestFailedFileKeepsRetryCountOnRepeatFailure(t *testing.T) {
	sess := newSession("proj-1", 4)
	sess.FailedFiles = map[string]FailedFile{
		"b.css": {Error: "disk full", RetryCount: 2},
	}

	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileError, File: "b.css",
		Message: "permission denied", Timestamp: at})

	entry := sess.FailedFiles["b.css"]
	assert.Equal(t, "permission denied", entry.Error)
	assert.Equal(t, at, entry.Timestamp)
	assert.Equal(t, 2, entry.RetryCount)
}

func TestFileCompleteClearsFailure(t *testing.T) {
	sess := newSession("proj-1", 4)
	sess.FailedFiles = map[string]FailedFile{
		"b.css": {Error: "disk full"},
	}

	applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
		Kind: transfer.EventFileComplete, File: "b.css"})
	assert.Empty(t, sess.FailedFiles)
}

func TestTerminalEvents(t *testing.T) {
	tests := []struct {
		kind     transfer.EventKind
		message  string
		expStage Stage
		expError string
	}{
		{transfer.EventComplete, "", StageComplete, ""},
		{transfer.EventError, "upload failed", StageError, "upload failed"},
		{transfer.EventCancelled, "", StageCancelled, ""},
	}

	for _, test := range tests {
		sess := newSession("proj-1", 4)
		sess.Stage = StageUploading
		sess.CurrentFile = "a.html"

		applyEvent(&sess, transfer.Event{ProjectID: "proj-1",
			Kind: test.kind, Message: test.message})
		assert.Equal(t, test.expStage, sess.Stage)
		assert.Empty(t, sess.CurrentFile)
		assert.Equal(t, test.expError, sess.Error)
		if test.kind == transfer.EventComplete {
			assert.Equal(t, 100, sess.Progress)
		}
	}
}

func TestEveryEventIsLogged(t *testing.T) {
	sess := newSession("proj-1", 4)
	events := []transfer.Event{
		{Kind: transfer.EventConnecting},
		{Kind: transfer.EventAnalyzing},
		{Kind: transfer.EventFileStart, File: "a.html"},
		{Kind: transfer.EventFileError, File: "a.html", Message: "disk full"},
		{Kind: transfer.EventCancelled},
	}
	for _, ev := range events {
		ev.ProjectID = "proj-1"
		applyEvent(&sess, ev)
	}

	require.Len(t, sess.Logs, len(events))
	assert.Equal(t, LogInfo, sess.Logs[0].Level)
	assert.Equal(t, LogError, sess.Logs[3].Level)
	assert.Contains(t, sess.Logs[3].Message, "disk full")
	assert.Equal(t, LogWarning, sess.Logs[4].Level)
}
