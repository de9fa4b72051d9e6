package sync

import (
	"fmt"

	"github.com/laforge-app/laforge/pkg/transfer"
)

// applyEvent folds one transfer engine event into the session. It is the
// single place session state changes during the upload phase, so the
// invariants live here: progress never decreases, a completed file count
// never exceeds the total, and failed file entries keep their retry count
// when the same path fails again.
func applyEvent(sess *Session, ev transfer.Event) {
	if ev.Progress > sess.Progress {
		sess.Progress = ev.Progress
	}

	level, message := describeEvent(ev)
	sess.appendLog(ev.Timestamp, level, message, ev.File)

	switch ev.Kind {
	case transfer.EventConnecting:
		sess.Stage = StageConnecting
	case transfer.EventAnalyzing:
		sess.Stage = StageAnalyzing
	case transfer.EventFileStart:
		sess.Stage = StageUploading
		sess.CurrentFile = ev.File
		sess.setFileStatus(ev.File, FileUploading, "")
	case transfer.EventFileComplete:
		sess.setFileStatus(ev.File, FileUploaded, "")
		delete(sess.FailedFiles, ev.File)
		if sess.FilesCompleted < sess.FilesTotal {
			sess.FilesCompleted++
		}
		if sess.CurrentFile == ev.File {
			sess.CurrentFile = ""
		}
	case transfer.EventFileError:
		sess.setFileStatus(ev.File, FileError, ev.Message)
		if sess.CurrentFile == ev.File {
			sess.CurrentFile = ""
		}
		upsertFailedFile(sess, ev)
	case transfer.EventComplete:
		sess.Stage = StageComplete
		sess.Progress = 100
		sess.CurrentFile = ""
	case transfer.EventError:
		sess.Stage = StageError
		sess.CurrentFile = ""
		if ev.Message != "" {
			sess.Error = ev.Message
		}
	case transfer.EventCancelled:
		sess.Stage = StageCancelled
		sess.CurrentFile = ""
	}
}

// upsertFailedFile records the latest error for the path. The retry count
// is owned by the explicit retry action, so a repeat failure refreshes the
// error and timestamp but keeps the count.
func upsertFailedFile(sess *Session, ev transfer.Event) {
	if sess.FailedFiles == nil {
		sess.FailedFiles = map[string]FailedFile{}
	}
	entry := sess.FailedFiles[ev.File]
	entry.Error = ev.Message
	entry.Timestamp = ev.Timestamp
	sess.FailedFiles[ev.File] = entry
}

func describeEvent(ev transfer.Event) (LogLevel, string) {
	switch ev.Kind {
	case transfer.EventConnecting:
		return LogInfo, "Connecting to remote host"
	case transfer.EventAnalyzing:
		return LogInfo, "Analyzing local and remote files"
	case transfer.EventFileStart:
		return LogInfo, fmt.Sprintf("Uploading %s", ev.File)
	case transfer.EventFileComplete:
		return LogSuccess, fmt.Sprintf("Uploaded %s", ev.File)
	case transfer.EventFileError:
		return LogError, fmt.Sprintf("Failed to upload %s: %s", ev.File, ev.Message)
	case transfer.EventComplete:
		return LogSuccess, "Sync complete"
	case transfer.EventError:
		return LogError, ev.Message
	case transfer.EventCancelled:
		return LogWarning, "Sync cancelled"
	}
	return LogInfo, ev.Message
}
