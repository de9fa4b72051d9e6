package sync

import (
	"time"
)

// Stage identifies where a sync run currently is in its lifecycle.
type Stage string

const (
	StageIdle       Stage = "idle"
	StageConnecting Stage = "connecting"
	StageRetrying   Stage = "retrying"
	StageAnalyzing  Stage = "analyzing"
	StageUploading  Stage = "uploading"
	StageComplete   Stage = "complete"
	StageError      Stage = "error"
	StageCancelled  Stage = "cancelled"
)

// Active returns whether the stage belongs to an in-flight run.
func (s Stage) Active() bool {
	switch s {
	case StageConnecting, StageRetrying, StageAnalyzing, StageUploading:
		return true
	}
	return false
}

// Terminal returns whether the stage is an end state.
func (s Stage) Terminal() bool {
	switch s {
	case StageComplete, StageError, StageCancelled:
		return true
	}
	return false
}

// FileStatus is the upload status of a single file within a run.
type FileStatus string

const (
	FilePending   FileStatus = "pending"
	FileUploading FileStatus = "uploading"
	FileUploaded  FileStatus = "uploaded"
	FileError     FileStatus = "error"
)

// FileState is the per-file progress entry shown in the sync detail view.
type FileState struct {
	Path   string     `json:"path"`
	Status FileStatus `json:"status"`
	Size   int64      `json:"size"`
	Error  string     `json:"error,omitempty"`
}

// LogLevel is the severity of a session log line.
type LogLevel string

const (
	LogInfo    LogLevel = "info"
	LogSuccess LogLevel = "success"
	LogWarning LogLevel = "warning"
	LogError   LogLevel = "error"
)

// LogEntry is one line of the per-run activity log.
type LogEntry struct {
	Time    time.Time `json:"time"`
	Level   LogLevel  `json:"level"`
	Message string    `json:"message"`
	File    string    `json:"file,omitempty"`
}

// RetryState tracks the connection retry loop for display purposes.
type RetryState struct {
	CurrentAttempt int        `json:"currentAttempt"`
	MaxAttempts    int        `json:"maxAttempts"`
	NextRetryAt    *time.Time `json:"nextRetryAt,omitempty"`
	LastError      string     `json:"lastError,omitempty"`
}

// FailedFile records a file that errored during upload. RetryCount counts
// explicit retry requests for the file, not uploads attempted by the engine.
type FailedFile struct {
	Error      string    `json:"error"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retryCount"`
}

// Session is the complete observable state of a project's sync run.
type Session struct {
	ProjectID      string                `json:"projectId"`
	Stage          Stage                 `json:"stage"`
	Progress       int                   `json:"progress"`
	CurrentFile    string                `json:"currentFile,omitempty"`
	Files          []FileState           `json:"files,omitempty"`
	FilesTotal     int                   `json:"filesTotal"`
	FilesCompleted int                   `json:"filesCompleted"`
	Retry          RetryState            `json:"retry"`
	Logs           []LogEntry            `json:"logs,omitempty"`
	FailedFiles    map[string]FailedFile `json:"failedFiles,omitempty"`
	Error          string                `json:"error,omitempty"`

	// LastConnectionAttempt and LastConnectionFailed drive the cooldown
	// that keeps the UI from hammering an unreachable host. They survive
	// session resets performed at the start of a new run.
	LastConnectionAttempt time.Time `json:"lastConnectionAttempt,omitempty"`
	LastConnectionFailed  bool      `json:"lastConnectionFailed"`
}

func newSession(projectID string, maxAttempts int) Session {
	return Session{
		ProjectID:   projectID,
		Stage:       StageIdle,
		Retry:       RetryState{MaxAttempts: maxAttempts},
		FailedFiles: map[string]FailedFile{},
	}
}

func (s *Session) appendLog(at time.Time, level LogLevel, message, file string) {
	s.Logs = append(s.Logs, LogEntry{
		Time:    at,
		Level:   level,
		Message: message,
		File:    file,
	})
}

func (s *Session) setFileStatus(path string, status FileStatus, errMsg string) {
	for i := range s.Files {
		if s.Files[i].Path == path {
			s.Files[i].Status = status
			s.Files[i].Error = errMsg
			return
		}
	}
}

func (s *Session) clone() Session {
	out := *s
	if s.Files != nil {
		out.Files = append([]FileState(nil), s.Files...)
	}
	if s.Logs != nil {
		out.Logs = append([]LogEntry(nil), s.Logs...)
	}
	if s.FailedFiles != nil {
		out.FailedFiles = make(map[string]FailedFile, len(s.FailedFiles))
		for k, v := range s.FailedFiles {
			out.FailedFiles[k] = v
		}
	}
	if s.Retry.NextRetryAt != nil {
		at := *s.Retry.NextRetryAt
		out.Retry.NextRetryAt = &at
	}
	return out
}
