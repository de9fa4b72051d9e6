package transfer

import (
	"time"
)

// Protocol identifies the wire protocol used to reach the remote host.
type Protocol string

const (
	ProtocolFTP  Protocol = "ftp"
	ProtocolFTPS Protocol = "ftps"
	ProtocolSFTP Protocol = "sftp"
)

// Config contains everything needed to open a session to the remote host.
type Config struct {
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	Password   string   `json:"password,omitempty"`
	RemotePath string   `json:"remotePath"`
	Protocol   Protocol `json:"protocol"`
	Passive    bool     `json:"passive"`
}

// DiffStatus classifies a file in the local-vs-remote comparison.
type DiffStatus string

const (
	DiffAdded     DiffStatus = "added"
	DiffModified  DiffStatus = "modified"
	DiffRemoved   DiffStatus = "removed"
	DiffUnchanged DiffStatus = "unchanged"
)

// FileDiff is the comparison result for a single file.
type FileDiff struct {
	Path       string     `json:"path"`
	Status     DiffStatus `json:"status"`
	LocalSize  int64      `json:"localSize"`
	RemoteSize int64      `json:"remoteSize"`
}

// NeedsUpload returns whether the file should be transferred to the remote.
func (d FileDiff) NeedsUpload() bool {
	return d.Status == DiffAdded || d.Status == DiffModified
}

// EventKind enumerates the progress events emitted during an upload.
type EventKind string

const (
	EventConnecting   EventKind = "connecting"
	EventAnalyzing    EventKind = "analyzing"
	EventFileStart    EventKind = "file_start"
	EventFileComplete EventKind = "file_complete"
	EventFileError    EventKind = "file_error"
	EventComplete     EventKind = "complete"
	EventError        EventKind = "error"
	EventCancelled    EventKind = "cancelled"
)

// Terminal returns whether the event kind ends a run.
func (k EventKind) Terminal() bool {
	return k == EventComplete || k == EventError || k == EventCancelled
}

// Event is a progress notification emitted by the engine during an upload.
// Events are tagged with the project id so that consumers subscribed to a
// shared stream can route them to the right session.
type Event struct {
	ProjectID string    `json:"project_id"`
	Kind      EventKind `json:"event"`
	File      string    `json:"file,omitempty"`
	Message   string    `json:"message,omitempty"`
	Progress  int       `json:"progress"`
	Timestamp time.Time `json:"timestamp"`
}

// Result summarizes a completed, failed, or cancelled upload.
type Result struct {
	FilesUploaded int
	Errors        []string
	Cancelled     bool
}

// Options tunes a single upload run.
type Options struct {
	// Files is the list of files to upload. Entries whose status isn't
	// added or modified are skipped.
	Files []FileDiff

	// Parallel is the number of concurrent connections to open. Zero means
	// DefaultParallelConnections; values are capped at MaxParallelConnections.
	Parallel int
}
