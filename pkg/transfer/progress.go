package transfer

import (
	"sync"
	"time"
)

// Progress values below uploadProgressBase are reserved for the connection
// and analysis phases; the upload itself moves progress from the base to
// base+span, and the terminal event pushes it to 100.
const (
	uploadProgressBase = 20
	uploadProgressSpan = 70
)

// progressTracker serializes event emission for a pool of upload workers and
// keeps the per-run counters that determine overall progress.
type progressTracker struct {
	projectID string
	total     int
	events    chan<- Event

	mu        sync.Mutex
	completed int
	errs      []string
	progress  int
}

func newProgressTracker(projectID string, total int, events chan<- Event) *progressTracker {
	return &progressTracker{
		projectID: projectID,
		total:     total,
		events:    events,
		progress:  uploadProgressBase,
	}
}

func (t *progressTracker) emit(kind EventKind, file, message string, progress int) {
	if t.events == nil {
		return
	}
	t.events <- Event{
		ProjectID: t.projectID,
		Kind:      kind,
		File:      file,
		Message:   message,
		Progress:  progress,
		Timestamp: time.Now(),
	}
}

func (t *progressTracker) fileStart(file string) {
	t.mu.Lock()
	progress := t.progress
	t.mu.Unlock()
	t.emit(EventFileStart, file, "", progress)
}

func (t *progressTracker) fileComplete(file string) {
	t.mu.Lock()
	t.completed++
	t.progress = uploadProgressBase +
		t.completed*uploadProgressSpan/t.total
	progress := t.progress
	t.mu.Unlock()
	t.emit(EventFileComplete, file, "", progress)
}

func (t *progressTracker) fileError(file, message string) {
	t.mu.Lock()
	t.errs = append(t.errs, file+": "+message)
	progress := t.progress
	t.mu.Unlock()
	t.emit(EventFileError, file, message, progress)
}

func (t *progressTracker) complete() {
	t.emit(EventComplete, "", "", 100)
}

func (t *progressTracker) error(message string) {
	t.mu.Lock()
	progress := t.progress
	t.mu.Unlock()
	t.emit(EventError, "", message, progress)
}

func (t *progressTracker) cancelled() {
	t.mu.Lock()
	progress := t.progress
	t.mu.Unlock()
	t.emit(EventCancelled, "", "", progress)
}

func (t *progressTracker) shouldStop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.errs) >= maxFailedFiles
}

func (t *progressTracker) completedCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.completed
}

func (t *progressTracker) failedFiles() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string{}, t.errs...)
}
