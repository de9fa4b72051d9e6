package sync

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"

	"github.com/laforge-app/laforge/pkg/config"
	"github.com/laforge-app/laforge/pkg/errors"
	"github.com/laforge-app/laforge/pkg/notify"
	"github.com/laforge-app/laforge/pkg/retry"
	"github.com/laforge-app/laforge/pkg/transfer"
)

const (
	// ConnectionCooldown is how long a project is blocked from starting a
	// new run after a failed connection.
	ConnectionCooldown = 5 * time.Second

	connectTimeout = 15 * time.Second
	diffTimeout    = 30 * time.Second
	uploadTimeout  = 30 * time.Minute

	eventQueueSize = 64
)

// CompletionFunc receives the outcome of a run started with Start or
// RetryFailedFiles.
type CompletionFunc func(success bool, filesUploaded int)

// Decision is the result of an admission check.
type Decision struct {
	Allowed bool
	Reason  string
}

type runHandle struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// runSpec narrows a run. A nil onlyPaths means sync everything the diff
// reports; otherwise only the listed paths are uploaded and the session's
// failed file bookkeeping is preserved.
type runSpec struct {
	onlyPaths []string
}

// ProjectRecorder persists per-project results of completed runs.
type ProjectRecorder interface {
	SetLastSync(projectID string, at time.Time) error
}

// Syncer drives sync runs. One Syncer serves all projects; each project
// has at most one run in flight at a time.
type Syncer struct {
	store     *Store
	engine    transfer.Engine
	projects  ProjectRecorder
	creds     config.CredentialStore
	indicator *notify.Tracker
	clock     clockwork.Clock
	policy    retry.Policy

	events chan transfer.Event
	flush  chan chan struct{}
	quit   chan struct{}

	mu      sync.Mutex
	active  map[string]*runHandle
	onEvent func(transfer.Event)
}

// New creates a Syncer and starts its event consumer. projects and creds
// may be nil when persistence is not wanted (tests, one-off CLI runs).
func New(engine transfer.Engine, projects ProjectRecorder,
	creds config.CredentialStore, indicator *notify.Tracker) *Syncer {

	s := &Syncer{
		store:     NewStore(retry.DefaultPolicy.MaxAttempts),
		engine:    engine,
		projects:  projects,
		creds:     creds,
		indicator: indicator,
		clock:     clockwork.NewRealClock(),
		policy:    retry.DefaultPolicy,
		events:    make(chan transfer.Event, eventQueueSize),
		flush:     make(chan chan struct{}),
		quit:      make(chan struct{}),
		active:    map[string]*runHandle{},
	}
	go s.consumeEvents()
	return s
}

// Close stops the event consumer. In-flight runs should be cancelled first.
func (s *Syncer) Close() {
	close(s.quit)
}

// Session returns a copy of the project's session.
func (s *Syncer) Session(projectID string) Session {
	return s.store.Get(projectID)
}

// Sessions returns copies of all tracked sessions.
func (s *Syncer) Sessions() []Session {
	return s.store.All()
}

// OnEvent registers a hook that observes every engine event after it has
// been applied to the session. Used by the CLI for live progress output.
func (s *Syncer) OnEvent(fn func(transfer.Event)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onEvent = fn
}

// CanStart reports whether a new run for the project would be admitted.
func (s *Syncer) CanStart(projectID string) Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canStartLocked(projectID)
}

func (s *Syncer) canStartLocked(projectID string) Decision {
	if _, running := s.active[projectID]; running {
		return Decision{Reason: "a sync is already running for this project"}
	}

	sess := s.store.Get(projectID)
	if sess.Stage.Active() {
		return Decision{Reason: "a sync is already running for this project"}
	}

	if sess.LastConnectionFailed && !sess.LastConnectionAttempt.IsZero() {
		elapsed := s.clock.Now().Sub(sess.LastConnectionAttempt)
		if elapsed < ConnectionCooldown {
			return Decision{Reason: fmt.Sprintf(
				"the last connection attempt failed %v ago, wait %v before retrying",
				elapsed.Round(time.Second), (ConnectionCooldown - elapsed).Round(time.Second))}
		}
	}
	return Decision{Allowed: true}
}

// Start begins a full sync of the project. It returns once the run is
// admitted (or rejected); the run itself proceeds in the background and
// reports through onComplete and the session. A rejected run invokes
// onComplete(false, 0) immediately.
func (s *Syncer) Start(project config.Project, onComplete CompletionFunc) {
	s.start(project, runSpec{}, onComplete)
}

// RetryFailedFiles re-uploads only the files recorded as failed by the
// project's previous run, bumping each file's retry count.
func (s *Syncer) RetryFailedFiles(project config.Project, onComplete CompletionFunc) {
	sess := s.store.Get(project.ID)
	if len(sess.FailedFiles) == 0 {
		log.WithField("project", project.Name).Debug("No failed files to retry")
		if onComplete != nil {
			onComplete(false, 0)
		}
		return
	}

	paths := make([]string, 0, len(sess.FailedFiles))
	for path := range sess.FailedFiles {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	s.start(project, runSpec{onlyPaths: paths}, onComplete)
}

func (s *Syncer) start(project config.Project, spec runSpec, onComplete CompletionFunc) {
	s.mu.Lock()
	if decision := s.canStartLocked(project.ID); !decision.Allowed {
		s.mu.Unlock()
		log.WithFields(log.Fields{
			"project": project.Name,
			"reason":  decision.Reason,
		}).Warn("Sync not started")
		if onComplete != nil {
			onComplete(false, 0)
		}
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	handle := &runHandle{ctx: ctx, cancel: cancel}
	s.active[project.ID] = handle
	s.mu.Unlock()

	runID := uuid.New().String()
	now := s.clock.Now()
	s.store.update(project.ID, func(sess *Session) {
		prevAttempt := sess.LastConnectionAttempt
		prevFailed := sess.FailedFiles

		*sess = newSession(project.ID, s.policy.MaxAttempts)
		sess.Stage = StageConnecting
		sess.LastConnectionAttempt = prevAttempt
		if spec.onlyPaths != nil {
			// A retry keeps the failure history so retry counts accumulate.
			sess.FailedFiles = prevFailed
			for _, path := range spec.onlyPaths {
				entry := sess.FailedFiles[path]
				entry.RetryCount++
				sess.FailedFiles[path] = entry
			}
		}
		sess.appendLog(now, LogInfo, "Starting sync of "+project.Name, "")
	})

	if s.indicator != nil {
		s.indicator.Set(notify.StateSyncing)
	}

	log.WithFields(log.Fields{
		"project": project.Name,
		"run":     runID,
	}).Info("Starting sync")

	go s.run(project, spec, handle, runID, onComplete)
}

// Cancel requests cancellation of the project's active run. The run winds
// down asynchronously; the session reaches the cancelled stage once the
// engine has stopped.
func (s *Syncer) Cancel(projectID string) {
	s.mu.Lock()
	handle := s.active[projectID]
	s.mu.Unlock()

	if handle == nil {
		log.WithField("project", projectID).Debug("No active sync to cancel")
		return
	}

	s.engine.CancelSync(projectID)
	handle.cancel()
}

// Reset cancels any active run and drops the project's session so the UI
// returns to the idle state.
func (s *Syncer) Reset(projectID string) {
	s.Cancel(projectID)
	s.store.Reset(projectID)
}

func (s *Syncer) run(project config.Project, spec runSpec, handle *runHandle,
	runID string, onComplete CompletionFunc) {

	defer handle.cancel()
	success, uploaded := s.doRun(handle.ctx, project, spec)

	s.mu.Lock()
	if s.active[project.ID] == handle {
		delete(s.active, project.ID)
	}
	othersRunning := len(s.active) > 0
	s.mu.Unlock()

	if s.indicator != nil && !othersRunning {
		if success {
			s.indicator.Set(notify.StateSuccess)
		} else {
			s.indicator.Set(notify.StateNormal)
		}
	}

	log.WithFields(log.Fields{
		"project":  project.Name,
		"run":      runID,
		"success":  success,
		"uploaded": uploaded,
	}).Info("Sync finished")

	if onComplete != nil {
		onComplete(success, uploaded)
	}
}

func (s *Syncer) doRun(ctx context.Context, project config.Project, spec runSpec) (bool, int) {
	cfg := project.Remote
	if s.creds != nil {
		secret, err := s.creds.Get(project.ID)
		if err != nil {
			log.WithError(err).WithField("project", project.Name).
				Debug("Failed to read credentials")
		} else if secret != "" {
			cfg.Password = secret
		}
	}

	if err := s.connect(ctx, project.ID, cfg); err != nil {
		if ctx.Err() != nil {
			s.markCancelled(project.ID)
			return false, 0
		}
		s.markError(project.ID, err)
		return false, 0
	}

	diffs, err := s.analyze(ctx, project, cfg)
	if err != nil {
		if ctx.Err() != nil {
			s.markCancelled(project.ID)
			return false, 0
		}
		s.markError(project.ID, err)
		return false, 0
	}

	toUpload := filterUploads(diffs, spec.onlyPaths)
	now := s.clock.Now()
	s.store.update(project.ID, func(sess *Session) {
		sess.FilesTotal = len(toUpload)
		sess.Files = make([]FileState, len(toUpload))
		for i, diff := range toUpload {
			sess.Files[i] = FileState{
				Path:   diff.Path,
				Status: FilePending,
				Size:   diff.LocalSize,
			}
		}
		if sess.Progress < 20 {
			sess.Progress = 20
		}
		sess.appendLog(now, LogInfo,
			fmt.Sprintf("%d file(s) to upload", len(toUpload)), "")
	})

	if len(toUpload) == 0 {
		s.store.update(project.ID, func(sess *Session) {
			sess.Stage = StageComplete
			sess.Progress = 100
			sess.appendLog(s.clock.Now(), LogSuccess, "Already up to date", "")
		})
		s.recordLastSync(project)
		return true, 0
	}

	s.store.update(project.ID, func(sess *Session) {
		sess.Stage = StageUploading
	})

	uploadCtx, cancel := context.WithTimeout(ctx, uploadTimeout)
	defer cancel()
	result, err := s.engine.Sync(uploadCtx, project.LocalPath, cfg, project.ID,
		transfer.Options{Files: toUpload}, s.events)

	// All engine events have been sent by now; make sure they are also
	// applied before inspecting or touching the session.
	s.drainEvents()

	switch {
	case ctx.Err() != nil || result.Cancelled:
		s.markCancelled(project.ID)
		return false, result.FilesUploaded
	case err != nil:
		s.markError(project.ID, err)
		return false, result.FilesUploaded
	case len(result.Errors) > 0:
		s.store.update(project.ID, func(sess *Session) {
			sess.Stage = StageError
			if sess.Error == "" {
				sess.Error = fmt.Sprintf("%d file(s) failed to upload",
					len(result.Errors))
			}
		})
		return false, result.FilesUploaded
	default:
		s.recordLastSync(project)
		s.store.update(project.ID, func(sess *Session) {
			sess.Stage = StageComplete
			sess.Progress = 100
		})
		return true, result.FilesUploaded
	}
}

// connect runs the connection phase: up to MaxAttempts tries with
// exponential backoff between them. The backoff wait aborts immediately on
// cancellation. Each attempt refreshes the session's connection timestamp,
// so the cooldown window after exhaustion is measured from the last try,
// not the first.
func (s *Syncer) connect(ctx context.Context, projectID string, cfg transfer.Config) error {
	var lastErr error
	for attempt := 1; attempt <= s.policy.MaxAttempts; attempt++ {
		now := s.clock.Now()
		s.store.update(projectID, func(sess *Session) {
			sess.Stage = StageConnecting
			sess.Retry.CurrentAttempt = attempt
			sess.Retry.NextRetryAt = nil
			sess.LastConnectionAttempt = now
			sess.appendLog(now, LogInfo, fmt.Sprintf(
				"Connecting to %s (attempt %d/%d)",
				cfg.Host, attempt, s.policy.MaxAttempts), "")
		})

		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := s.engine.TestConnection(connectCtx, cfg)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err

		if s.policy.Exhausted(attempt + 1) {
			// That was the final attempt; don't wait for a retry that
			// will never happen.
			break
		}

		delay := s.policy.Delay(attempt)
		nextRetry := s.clock.Now().Add(delay)
		s.store.update(projectID, func(sess *Session) {
			sess.Stage = StageRetrying
			sess.Retry.NextRetryAt = &nextRetry
			sess.Retry.LastError = err.Error()
			sess.appendLog(s.clock.Now(), LogWarning, fmt.Sprintf(
				"Connection failed, retrying in %v: %v", delay, err), "")
		})

		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return errors.WithContext(lastErr, fmt.Sprintf(
		"connection failed after %d attempts", s.policy.MaxAttempts))
}

func (s *Syncer) analyze(ctx context.Context, project config.Project,
	cfg transfer.Config) ([]transfer.FileDiff, error) {

	now := s.clock.Now()
	s.store.update(project.ID, func(sess *Session) {
		sess.Stage = StageAnalyzing
		sess.Retry = RetryState{MaxAttempts: s.policy.MaxAttempts}
		if sess.Progress < 10 {
			sess.Progress = 10
		}
		sess.appendLog(now, LogInfo, "Connection established, analyzing files", "")
	})

	diffCtx, cancel := context.WithTimeout(ctx, diffTimeout)
	defer cancel()
	return s.engine.GetDiff(diffCtx, project.LocalPath, cfg)
}

func (s *Syncer) markCancelled(projectID string) {
	s.store.update(projectID, func(sess *Session) {
		sess.Stage = StageCancelled
		sess.CurrentFile = ""
		if len(sess.Logs) == 0 ||
			sess.Logs[len(sess.Logs)-1].Message != "Sync cancelled" {
			sess.appendLog(s.clock.Now(), LogWarning, "Sync cancelled", "")
		}
	})
}

func (s *Syncer) markError(projectID string, err error) {
	message := err.Error()
	connectionClass := isConnectionError(err)
	s.store.update(projectID, func(sess *Session) {
		sess.Stage = StageError
		sess.Error = message
		sess.Retry.LastError = message
		if connectionClass {
			sess.LastConnectionFailed = true
		}
		sess.appendLog(s.clock.Now(), LogError, message, "")
	})
}

func (s *Syncer) recordLastSync(project config.Project) {
	if s.projects == nil {
		return
	}
	if err := s.projects.SetLastSync(project.ID, s.clock.Now()); err != nil {
		log.WithError(err).WithField("project", project.Name).
			Warn("Failed to record sync time")
	}
}

func (s *Syncer) consumeEvents() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		case ack := <-s.flush:
			s.drainPending()
			close(ack)
		case <-s.quit:
			return
		}
	}
}

func (s *Syncer) drainPending() {
	for {
		select {
		case ev := <-s.events:
			s.handleEvent(ev)
		default:
			return
		}
	}
}

// drainEvents blocks until every event queued so far has been applied.
func (s *Syncer) drainEvents() {
	ack := make(chan struct{})
	select {
	case s.flush <- ack:
		<-ack
	case <-s.quit:
	}
}

func (s *Syncer) handleEvent(ev transfer.Event) {
	s.store.update(ev.ProjectID, func(sess *Session) {
		applyEvent(sess, ev)
	})

	s.mu.Lock()
	hook := s.onEvent
	s.mu.Unlock()
	if hook != nil {
		hook(ev)
	}
}

func filterUploads(diffs []transfer.FileDiff, onlyPaths []string) []transfer.FileDiff {
	var only map[string]bool
	if onlyPaths != nil {
		only = make(map[string]bool, len(onlyPaths))
		for _, path := range onlyPaths {
			only[path] = true
		}
	}

	var out []transfer.FileDiff
	for _, diff := range diffs {
		if !diff.NeedsUpload() {
			continue
		}
		if only != nil && !only[diff.Path] {
			continue
		}
		out = append(out, diff)
	}
	return out
}

// isConnectionError reports whether the failure is host-reachability
// related rather than a per-file problem. Only these failures arm the
// post-failure cooldown. Remote error strings may be localized, hence the
// French spelling alongside the English one.
func isConnectionError(err error) bool {
	msg := strings.ToLower(errors.RootCause(err).Error() + " " + err.Error())
	for _, marker := range []string{"timeout", "timed out", "connection", "connexion"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
