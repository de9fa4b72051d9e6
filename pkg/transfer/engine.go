package transfer

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/laforge-app/laforge/pkg/errors"
)

const (
	// DefaultParallelConnections is the upload pool size when the caller
	// doesn't ask for a specific one.
	DefaultParallelConnections = 4

	// MaxParallelConnections caps the upload pool size. Shared hosts tend to
	// throttle or drop clients that open more sessions than this.
	MaxParallelConnections = 8

	// maxFailedFiles is the number of failed uploads after which the
	// remaining files are abandoned. A burst of failures almost always means
	// the connection is gone rather than a problem with individual files.
	maxFailedFiles = 3
)

// Engine performs the actual connection, diffing, and file transfer.
// The sync orchestrator drives it via these operations and observes upload
// progress through the event channel passed to Sync.
type Engine interface {
	// TestConnection dials the remote host and reports whether a session
	// can be established with the given credentials.
	TestConnection(ctx context.Context, cfg Config) error

	// GetDiff compares the local directory against the remote directory.
	GetDiff(ctx context.Context, localPath string, cfg Config) ([]FileDiff, error)

	// Sync uploads the added and modified files in opts.Files, emitting
	// progress events tagged with projectID. It blocks until the upload
	// finishes and all events have been sent.
	Sync(ctx context.Context, localPath string, cfg Config, projectID string,
		opts Options, events chan<- Event) (Result, error)

	// CancelSync asks a running upload for the given project to stop.
	// Best-effort: the file currently in flight is allowed to finish.
	CancelSync(projectID string)
}

// NewEngine returns an Engine that speaks FTP and SFTP.
func NewEngine() Engine {
	return &engine{active: map[string]*cancelFlag{}}
}

type cancelFlag struct {
	mu        sync.Mutex
	cancelled bool
}

func (f *cancelFlag) set() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = true
}

func (f *cancelFlag) get() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancelled
}

type engine struct {
	mu     sync.Mutex
	active map[string]*cancelFlag
}

func (e *engine) TestConnection(ctx context.Context, cfg Config) error {
	c, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	return c.close()
}

func (e *engine) GetDiff(ctx context.Context, localPath string, cfg Config) (
	[]FileDiff, error) {

	local, err := scanLocal(localPath)
	if err != nil {
		return nil, errors.WithContext(err, "scan local files")
	}

	c, err := dial(ctx, cfg)
	if err != nil {
		return nil, errors.WithContext(err, "connect")
	}
	defer c.close()

	remote, err := c.list(cfg.RemotePath)
	if err != nil {
		return nil, errors.WithContext(err, "scan remote files")
	}

	return computeDiff(local, remote), nil
}

func (e *engine) Sync(ctx context.Context, localPath string, cfg Config,
	projectID string, opts Options, events chan<- Event) (Result, error) {

	var files []FileDiff
	for _, f := range opts.Files {
		if f.NeedsUpload() {
			files = append(files, f)
		}
	}

	tracker := newProgressTracker(projectID, len(files), events)
	if len(files) == 0 {
		tracker.complete()
		return Result{}, nil
	}

	flag := e.register(projectID)
	defer e.unregister(projectID)

	cancelled := func() bool {
		return flag.get() || ctx.Err() != nil
	}

	numWorkers := opts.Parallel
	if numWorkers <= 0 {
		numWorkers = DefaultParallelConnections
	}
	if numWorkers > MaxParallelConnections {
		numWorkers = MaxParallelConnections
	}
	if numWorkers > len(files) {
		numWorkers = len(files)
	}

	jobs := make(chan FileDiff)
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			// Each worker opens its own connection. Sessions aren't safe to
			// share, and parallel uploads over one session wouldn't overlap
			// anyway.
			c, err := dial(ctx, cfg)
			if err != nil {
				for f := range jobs {
					if cancelled() || tracker.shouldStop() {
						continue
					}
					tracker.fileError(f.Path, err.Error())
				}
				return
			}
			defer c.close()

			for f := range jobs {
				if cancelled() || tracker.shouldStop() {
					continue
				}

				tracker.fileStart(f.Path)
				local := filepath.Join(localPath, filepath.FromSlash(f.Path))
				remote := path.Join(cfg.RemotePath, f.Path)
				if err := c.upload(local, remote); err != nil {
					tracker.fileError(f.Path, err.Error())
				} else {
					tracker.fileComplete(f.Path)
				}
			}
		}()
	}

	for _, f := range files {
		jobs <- f
	}
	close(jobs)
	wg.Wait()

	if cancelled() {
		log.WithField("project", projectID).Info("Upload cancelled")
		tracker.cancelled()
		return Result{
			FilesUploaded: tracker.completedCount(),
			Cancelled:     true,
		}, nil
	}

	if errs := tracker.failedFiles(); len(errs) > 0 {
		tracker.error(fmt.Sprintf("%d file(s) failed", len(errs)))
		return Result{
			FilesUploaded: tracker.completedCount(),
			Errors:        errs,
		}, nil
	}

	tracker.complete()
	return Result{FilesUploaded: tracker.completedCount()}, nil
}

func (e *engine) CancelSync(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if flag, ok := e.active[projectID]; ok {
		flag.set()
	}
}

func (e *engine) register(projectID string) *cancelFlag {
	e.mu.Lock()
	defer e.mu.Unlock()
	flag := &cancelFlag{}
	e.active[projectID] = flag
	return flag
}

func (e *engine) unregister(projectID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.active, projectID)
}
