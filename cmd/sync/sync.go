package sync

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/laforge-app/laforge/cmd/util"
	"github.com/laforge-app/laforge/pkg/config"
	"github.com/laforge-app/laforge/pkg/errors"
	"github.com/laforge-app/laforge/pkg/notify"
	libsync "github.com/laforge-app/laforge/pkg/sync"
	"github.com/laforge-app/laforge/pkg/transfer"
)

// New creates a new `sync` command.
func New() *cobra.Command {
	var retryFailed bool

	cmd := &cobra.Command{
		Use:   "sync PROJECT_ID",
		Short: "Publish a project to its remote host.",
		Long: "Publish the project's local directory to its configured remote\n" +
			"host. Only files that were added or changed since the last sync\n" +
			"are uploaded.",
		Args: cobra.ExactArgs(1),
		Run: func(_ *cobra.Command, args []string) {
			if err := run(args[0], retryFailed); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false,
		"only retry the files that failed during the previous sync")
	return cmd
}

func run(projectID string, retryFailed bool) error {
	projects, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}

	project, err := projects.Get(projectID)
	if err != nil {
		return err
	}

	creds, err := config.NewCredentialStore()
	if err != nil {
		return errors.WithContext(err, "open credential store")
	}

	syncer := libsync.New(transfer.NewEngine(), projects, creds,
		notify.NewTracker(notify.LogIndicator{}))
	defer syncer.Close()
	syncer.OnEvent(printEvent)

	done := make(chan bool, 1)
	onComplete := func(ok bool, uploaded int) {
		if ok {
			fmt.Printf("Synced %d file(s).\n", uploaded)
		}
		done <- ok
	}

	if retryFailed {
		syncer.RetryFailedFiles(project, onComplete)
	} else {
		syncer.Start(project, onComplete)
	}

	// Ctrl+C cancels the run. The syncer winds down and reports through
	// the completion callback, so we keep waiting on done.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupts)

	for {
		select {
		case ok := <-done:
			if !ok {
				return runError(syncer.Session(projectID))
			}
			return nil
		case <-interrupts:
			fmt.Println("Cancelling...")
			syncer.Cancel(projectID)
		}
	}
}

func runError(sess libsync.Session) error {
	switch sess.Stage {
	case libsync.StageCancelled:
		return errors.NewFriendlyError("The sync was cancelled.")
	case libsync.StageError:
		if sess.Error != "" {
			return errors.NewFriendlyError("The sync failed: %s", sess.Error)
		}
	}
	return errors.New("sync failed")
}

func printEvent(ev transfer.Event) {
	switch ev.Kind {
	case transfer.EventFileStart:
		fmt.Printf("  %s...\n", ev.File)
	case transfer.EventFileError:
		fmt.Printf("  %s failed: %s\n", ev.File, ev.Message)
	default:
		// Terminal events are reported through the completion callback.
		if ev.Kind.Terminal() {
			return
		}
		log.WithFields(log.Fields{
			"event":    ev.Kind,
			"progress": ev.Progress,
		}).Debug("Sync event")
	}
}
