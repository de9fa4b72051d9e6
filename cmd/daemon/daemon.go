package daemon

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/laforge-app/laforge/cmd/util"
	"github.com/laforge-app/laforge/pkg/config"
	"github.com/laforge-app/laforge/pkg/errors"
	"github.com/laforge-app/laforge/pkg/fswatch"
	"github.com/laforge-app/laforge/pkg/notify"
	"github.com/laforge-app/laforge/pkg/schedule"
	libsync "github.com/laforge-app/laforge/pkg/sync"
	"github.com/laforge-app/laforge/pkg/transfer"
)

// New creates a new `daemon` command.
func New() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled syncs in the background.",
		Long: "Run in the foreground and fire syncs according to each\n" +
			"project's schedule. With --watch, projects are also synced\n" +
			"whenever their local directory changes.",
		Run: func(_ *cobra.Command, _ []string) {
			if err := run(watch); err != nil {
				util.HandleFatalError(err)
			}
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false,
		"also sync projects when their local files change")
	return cmd
}

func run(watch bool) error {
	projects, err := config.NewProjectStore()
	if err != nil {
		return errors.WithContext(err, "open project registry")
	}

	creds, err := config.NewCredentialStore()
	if err != nil {
		return errors.WithContext(err, "open credential store")
	}

	syncer := libsync.New(transfer.NewEngine(), projects, creds,
		notify.NewTracker(notify.LogIndicator{}))
	defer syncer.Close()

	d := &daemon{projects: projects, syncer: syncer}
	if err := d.installSchedules(); err != nil {
		return err
	}
	defer d.scheduler.Stop()

	if watch {
		if err := d.installWatchers(); err != nil {
			return err
		}
	}

	log.Info("Daemon running. Press Ctrl+C to stop.")
	exit := make(chan os.Signal, 1)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)
	<-exit
	log.Info("Shutting down")
	return nil
}

type daemon struct {
	projects  *config.ProjectStore
	syncer    *libsync.Syncer
	scheduler *schedule.Scheduler
}

func (d *daemon) installSchedules() error {
	d.scheduler = schedule.New(d.runScheduled)

	projects, err := d.projects.List()
	if err != nil {
		return err
	}

	for _, project := range projects {
		if project.Schedule == nil || !project.Schedule.Enabled {
			continue
		}
		if err := d.scheduler.Set(project.ID, *project.Schedule); err != nil {
			log.WithError(err).WithField("project", project.Name).
				Warn("Skipping invalid schedule")
		}
	}

	d.scheduler.Start()
	return nil
}

// runScheduled fires a sync for a schedule trigger and records the outcome
// on the project's schedule.
func (d *daemon) runScheduled(projectID string) {
	project, err := d.projects.Get(projectID)
	if err != nil {
		log.WithError(err).WithField("project", projectID).
			Warn("Scheduled project no longer exists")
		d.scheduler.Remove(projectID)
		return
	}

	if decision := d.syncer.CanStart(projectID); !decision.Allowed {
		log.WithFields(log.Fields{
			"project": project.Name,
			"reason":  decision.Reason,
		}).Info("Skipping scheduled sync")
		return
	}

	d.syncer.Start(project, func(ok bool, _ int) {
		result := "success"
		if !ok {
			result = "error"
		}
		err := d.projects.SetScheduleResult(projectID, time.Now(), result)
		if err != nil {
			log.WithError(err).WithField("project", project.Name).
				Warn("Failed to record schedule result")
		}
	})
}

func (d *daemon) installWatchers() error {
	projects, err := d.projects.List()
	if err != nil {
		return err
	}

	for _, project := range projects {
		changes, err := fswatch.Watch(project.LocalPath)
		if err != nil {
			log.WithError(err).WithField("project", project.Name).
				Warn("Failed to watch project directory")
			continue
		}

		project := project
		go func() {
			for range changes {
				if decision := d.syncer.CanStart(project.ID); !decision.Allowed {
					continue
				}
				log.WithField("project", project.Name).
					Info("Local files changed, syncing")
				d.syncer.Start(project, nil)
			}
		}()
	}
	return nil
}
