// Package schedule runs automatic syncs on a per-project cron schedule.
package schedule

import (
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"github.com/laforge-app/laforge/pkg/config"
	"github.com/laforge-app/laforge/pkg/errors"
)

// TriggerFunc is invoked when a project's schedule fires.
type TriggerFunc func(projectID string)

// Scheduler maps project schedules onto a single cron runner. Setting a
// schedule replaces the project's previous entry.
type Scheduler struct {
	cron    *cron.Cron
	trigger TriggerFunc

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

// New creates a stopped Scheduler. Call Start to begin firing triggers.
func New(trigger TriggerFunc) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		trigger: trigger,
		entries: map[string]cron.EntryID{},
	}
}

// Start begins evaluating schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the scheduler. Triggers already in flight run to completion.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}

// Set installs the schedule for a project. A disabled schedule removes the
// project's entry.
func (s *Scheduler) Set(projectID string, sched config.Schedule) error {
	expr, err := Expression(sched)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[projectID]; ok {
		s.cron.Remove(id)
		delete(s.entries, projectID)
	}

	if !sched.Enabled {
		return nil
	}

	id, err := s.cron.AddFunc(expr, func() {
		log.WithField("project", projectID).Info("Schedule fired")
		s.trigger(projectID)
	})
	if err != nil {
		return errors.WithContext(err, "add schedule")
	}
	s.entries[projectID] = id

	log.WithFields(log.Fields{
		"project": projectID,
		"cron":    expr,
	}).Debug("Schedule installed")
	return nil
}

// Remove drops the project's schedule, if any.
func (s *Scheduler) Remove(projectID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.entries[projectID]; ok {
		s.cron.Remove(id)
		delete(s.entries, projectID)
	}
}

// NextRun returns when the project's schedule fires next.
func (s *Scheduler) NextRun(projectID string) (time.Time, bool) {
	s.mu.Lock()
	id, ok := s.entries[projectID]
	s.mu.Unlock()
	if !ok {
		return time.Time{}, false
	}

	entry := s.cron.Entry(id)
	if !entry.Valid() {
		return time.Time{}, false
	}
	return entry.Next, true
}

// Expression derives the standard five-field cron expression for the
// schedule. Monthly schedules run on the first day of the month.
func Expression(sched config.Schedule) (string, error) {
	var expr string
	switch sched.Type {
	case config.ScheduleHourly:
		expr = fmt.Sprintf("%d * * * *", sched.Minute)
	case config.ScheduleDaily:
		expr = fmt.Sprintf("%d %d * * *", sched.Minute, sched.Hour)
	case config.ScheduleWeekly:
		expr = fmt.Sprintf("%d %d * * %d", sched.Minute, sched.Hour, sched.Weekday)
	case config.ScheduleMonthly:
		expr = fmt.Sprintf("%d %d 1 * *", sched.Minute, sched.Hour)
	case config.ScheduleCustom:
		expr = sched.CronExpression
	default:
		return "", errors.New(fmt.Sprintf("unknown schedule type %q", sched.Type))
	}

	if _, err := cron.ParseStandard(expr); err != nil {
		return "", errors.NewFriendlyError(
			"The schedule expression %q is not a valid cron expression: %s",
			expr, err)
	}
	return expr, nil
}
