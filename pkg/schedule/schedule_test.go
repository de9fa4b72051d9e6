package schedule

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/laforge-app/laforge/pkg/config"
)

func TestExpression(t *testing.T) {
	tests := []struct {
		name     string
		sched    config.Schedule
		expExpr  string
		expError bool
	}{
		{
			name:    "hourly",
			sched:   config.Schedule{Type: config.ScheduleHourly, Minute: 30},
			expExpr: "30 * * * *",
		},
		{
			name:    "daily",
			sched:   config.Schedule{Type: config.ScheduleDaily, Minute: 0, Hour: 3},
			expExpr: "0 3 * * *",
		},
		{
			name: "weekly",
			sched: config.Schedule{Type: config.ScheduleWeekly,
				Minute: 15, Hour: 8, Weekday: 1},
			expExpr: "15 8 * * 1",
		},
		{
			name:    "monthly",
			sched:   config.Schedule{Type: config.ScheduleMonthly, Minute: 0, Hour: 6},
			expExpr: "0 6 1 * *",
		},
		{
			name: "custom",
			sched: config.Schedule{Type: config.ScheduleCustom,
				CronExpression: "*/10 * * * *"},
			expExpr: "*/10 * * * *",
		},
		{
			name: "invalid custom",
			sched: config.Schedule{Type: config.ScheduleCustom,
				CronExpression: "not a cron"},
			expError: true,
		},
		{
			name:     "unknown type",
			sched:    config.Schedule{Type: "fortnightly"},
			expError: true,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			expr, err := Expression(test.sched)
			if test.expError {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, test.expExpr, expr)
		})
	}
}

func TestSetAndRemove(t *testing.T) {
	s := New(func(string) {})

	sched := config.Schedule{Enabled: true, Type: config.ScheduleHourly}
	assert.NoError(t, s.Set("proj-1", sched))

	_, ok := s.NextRun("proj-1")
	assert.True(t, ok)

	// Replacing the schedule leaves a single entry.
	assert.NoError(t, s.Set("proj-1", sched))
	assert.Len(t, s.entries, 1)

	s.Remove("proj-1")
	_, ok = s.NextRun("proj-1")
	assert.False(t, ok)
}

func TestDisabledScheduleRemovesEntry(t *testing.T) {
	s := New(func(string) {})

	assert.NoError(t, s.Set("proj-1",
		config.Schedule{Enabled: true, Type: config.ScheduleHourly}))
	assert.NoError(t, s.Set("proj-1",
		config.Schedule{Enabled: false, Type: config.ScheduleHourly}))

	_, ok := s.NextRun("proj-1")
	assert.False(t, ok)
}
