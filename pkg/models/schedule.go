package models

import (
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

// ErrInvalidSchedule is returned when a cron expression cannot be parsed.
var ErrInvalidSchedule = errors.New("invalid schedule configuration")

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Schedule is the scheduling metadata kept on a workflow with a schedule trigger.
type Schedule struct {
	// CronExpression uses the standard 5-field format or a descriptor like @every 1m.
	CronExpression string `json:"cron_expression"`

	// NextRunAt is the next time the scheduler will fire the workflow.
	NextRunAt *time.Time `json:"next_run_at,omitempty"`

	// LastScheduledAt is the last time the scheduler fired the workflow.
	LastScheduledAt *time.Time `json:"last_scheduled_at,omitempty"`

	// Active is true while the workflow owns a scheduler entry.
	Active bool `json:"active"`
}

// ParseCron validates a cron expression.
func ParseCron(expr string) (cron.Schedule, error) {
	if expr == "" {
		return nil, ErrInvalidSchedule
	}

	s, err := cronParser.Parse(expr)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchedule, err)
	}

	return s, nil
}

// NextAfter computes the next due time after the reference time.
func (s *Schedule) NextAfter(reference time.Time) error {
	parsed, err := ParseCron(s.CronExpression)
	if err != nil {
		return err
	}

	next := parsed.Next(reference).UTC()
	s.NextRunAt = &next

	return nil
}
