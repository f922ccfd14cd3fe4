package scheduler

import "errors"

// Submit errors. A duplicate template is not a failure for the cron trigger:
// the queued run will cover the same due dates.
var (
	ErrSchedulerNotRunning = errors.New("recurring scheduler is not running")
	ErrJobQueueFull        = errors.New("recurring job queue is full")
	ErrJobAlreadyQueued    = errors.New("recurring template already queued")
	ErrInvalidConfig       = errors.New("invalid recurring scheduler configuration")
)
