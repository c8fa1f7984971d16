package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when RunOnce is called on a stopped runner
	ErrSchedulerNotRunning = errors.New("scheduler is not running")

	// ErrInvalidConfig is returned when a job is registered with an unusable interval
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrJobNotFound is returned when RunOnce names an unknown job
	ErrJobNotFound = errors.New("job not found")

	// ErrJobPanicked wraps a recovered panic from a job body
	ErrJobPanicked = errors.New("job panicked")
)
