package scheduler

import "errors"

var (
	// ErrInvalidConfig wraps every mailbox runner configuration error
	ErrInvalidConfig = errors.New("invalid mailbox runner configuration")

	// ErrStopTimeout is returned when an in-flight poll outlives the Stop deadline.
	// Transfers recorded by that poll stay recorded; the rest wait for the next run.
	ErrStopTimeout = errors.New("mailbox runner did not stop in time")
)
