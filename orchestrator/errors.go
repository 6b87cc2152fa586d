package orchestrator

import (
	"context"
	"fmt"
	"time"
)

// TimeoutError reports that a stage exceeded its deadline.
type TimeoutError struct {
	Stage   string
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s stage timed out after %s", e.Stage, e.Timeout)
}

// Unwrap lets errors.Is match context.DeadlineExceeded.
func (e *TimeoutError) Unwrap() error {
	return context.DeadlineExceeded
}

// panicError carries a value recovered from a collaborator.
type panicError struct {
	stage string
	value any
}

func (e *panicError) Error() string {
	return fmt.Sprintf("%s stage panicked: %v", e.stage, e.value)
}
