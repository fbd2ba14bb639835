package processor

import (
	"errors"
	"fmt"
	"strings"
)

var ErrEmptyQueue = errors.New("queue is empty, nothing to run")

// ProcessFailedError reports the first job of a run that exited unsuccessfully.
type ProcessFailedError struct {
	Job      Job
	ExitCode int
	Stdout   string
	Stderr   string
	Err      error
}

func newProcessFailedError(res Result) *ProcessFailedError {
	return &ProcessFailedError{
		Job:      res.Job,
		ExitCode: res.ExitCode,
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		Err:      res.Err,
	}
}

func (e *ProcessFailedError) Error() string {
	msg := fmt.Sprintf("job %s failed with exit code %d", e.Job, e.ExitCode)
	if out := strings.TrimSpace(e.Stderr); out != "" {
		msg += ": " + out
	} else if out := strings.TrimSpace(e.Stdout); out != "" {
		msg += ": " + out
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProcessFailedError) Unwrap() error {
	return e.Err
}
