package processor

import "time"

// Phase is one strictly ordered stage of a copy run.
type Phase string

const (
	PhaseSchema   Phase = "schema"
	PhaseData     Phase = "data"
	PhaseTriggers Phase = "triggers"
)

// Job is a single shell command plus the labels used in logs and errors.
type Job struct {
	Command string
	Table   string
	Phase   Phase
}

func (j Job) String() string {
	if j.Table == "" {
		return string(j.Phase)
	}
	if j.Phase == "" {
		return j.Table
	}
	return string(j.Phase) + ":" + j.Table
}

type Result struct {
	Job      Job
	Success  bool
	ExitCode int
	Stdout   string
	Stderr   string
	Duration time.Duration
	Err      error
}
