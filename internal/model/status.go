package model

import "fmt"

// JobStatus is the lifecycle of one supervised command. A streaming
// connection is Connected while its job is idle or finished and Running
// while its job is running.
type JobStatus string

const (
	StatusIdle    JobStatus = "idle"
	StatusRunning JobStatus = "running"
	StatusSuccess JobStatus = "success"
	StatusError   JobStatus = "error"
)

var allowedTransitions = map[JobStatus]map[JobStatus]bool{
	StatusIdle: {
		StatusRunning: true,
		StatusError:   true, // spawn failed
	},
	StatusRunning: {
		StatusSuccess: true,
		StatusError:   true,
	},
	StatusSuccess: {
		StatusRunning: true,
	},
	StatusError: {
		StatusRunning: true,
	},
}

func IsKnownStatus(status JobStatus) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func CanTransition(from, to JobStatus) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// IsTerminal reports whether a job in this status has a final exit result.
func (s JobStatus) IsTerminal() bool {
	return s == StatusSuccess || s == StatusError
}

func TransitionStatus(current *JobStatus, to JobStatus, jobID string) error {
	from := *current
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid job status transition: %q -> %q (job_id=%s)", from, to, jobID)
	}
	*current = to
	return nil
}
