package worker

import (
	"errors"
	"fmt"

	"comicpdf/internal/services"
)

// Kind classifies worker-stage failures.
type Kind string

const (
	KindOutputDirUnwritable   Kind = "output_dir_unwritable"
	KindWorkerUnavailable     Kind = "worker_unavailable"
	KindMalformedOutput       Kind = "malformed_worker_output"
	KindWorkerReportedFailure Kind = "worker_reported_failure"
	KindWorkerTimeout         Kind = "worker_timeout"
	KindNoArtifacts           Kind = "no_artifacts"
)

// Error describes a failed conversion. Stdout and Stderr hold the captured
// output (stderr is truncated to its tail) for operator inspection.
type Error struct {
	Kind    Kind
	Message string
	Stdout  string
	Stderr  string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := fmt.Sprintf("worker %s", e.Kind)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is maps kinds onto the shared services markers.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case KindOutputDirUnwritable, KindWorkerUnavailable:
		return target == services.ErrConfiguration
	case KindWorkerTimeout:
		return target == services.ErrTimeout
	default:
		return target == services.ErrExternalTool
	}
}

// Cause returns the most specific human-readable reason for the failure.
func (e *Error) Cause() string {
	if e == nil {
		return ""
	}
	switch {
	case e.Message != "" && e.Err != nil:
		return e.Message + ": " + e.Err.Error()
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

// KindOf returns the worker error kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var workerErr *Error
	if errors.As(err, &workerErr) {
		return workerErr.Kind, true
	}
	return "", false
}
