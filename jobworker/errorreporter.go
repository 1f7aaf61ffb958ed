package jobworker

import (
	"context"

	"github.com/domonda/go-jobrunner"
)

// ErrorReporter is the sink for errors of workers.
type ErrorReporter interface {
	// ReportError is called with the failed job and its error,
	// or with a nil job for errors that can't be
	// attributed to a job like failing to retrieve one.
	ReportError(ctx context.Context, job *jobrunner.Job, err error)
}

type ErrorReporterFunc func(ctx context.Context, job *jobrunner.Job, err error)

func (f ErrorReporterFunc) ReportError(ctx context.Context, job *jobrunner.Job, err error) {
	f(ctx, job, err)
}
