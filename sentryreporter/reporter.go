// Package sentryreporter implements jobworker.ErrorReporter
// by capturing errors as Sentry events.
package sentryreporter

import (
	"context"
	"strconv"
	"time"

	"github.com/domonda/go-errs"
	"github.com/getsentry/sentry-go"

	"github.com/domonda/go-jobrunner"
	"github.com/domonda/go-jobrunner/jobworker"
)

var _ jobworker.ErrorReporter = new(Reporter)

// Reporter captures job failures with a Sentry hub.
// Job failures are tagged with job_type and job_id.
type Reporter struct {
	hub *sentry.Hub
}

// New returns a Reporter with a new Sentry client for options.
// An empty options.Dsn results in a Reporter that drops all events.
func New(options sentry.ClientOptions) (r *Reporter, err error) {
	defer errs.WrapWithFuncParams(&err, options.Environment)

	client, err := sentry.NewClient(options)
	if err != nil {
		return nil, err
	}
	return NewWithHub(sentry.NewHub(client, sentry.NewScope())), nil
}

// NewWithHub returns a Reporter using hub,
// for example sentry.CurrentHub().
func NewWithHub(hub *sentry.Hub) *Reporter {
	return &Reporter{hub: hub}
}

func (r *Reporter) ReportError(ctx context.Context, job *jobrunner.Job, err error) {
	hub := r.hub.Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		if job != nil {
			scope.SetTag("job_type", job.JobType)
			scope.SetTag("job_id", strconv.FormatInt(job.ID, 10))
			scope.SetContext("job", sentry.Context{
				"priority":  job.Priority,
				"retries":   job.Retries,
				"createdAt": job.CreatedAt,
				"data":      string(job.Data),
			})
		}
		hub.CaptureException(err)
	})
}

// Flush waits until buffered events are sent or the timeout is reached.
// Returns false if the timeout was reached.
func (r *Reporter) Flush(timeout time.Duration) bool {
	return r.hub.Flush(timeout)
}
