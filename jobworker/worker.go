package jobworker

import (
	"context"
	"strings"
	"time"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-types/uu"

	"github.com/domonda/go-jobrunner"
)

const ErrUnknownJobType errs.Sentinel = "unknown job type"

// Worker runs one job at a time from a Storage.
// Multiple workers can run in parallel against the same Storage,
// the row locking of the Storage is their only coordination.
type Worker[C any] struct {
	id       uu.ID
	storage  Storage
	registry *Registry[C]
	env      C
	config   Config
	wakeup   chan struct{}
}

// NewWorker returns a Worker that runs jobs of storage with the handlers
// of registry. The env value is passed to every handler, it is copied
// per job and cloned if it has a method Clone() C.
// env must be safe for concurrent use by multiple workers.
func NewWorker[C any](storage Storage, registry *Registry[C], env C, config Config) *Worker[C] {
	if storage == nil {
		panic("nil Storage")
	}
	if registry == nil {
		panic("nil Registry")
	}
	return &Worker[C]{
		id:       uu.IDv4(),
		storage:  storage,
		registry: registry,
		env:      env,
		config:   config,
		wakeup:   make(chan struct{}, 1),
	}
}

// ID returns the random ID of the worker used for logging.
func (w *Worker[C]) ID() uu.ID {
	return w.id
}

// Wake interrupts the poll interval sleep of the worker.
// Safe to call from any goroutine.
func (w *Worker[C]) Wake() {
	// Non-blocking send, a pending signal is enough
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

// Run runs jobs until ctx is cancelled or, if Config.ShutdownWhenQueueEmpty
// is set, until no job is found.
// Errors while retrieving jobs are reported and logged,
// then retried after the poll interval.
//
// A cancelled ctx does not interrupt a running job,
// Run returns after the job's transaction has been committed.
func (w *Worker[C]) Run(ctx context.Context) error {
	log, ctx := log.With().
		UUID("workerID", w.id).
		SubLoggerContext(ctx)

	log.Debug("Starting the worker").Log()
	defer log.Debug("Worker ended").Log()

	for ctx.Err() == nil {
		job, err := w.RunNextJob(ctx)
		switch {
		case err != nil:
			w.reportError(ctx, nil, err)
			log.ErrorCtx(ctx, "Error while retrieving the next job").
				Err(err).
				Log()

		case job != nil:
			continue

		case w.config.ShutdownWhenQueueEmpty:
			log.Debug("No pending background jobs found, shutting down the worker").Log()
			return nil

		default:
			log.Debug("No pending background jobs found, polling again").
				Any("pollInterval", w.config.pollInterval()).
				Log()
		}

		w.sleep(ctx)
	}
	return ctx.Err()
}

func (w *Worker[C]) sleep(ctx context.Context) {
	timer := time.NewTimer(w.config.pollInterval())
	defer timer.Stop()

	select {
	case <-ctx.Done():
	case <-timer.C:
	case <-w.wakeup:
	}
}

// RunNextJob claims the next job, runs it and deletes it on success
// or records the failure, all within one transaction of the Storage.
// The handler runs within a savepoint of that transaction,
// so its writes are committed together with the deletion of
// a successful job and discarded if the job fails.
//
// Returns the job that was run or nil if there was no job.
// An error is only returned if no job could be claimed
// or if its outcome could not be stored, in which case
// the transaction was rolled back and the job will be claimed again.
// Failures of the job itself are not returned but reported
// to Config.ErrorReporter and passed to the listeners
// of jobrunner.NotifyJobStopped after the commit.
func (w *Worker[C]) RunNextJob(ctx context.Context) (job *jobrunner.Job, err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	// Once claimed, a job runs to completion
	ctx = context.WithoutCancel(ctx)

	var jobTypes []string
	if !w.config.ClaimAnyJobType {
		jobTypes = w.registry.JobTypes()
	}

	var jobErr error
	err = w.storage.Transaction(ctx, func(ctx context.Context) error {
		claimed, err := w.storage.ClaimNextUnlockedJob(ctx, jobTypes)
		if err != nil || claimed == nil {
			return err
		}

		log, ctx := log.With().
			Any("jobID", claimed.ID).
			Str("jobType", claimed.JobType).
			SubLoggerContext(ctx)

		log.Debug("Running job").Log()

		// Writes of a failed handler are discarded
		// before the failure is recorded
		jobErr = w.storage.Savepoint(ctx, func(ctx context.Context) error {
			return w.runJob(ctx, claimed)
		})
		if jobErr == nil {
			log.Debug("Deleting successful job").Log()
			err = w.storage.DeleteSuccessfulJob(ctx, claimed.ID)
		} else {
			err = w.storage.MarkFailedJob(ctx, claimed.ID, jobErr.Error())
		}
		if err != nil {
			return err
		}
		job = claimed
		return nil
	})
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, nil
	}

	if jobErr != nil {
		log, ctx := log.With().
			Any("jobID", job.ID).
			Str("jobType", job.JobType).
			SubLoggerContext(ctx)

		w.reportError(ctx, job, jobErr)
		log.Warn("Job failed: "+errorHeadline(jobErr)).
			Err(jobErr).
			Int("retries", job.Retries+1).
			Log()
	}
	jobrunner.NotifyJobStopped(ctx, job, jobErr)
	return job, nil
}

// runJob resolves the handler of the job and calls it.
// A panic of the handler is recovered and returned as error.
func (w *Worker[C]) runJob(ctx context.Context, job *jobrunner.Job) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = errs.Errorf("job handler panic: %w", errs.AsErrorWithDebugStack(p))
		}
	}()

	handler := w.registry.Resolve(job.JobType)
	if handler == nil {
		return errs.Errorf("%w %q", ErrUnknownJobType, job.JobType)
	}
	return handler(ctx, w.cloneEnv(), job.Data)
}

func (w *Worker[C]) cloneEnv() C {
	if cloner, ok := any(w.env).(interface{ Clone() C }); ok {
		return cloner.Clone()
	}
	return w.env
}

func (w *Worker[C]) reportError(ctx context.Context, job *jobrunner.Job, err error) {
	if w.config.ErrorReporter == nil {
		return
	}
	defer errs.RecoverAndLogPanicWithFuncParams(log.ErrorWriter(), job, err)

	w.config.ErrorReporter.ReportError(ctx, job, err)
}

// errorHeadline returns the first line of the root error message.
func errorHeadline(err error) string {
	headline := errs.Root(err).Error()
	if nl := strings.IndexByte(headline, '\n'); nl > 0 {
		headline = headline[:nl]
	}
	return strings.TrimSpace(headline)
}
