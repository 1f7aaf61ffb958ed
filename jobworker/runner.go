package jobworker

import (
	"context"
	"errors"

	"github.com/domonda/go-errs"
	"golang.org/x/sync/errgroup"
)

// Runner runs multiple workers that share a Storage,
// a Registry and a context value.
type Runner[C any] struct {
	storage Storage
	config  Config
	workers []*Worker[C]
}

// NewRunner returns a Runner with numWorkers workers.
// See NewWorker for the arguments.
func NewRunner[C any](storage Storage, registry *Registry[C], env C, config Config, numWorkers int) (*Runner[C], error) {
	if numWorkers <= 0 {
		return nil, errs.New("need at least 1 worker")
	}
	r := &Runner[C]{
		storage: storage,
		config:  config,
		workers: make([]*Worker[C], numWorkers),
	}
	for i := range r.workers {
		r.workers[i] = NewWorker(storage, registry, env, config)
	}
	return r, nil
}

func (r *Runner[C]) Workers() []*Worker[C] {
	return r.workers
}

// Run runs all workers in parallel and waits until they have finished.
// Returns nil if the workers stopped because ctx was cancelled
// or because the queue was empty with Config.ShutdownWhenQueueEmpty.
//
// If Config.ListenJobAvailable is set and the Storage implements
// JobAvailableNotifier, then idle workers are woken up
// when new jobs of their types are inserted.
func (r *Runner[C]) Run(ctx context.Context) error {
	if notifier, ok := r.storage.(JobAvailableNotifier); ok && r.config.ListenJobAvailable {
		err := notifier.SetJobAvailableListener(ctx, r.onJobAvailable)
		if err != nil {
			// Polling still works without notifications
			r.reportListenerError(ctx, err)
		} else {
			defer func() {
				err := notifier.SetJobAvailableListener(context.WithoutCancel(ctx), nil)
				if err != nil {
					r.reportListenerError(ctx, err)
				}
			}()
		}
	}

	log.Info("Starting workers").
		Int("numWorkers", len(r.workers)).
		Log()

	group, groupCtx := errgroup.WithContext(ctx)
	for _, worker := range r.workers {
		group.Go(func() error {
			err := worker.Run(groupCtx)
			if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		})
	}
	err := group.Wait()

	log.Info("Workers have finished").Log()
	return err
}

func (r *Runner[C]) onJobAvailable(jobType string) {
	for _, worker := range r.workers {
		if worker.config.ClaimAnyJobType || worker.registry.HasJobType(jobType) {
			worker.Wake()
		}
	}
}

func (r *Runner[C]) reportListenerError(ctx context.Context, err error) {
	log.ErrorCtx(ctx, "Error while setting the job available listener").
		Err(err).
		Log()
	if r.config.ErrorReporter == nil {
		return
	}
	defer errs.RecoverAndLogPanicWithFuncParams(log.ErrorWriter(), err)

	r.config.ErrorReporter.ReportError(ctx, nil, err)
}
