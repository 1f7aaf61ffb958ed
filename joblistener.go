package jobrunner

import (
	"context"
	"slices"
	"sync"

	"github.com/domonda/go-errs"
)

// JobStoppedListener is notified by workers after the outcome
// of a job run has been committed.
// jobErr is nil if the job succeeded and was deleted,
// else the job was kept with the failure recorded.
type JobStoppedListener interface {
	OnJobStopped(ctx context.Context, job *Job, jobErr error)
}

type JobStoppedListenerFunc func(ctx context.Context, job *Job, jobErr error)

func (f JobStoppedListenerFunc) OnJobStopped(ctx context.Context, job *Job, jobErr error) {
	f(ctx, job, jobErr)
}

type listenerEntry struct {
	listener JobStoppedListener
}

var (
	jobStoppedListeners    []*listenerEntry
	jobStoppedListenersMtx sync.RWMutex
)

// AddJobStoppedListener adds a listener for all jobs
// and returns a function that removes it again.
func AddJobStoppedListener(listener JobStoppedListener) (remove func()) {
	jobStoppedListenersMtx.Lock()
	defer jobStoppedListenersMtx.Unlock()

	entry := &listenerEntry{listener}
	jobStoppedListeners = append(jobStoppedListeners, entry)

	return func() {
		jobStoppedListenersMtx.Lock()
		defer jobStoppedListenersMtx.Unlock()

		jobStoppedListeners = slices.DeleteFunc(slices.Clone(jobStoppedListeners), func(e *listenerEntry) bool {
			return e == entry
		})
	}
}

// NotifyJobStopped calls all listeners added with AddJobStoppedListener.
// Panics of listeners are recovered and logged.
func NotifyJobStopped(ctx context.Context, job *Job, jobErr error) {
	jobStoppedListenersMtx.RLock()
	listeners := jobStoppedListeners
	jobStoppedListenersMtx.RUnlock()

	for _, entry := range listeners {
		notifyJobStopped(ctx, entry.listener, job, jobErr)
	}
}

func notifyJobStopped(ctx context.Context, listener JobStoppedListener, job *Job, jobErr error) {
	defer errs.RecoverAndLogPanicWithFuncParams(log.ErrorWriter(), job, jobErr)

	listener.OnJobStopped(ctx, job, jobErr)
}
