package jobworkerdb

import (
	"context"

	"github.com/domonda/go-errs"
	"github.com/domonda/golog"
	rootlog "github.com/domonda/golog/log"

	"github.com/domonda/go-jobrunner"
)

var log = rootlog.NewPackageLogger("jobworkerdb")

func OverrideLogger(logger *golog.Logger) {
	log = logger
}

// InitJobRunner creates a Store with retryPolicy and sets it
// as default service of the jobrunner package.
//
// The connection of github.com/domonda/go-sqldb/db must be set
// and the migrations applied before jobs can be enqueued or run.
func InitJobRunner(ctx context.Context, retryPolicy RetryPolicy) (store *Store, err error) {
	defer errs.WrapWithFuncParams(&err, ctx, retryPolicy)

	store = New(retryPolicy)
	jobrunner.SetService(store)

	status, err := store.GetStatus(ctx)
	if err != nil {
		return nil, err
	}
	if status.NumDeadJobs > 0 {
		log.Warn("Dead jobs in the queue need inspection").
			Int("numDeadJobs", status.NumDeadJobs).
			Log()
	}
	log.Info("Initialized job runner").
		Int("numJobs", status.NumJobs).
		Int("numFailedJobs", status.NumFailedJobs).
		Log()

	return store, nil
}
