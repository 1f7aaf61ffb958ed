package jobworkerdb

import (
	"context"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-sqldb/db"

	"github.com/domonda/go-jobrunner"
)

// JobAvailableChannel is the PostgreSQL notification channel
// the insert trigger of background_jobs notifies with the job type as payload.
const JobAvailableChannel = "background_job_available"

// SetJobAvailableListener listens on JobAvailableChannel
// and calls callback with the job type of every inserted job.
// A nil callback stops listening.
func (s *Store) SetJobAvailableListener(ctx context.Context, callback func(jobType string)) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx, callback)

	if s.closed.Load() {
		return jobrunner.ErrClosed
	}

	s.listenerMtx.Lock()
	defer s.listenerMtx.Unlock()

	if s.hasJobAvailableListener {
		err = db.Conn(ctx).UnlistenChannel(JobAvailableChannel)
		if err != nil {
			return err
		}
		s.hasJobAvailableListener = false
	}

	if callback == nil {
		return nil
	}

	err = db.Conn(ctx).ListenOnChannel(
		JobAvailableChannel,
		func(channel, payload string) {
			defer errs.RecoverAndLogPanicWithFuncParams(log.ErrorWriter(), channel, payload)

			if s.closed.Load() {
				return
			}
			callback(payload)
		},
		nil,
	)
	if err != nil {
		return err
	}
	s.hasJobAvailableListener = true
	return nil
}
