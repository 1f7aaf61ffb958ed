package jobrunner

import (
	"context"
	"fmt"
	"time"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-types/notnull"
)

const (
	ErrNotInitialized errs.Sentinel = "jobrunner service not initialized"
	ErrClosed         errs.Sentinel = "jobrunner service is closed"
	ErrJobNotFound    errs.Sentinel = "job not found"
	ErrEmptyJobType   errs.Sentinel = "empty job type"
)

// SerializeError is returned by the enqueue functions
// when the job payload could not be encoded as JSON.
// Nothing was written to the database.
type SerializeError struct {
	JobType string
	Err     error
}

func (e *SerializeError) Error() string {
	return fmt.Sprintf("can't serialize payload of job type %q: %s", e.JobType, e.Err)
}

func (e *SerializeError) Unwrap() error { return e.Err }

// InsertError is returned by the enqueue functions
// when the job row could not be inserted.
type InsertError struct {
	JobType string
	Err     error
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("can't insert job of type %q: %s", e.JobType, e.Err)
}

func (e *InsertError) Unwrap() error { return e.Err }

var _ Service = errService{}

type errService struct {
	err error
}

// ServiceWithError returns a Service that returns err from all its methods.
func ServiceWithError(err error) Service {
	return errService{err}
}

func (e errService) InsertJob(context.Context, string, notnull.JSON, int16) (int64, error) {
	return 0, e.err
}
func (e errService) GetJob(context.Context, int64) (*Job, error)   { return nil, e.err }
func (e errService) DeleteJob(context.Context, int64) error        { return e.err }
func (e errService) ResetFailedJob(context.Context, int64) error   { return e.err }
func (e errService) GetStatus(context.Context) (*Status, error)    { return nil, e.err }
func (e errService) GetFailedJobs(context.Context) ([]*Job, error) { return nil, e.err }
func (e errService) PurgeDeadJobs(context.Context, time.Duration) (int, error) {
	return 0, e.err
}
func (e errService) Close() error { return e.err }
