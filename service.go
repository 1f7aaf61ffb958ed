package jobrunner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/domonda/go-types/notnull"
)

var service atomic.Pointer[Service]

// SetService sets the Service used by the package level functions.
func SetService(s Service) {
	if s == nil {
		service.Store(nil)
		return
	}
	service.Store(&s)
}

// GetService returns the Service used by the package level functions
// or a Service returning ErrNotInitialized if none was set.
func GetService() Service {
	if s := service.Load(); s != nil {
		return *s
	}
	return ServiceWithError(ErrNotInitialized)
}

func Close() error {
	s := service.Load()
	if s == nil {
		return ErrClosed
	}
	return (*s).Close()
}

// Service is the job table as seen by producers and operators.
type Service interface {
	// InsertJob inserts a job row and returns its id.
	// If ctx carries a database transaction then
	// the row is inserted within that transaction.
	InsertJob(ctx context.Context, jobType string, data notnull.JSON, priority int16) (id int64, err error)

	GetJob(ctx context.Context, id int64) (*Job, error)

	// DeleteJob deletes a job independent of its state.
	DeleteJob(ctx context.Context, id int64) error

	// ResetFailedJob clears the failure bookkeeping of a job
	// so that it can be claimed again immediately.
	ResetFailedJob(ctx context.Context, id int64) error

	GetStatus(context.Context) (*Status, error)

	// GetFailedJobs returns all jobs with at least one failed attempt.
	GetFailedJobs(context.Context) ([]*Job, error)

	// PurgeDeadJobs deletes jobs that exhausted their retries
	// and whose last attempt is older than olderThan.
	PurgeDeadJobs(ctx context.Context, olderThan time.Duration) (numDeleted int, err error)

	Close() error
}

type Status struct {
	NumJobs        int // All rows in the table
	NumFailedJobs  int // Rows with at least one failed attempt
	NumDeadJobs    int // Rows that will not be retried anymore
	NumJobsPerType map[string]int
}

// IsZero returns true if the receiver is nil
// or has no jobs.
// Valid to call on a nil receiver.
func (s *Status) IsZero() bool {
	return s == nil || (s.NumJobs == 0 && s.NumFailedJobs == 0 && s.NumDeadJobs == 0)
}

// String implements the fmt.Stringer interface.
// Valid to call on a nil receiver.
func (s *Status) String() string {
	if s == nil {
		return "nil Status"
	}
	return fmt.Sprintf("Status{NumJobs: %d, NumFailedJobs: %d, NumDeadJobs: %d}", s.NumJobs, s.NumFailedJobs, s.NumDeadJobs)
}

func GetJob(ctx context.Context, id int64) (*Job, error) {
	return GetService().GetJob(ctx, id)
}

// DeleteJob deletes a job from the queue.
func DeleteJob(ctx context.Context, id int64) error {
	return GetService().DeleteJob(ctx, id)
}

// ResetFailedJob resets the failure bookkeeping of a job
// so that it is ready to be re-processed.
func ResetFailedJob(ctx context.Context, id int64) error {
	return GetService().ResetFailedJob(ctx, id)
}

func GetStatus(ctx context.Context) (*Status, error) {
	return GetService().GetStatus(ctx)
}

func GetFailedJobs(ctx context.Context) ([]*Job, error) {
	return GetService().GetFailedJobs(ctx)
}

func PurgeDeadJobs(ctx context.Context, olderThan time.Duration) (int, error) {
	return GetService().PurgeDeadJobs(ctx, olderThan)
}
