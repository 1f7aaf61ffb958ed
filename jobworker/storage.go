package jobworker

import (
	"context"

	"github.com/domonda/go-jobrunner"
)

// Storage is the job table as used by a Worker.
//
// ClaimNextUnlockedJob, Savepoint, DeleteSuccessfulJob and MarkFailedJob
// must be called with the context passed to the txFunc of Transaction.
type Storage interface {
	// Transaction runs txFunc within a transaction that is committed
	// if txFunc returns nil and rolled back otherwise.
	Transaction(ctx context.Context, txFunc func(ctx context.Context) error) error

	// Savepoint calls f within a savepoint of the transaction of ctx.
	// If f returns an error or the savepoint can't be released,
	// the transaction is rolled back to the savepoint and the error
	// is returned. The transaction stays usable after that
	// unless rolling back to the savepoint failed too.
	Savepoint(ctx context.Context, f func(ctx context.Context) error) error

	// ClaimNextUnlockedJob locks and returns the job with the lowest
	// priority and id among the rows not locked by other transactions.
	// Only jobs with a type in jobTypes are considered,
	// a nil jobTypes slice means all types.
	// Returns nil if there is no such job.
	ClaimNextUnlockedJob(ctx context.Context, jobTypes []string) (*jobrunner.Job, error)

	// DeleteSuccessfulJob deletes a job.
	// Deleting a non existing job is not an error.
	DeleteSuccessfulJob(ctx context.Context, id int64) error

	// MarkFailedJob records a failed attempt of a job.
	// Marking a non existing job is not an error.
	MarkFailedJob(ctx context.Context, id int64, errorMsg string) error
}

// JobAvailableNotifier can be implemented by a Storage
// to notify about newly inserted jobs.
type JobAvailableNotifier interface {
	// SetJobAvailableListener sets the callback for new jobs,
	// a nil callback removes the listener.
	SetJobAvailableListener(ctx context.Context, callback func(jobType string)) error
}
