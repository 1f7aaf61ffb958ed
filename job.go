package jobrunner

import (
	"fmt"
	"time"

	"github.com/domonda/go-types/notnull"
	"github.com/domonda/go-types/nullable"
)

// DefaultPriority is the priority of jobs that don't implement PriorityJob.
const DefaultPriority int16 = 0

// Job is a row of the background_jobs table.
//
// A row is pending or retryable work.
// Successful jobs are deleted, failed jobs stay with
// updated Retries, LastRetry and LastError.
type Job struct {
	ID       int64        `db:"id"       json:"id"`
	JobType  string       `db:"job_type" json:"jobType"`
	Data     notnull.JSON `db:"data"     json:"data"`
	Priority int16        `db:"priority" json:"priority"` // Lower values are run first

	Retries   int                     `db:"retries"    json:"retries"`    // Number of failed attempts
	LastRetry time.Time               `db:"last_retry" json:"lastRetry"`  // Time of the last failed attempt
	LastError nullable.NonEmptyString `db:"last_error" json:"lastError"` // Error message of the last failed attempt

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// HasFailed returns if the job has at least one failed attempt.
// Valid to call on a nil receiver.
func (j *Job) HasFailed() bool {
	return j != nil && j.Retries > 0
}

// String implements the fmt.Stringer interface.
// Valid to call on a nil receiver.
func (j *Job) String() string {
	if j == nil {
		return "nil Job"
	}
	return fmt.Sprintf("Job %d, type %s, priority %d, retries %d, created at %s", j.ID, j.JobType, j.Priority, j.Retries, j.CreatedAt)
}
