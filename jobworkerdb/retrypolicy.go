package jobworkerdb

import (
	"math"
	"time"

	"github.com/domonda/go-jobrunner"
)

// RetryPolicy decides when failed jobs are claimed again.
//
// After the n-th failed attempt a job is not claimed
// before BaseDelay * 2^(n-1) have passed since that attempt.
// Jobs with MaxRetries failed attempts are never claimed again
// and stay in the table for inspection until they are
// reset, deleted, or purged.
type RetryPolicy struct {
	// MaxRetries is the number of failed attempts after which
	// a job is dead. Zero means jobs are retried forever.
	MaxRetries int

	// BaseDelay is the delay after the first failed attempt.
	BaseDelay time.Duration
}

// DefaultRetryPolicy retries forever with a base delay of one minute.
var DefaultRetryPolicy = RetryPolicy{BaseDelay: time.Minute}

// IsDead returns if job will not be claimed again.
func (p RetryPolicy) IsDead(job *jobrunner.Job) bool {
	return p.MaxRetries > 0 && job.Retries >= p.MaxRetries
}

// Delay returns the backoff delay after the given number of failed attempts.
func (p RetryPolicy) Delay(retries int) time.Duration {
	if retries <= 0 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(2, float64(retries-1))
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// NextAttempt returns the earliest time job can be claimed again
// or the zero time if job is dead.
func (p RetryPolicy) NextAttempt(job *jobrunner.Job) time.Time {
	if p.IsDead(job) {
		return time.Time{}
	}
	if job.Retries == 0 {
		return job.CreatedAt
	}
	return job.LastRetry.Add(p.Delay(job.Retries))
}
