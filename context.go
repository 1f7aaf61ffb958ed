package jobrunner

import (
	"context"
)

var ignoreJobKey int

// IgnoreJobFunc decides if enqueueing a job of jobType
// should be skipped.
type IgnoreJobFunc func(jobType string) bool

func IgnoreAllJobs(string) bool { return true }

// IgnoreJobTypes returns an IgnoreJobFunc that ignores
// the passed job types.
func IgnoreJobTypes(jobTypes ...string) IgnoreJobFunc {
	return func(jobType string) bool {
		for _, t := range jobTypes {
			if t == jobType {
				return true
			}
		}
		return false
	}
}

// ContextWithIgnoreJob returns a context that makes
// the enqueue functions skip jobs for which ignoreJob returns true.
// Useful for tests of code that enqueues jobs.
func ContextWithIgnoreJob(ctx context.Context, ignoreJob IgnoreJobFunc) context.Context {
	return context.WithValue(ctx, &ignoreJobKey, ignoreJob)
}

func IgnoreJob(ctx context.Context, jobType string) bool {
	if ignoreJob, ok := ctx.Value(&ignoreJobKey).(IgnoreJobFunc); ok {
		return ignoreJob(jobType)
	}
	return false
}
