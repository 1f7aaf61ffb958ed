package jobrunner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/domonda/go-jobrunner"
)

func TestJobStoppedListener(t *testing.T) {
	ctx := context.Background()
	job := &jobrunner.Job{ID: 1, JobType: "test"}
	jobErr := errors.New("failed")

	var calls []string
	removeA := jobrunner.AddJobStoppedListener(jobrunner.JobStoppedListenerFunc(func(ctx context.Context, j *jobrunner.Job, err error) {
		assert.Same(t, job, j)
		assert.Same(t, jobErr, err)
		calls = append(calls, "a")
	}))
	removePanic := jobrunner.AddJobStoppedListener(jobrunner.JobStoppedListenerFunc(func(context.Context, *jobrunner.Job, error) {
		panic("listener panic")
	}))
	removeB := jobrunner.AddJobStoppedListener(jobrunner.JobStoppedListenerFunc(func(context.Context, *jobrunner.Job, error) {
		calls = append(calls, "b")
	}))

	jobrunner.NotifyJobStopped(ctx, job, jobErr)
	assert.Equal(t, []string{"a", "b"}, calls, "panic does not stop other listeners")

	removeA()
	removePanic()
	jobrunner.NotifyJobStopped(ctx, job, jobErr)
	assert.Equal(t, []string{"a", "b", "b"}, calls)

	removeB()
	jobrunner.NotifyJobStopped(ctx, job, jobErr)
	assert.Len(t, calls, 3)
}
