package jobrunner_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/domonda/go-types/notnull"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domonda/go-jobrunner"
)

type insertedJob struct {
	JobType  string
	Data     notnull.JSON
	Priority int16
}

// recordingService records inserted jobs
// or returns insertErr if set.
type recordingService struct {
	jobrunner.DoNothingService

	inserted  []insertedJob
	insertErr error
}

func (s *recordingService) InsertJob(ctx context.Context, jobType string, data notnull.JSON, priority int16) (int64, error) {
	if s.insertErr != nil {
		return 0, s.insertErr
	}
	s.inserted = append(s.inserted, insertedJob{jobType, data, priority})
	return int64(len(s.inserted)), nil
}

func setupService(t *testing.T) *recordingService {
	t.Helper()
	service := new(recordingService)
	jobrunner.SetService(service)
	t.Cleanup(func() { jobrunner.SetService(nil) })
	return service
}

type sendEmail struct {
	To string `json:"to"`
}

func (sendEmail) JobType() string { return "send-email" }

type highPriorityJob struct{}

func (highPriorityJob) JobType() string { return "high-priority" }
func (highPriorityJob) JobPriority() int16 { return -5 }

type unnamedJobType struct {
	Value int `json:"value"`
}

type failingPayload struct{}

func (failingPayload) JobType() string { return "failing" }

func (failingPayload) MarshalJSON() ([]byte, error) {
	return nil, errors.New("can't marshal")
}

func TestEnqueue(t *testing.T) {
	ctx := context.Background()

	t.Run("Job type and payload", func(t *testing.T) {
		service := setupService(t)

		id, err := jobrunner.Enqueue(ctx, sendEmail{To: "test@example.com"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), id)

		require.Len(t, service.inserted, 1)
		assert.Equal(t, "send-email", service.inserted[0].JobType)
		assert.JSONEq(t, `{"to":"test@example.com"}`, string(service.inserted[0].Data))
		assert.Equal(t, jobrunner.DefaultPriority, service.inserted[0].Priority)
	})

	t.Run("Priority of payload type", func(t *testing.T) {
		service := setupService(t)

		_, err := jobrunner.Enqueue(ctx, highPriorityJob{})
		require.NoError(t, err)
		_, err = jobrunner.EnqueueWithPriority(ctx, highPriorityJob{}, 7)
		require.NoError(t, err)

		require.Len(t, service.inserted, 2)
		assert.Equal(t, int16(-5), service.inserted[0].Priority)
		assert.Equal(t, int16(7), service.inserted[1].Priority)
	})

	t.Run("Reflected job type", func(t *testing.T) {
		service := setupService(t)

		_, err := jobrunner.Enqueue(ctx, &unnamedJobType{Value: 1})
		require.NoError(t, err)

		require.Len(t, service.inserted, 1)
		assert.Equal(t, "github.com/domonda/go-jobrunner_test.unnamedJobType", service.inserted[0].JobType)
	})

	t.Run("Raw JSON payload", func(t *testing.T) {
		service := setupService(t)

		_, err := jobrunner.EnqueueRaw(ctx, "raw", json.RawMessage(`{"a":1}`), 2)
		require.NoError(t, err)
		_, err = jobrunner.EnqueueRaw(ctx, "raw", `[1,2,3]`, 2)
		require.NoError(t, err)

		require.Len(t, service.inserted, 2)
		assert.Equal(t, notnull.JSON(`{"a":1}`), service.inserted[0].Data)
		assert.Equal(t, notnull.JSON(`[1,2,3]`), service.inserted[1].Data)
	})

	t.Run("Serialize error", func(t *testing.T) {
		service := setupService(t)

		for _, payload := range []any{failingPayload{}, nil, "not JSON"} {
			jobType := jobrunner.JobTypeOf(payload)
			if jobType == "" {
				jobType = "raw"
			}
			_, err := jobrunner.EnqueueRaw(ctx, jobType, payload, 0)
			var serializeErr *jobrunner.SerializeError
			assert.ErrorAs(t, err, &serializeErr, "payload %#v", payload)
		}

		assert.Empty(t, service.inserted, "nothing inserted")
	})

	t.Run("Empty job type", func(t *testing.T) {
		service := setupService(t)

		_, err := jobrunner.Enqueue(ctx, nil)
		assert.ErrorIs(t, err, jobrunner.ErrEmptyJobType, "nil payload has no job type")
		_, err = jobrunner.EnqueueRaw(ctx, "", `{}`, 0)
		assert.ErrorIs(t, err, jobrunner.ErrEmptyJobType)

		var serializeErr *jobrunner.SerializeError
		assert.False(t, errors.As(err, &serializeErr))
		var insertErr *jobrunner.InsertError
		assert.False(t, errors.As(err, &insertErr))
		assert.Empty(t, service.inserted)
	})

	t.Run("Insert error", func(t *testing.T) {
		service := setupService(t)
		service.insertErr = errors.New("connection refused")

		_, err := jobrunner.Enqueue(ctx, sendEmail{})
		var insertErr *jobrunner.InsertError
		require.ErrorAs(t, err, &insertErr)
		assert.Equal(t, "send-email", insertErr.JobType)
		assert.ErrorIs(t, err, service.insertErr)

		var serializeErr *jobrunner.SerializeError
		assert.False(t, errors.As(err, &serializeErr))
	})

	t.Run("Not initialized", func(t *testing.T) {
		jobrunner.SetService(nil)

		_, err := jobrunner.Enqueue(ctx, sendEmail{})
		assert.ErrorIs(t, err, jobrunner.ErrNotInitialized)
	})

	t.Run("Ignored jobs", func(t *testing.T) {
		service := setupService(t)

		ignoreCtx := jobrunner.ContextWithIgnoreJob(ctx, jobrunner.IgnoreJobTypes("send-email"))
		id, err := jobrunner.Enqueue(ignoreCtx, sendEmail{})
		require.NoError(t, err)
		assert.Zero(t, id)
		_, err = jobrunner.Enqueue(ignoreCtx, highPriorityJob{})
		require.NoError(t, err)

		ignoreCtx = jobrunner.ContextWithIgnoreJob(ctx, jobrunner.IgnoreAllJobs)
		_, err = jobrunner.Enqueue(ignoreCtx, highPriorityJob{})
		require.NoError(t, err)

		require.Len(t, service.inserted, 1)
		assert.Equal(t, "high-priority", service.inserted[0].JobType)
	})
}

func TestJobTypeOf(t *testing.T) {
	assert.Equal(t, "send-email", jobrunner.JobTypeOf(sendEmail{}))
	assert.Equal(t, "send-email", jobrunner.JobTypeOf(&sendEmail{}))
	assert.Equal(t, "github.com/domonda/go-jobrunner_test.unnamedJobType", jobrunner.JobTypeOf(unnamedJobType{}))
	assert.Equal(t, "", jobrunner.JobTypeOf(nil))
	assert.Equal(t, "", jobrunner.JobTypeOf(struct{}{}))

	assert.Equal(t, int16(-5), jobrunner.JobPriorityOf(highPriorityJob{}))
	assert.Equal(t, jobrunner.DefaultPriority, jobrunner.JobPriorityOf(sendEmail{}))
}
