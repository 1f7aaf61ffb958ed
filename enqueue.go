package jobrunner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/domonda/go-types/notnull"
	"github.com/domonda/go-types/nullable"
)

// Enqueue adds job to the queue with the priority
// returned by JobPriorityOf(job) and returns the id of the job row.
//
// The job type is JobTypeOf(job) and the payload is
// the JSON encoding of job.
//
// If ctx carries a database transaction then the job is inserted
// within that transaction, so it can be committed atomically
// with other writes of the caller.
//
// A payload that can't be encoded results in a *SerializeError,
// a failed insert in an *InsertError.
// ErrEmptyJobType is returned if the job type of job is empty.
func Enqueue(ctx context.Context, job any) (id int64, err error) {
	return EnqueueWithPriority(ctx, job, JobPriorityOf(job))
}

// EnqueueWithPriority adds job to the queue like Enqueue
// but overrides the default priority of the job.
func EnqueueWithPriority(ctx context.Context, job any, priority int16) (id int64, err error) {
	return EnqueueRaw(ctx, JobTypeOf(job), job, priority)
}

// EnqueueRaw adds a job of jobType with the passed payload.
// The payload will be marshalled to JSON or directly interpreted as JSON if possible.
//
// The job type is not checked against any registry,
// jobs of unknown types fail when they are run.
func EnqueueRaw(ctx context.Context, jobType string, payload any, priority int16) (id int64, err error) {
	if jobType == "" {
		return 0, ErrEmptyJobType
	}
	data, err := MarshalPayload(payload)
	if err != nil {
		return 0, &SerializeError{JobType: jobType, Err: err}
	}

	if IgnoreJob(ctx, jobType) {
		log.Debug("Ignoring job").
			Str("jobType", jobType).
			Log()
		return 0, nil
	}

	id, err = GetService().InsertJob(ctx, jobType, data, priority)
	if err != nil {
		return 0, &InsertError{JobType: jobType, Err: err}
	}
	log.Debug("Enqueued job").
		Any("jobID", id).
		Str("jobType", jobType).
		Int("priority", int(priority)).
		Log()
	return id, nil
}

// MarshalPayload returns the JSON encoding of payload.
// Payloads that already are JSON (notnull.JSON, nullable.JSON,
// json.RawMessage, []byte, string) are validated and used as is.
func MarshalPayload(payload any) (notnull.JSON, error) {
	if payload == nil {
		return nil, errors.New("nil job payload")
	}

	var (
		data notnull.JSON
		err  error
	)
	switch x := payload.(type) {
	case notnull.JSON:
		data = x
	case nullable.JSON:
		data = notnull.JSON(x)
	case json.RawMessage:
		data = notnull.JSON(x)
	case []byte:
		data = notnull.JSON(x)
	case string:
		data = notnull.JSON(x)
	case json.Marshaler:
		data, err = x.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("job payload %T can't be marshalled to JSON: %w", x, err)
		}
	default:
		data, err = notnull.MarshalJSON(x)
		if err != nil {
			return nil, fmt.Errorf("job payload %T can't be marshalled to JSON: %w", x, err)
		}
	}
	if !data.Valid() {
		return nil, fmt.Errorf("job payload is not valid JSON: %q", string(data))
	}
	return data, nil
}
