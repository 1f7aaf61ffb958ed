package jobworker

import (
	"context"
	"fmt"
	"reflect"
	"slices"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-types/notnull"

	"github.com/domonda/go-jobrunner"
)

// Handler runs a job with the shared context value env
// and the JSON payload of the job.
type Handler[C any] func(ctx context.Context, env C, data notnull.JSON) error

// Entry is a job type with its Handler and default priority.
type Entry[C any] struct {
	JobType  string
	Priority int16
	Handler  Handler[C]
}

// WithPriority returns a copy of the entry with a different priority.
func (e Entry[C]) WithPriority(priority int16) Entry[C] {
	e.Priority = priority
	return e
}

// Register returns an Entry for jobs with payloads of type J.
// The job type is jobrunner.JobTypeOf a J value,
// the priority jobrunner.JobPriorityOf a J value.
// The JSON payload of a job is unmarshalled into a J
// before run is called with it.
func Register[J, C any](run func(ctx context.Context, env C, job J) error) Entry[C] {
	zero := newPayload[J]()
	return Entry[C]{
		JobType:  jobrunner.JobTypeOf(zero),
		Priority: jobrunner.JobPriorityOf(zero),
		Handler: func(ctx context.Context, env C, data notnull.JSON) error {
			job := newPayload[J]()
			err := data.UnmarshalTo(&job)
			if err != nil {
				return fmt.Errorf("error while unmarshalling job payload '%s': %w", data, err)
			}
			return run(ctx, env, job)
		},
	}
}

// RegisterFunc returns an Entry for jobType with a Handler
// that gets the raw JSON payload of the job.
func RegisterFunc[C any](jobType string, handler Handler[C]) Entry[C] {
	return Entry[C]{
		JobType:  jobType,
		Priority: jobrunner.DefaultPriority,
		Handler:  handler,
	}
}

// newPayload returns the zero value of J,
// or a pointer to a new zero value if J is a pointer type.
func newPayload[J any]() J {
	var payload J
	if t := reflect.TypeOf(payload); t != nil && t.Kind() == reflect.Ptr {
		payload = reflect.New(t.Elem()).Interface().(J)
	}
	return payload
}

// Registry maps job types to their Handler.
// It is immutable after creation and safe for concurrent use.
type Registry[C any] struct {
	entries  map[string]Entry[C]
	jobTypes []string
}

// NewRegistry returns a Registry for the passed entries.
// Entries with an empty job type, a nil Handler,
// or a job type that is already used by another entry
// result in an error.
func NewRegistry[C any](entries ...Entry[C]) (r *Registry[C], err error) {
	defer errs.WrapWithFuncParams(&err, entries)

	r = &Registry[C]{
		entries:  make(map[string]Entry[C], len(entries)),
		jobTypes: make([]string, 0, len(entries)),
	}
	for _, entry := range entries {
		if entry.JobType == "" {
			return nil, errs.New("empty job type")
		}
		if entry.Handler == nil {
			return nil, errs.Errorf("nil handler for job type %q", entry.JobType)
		}
		if _, exists := r.entries[entry.JobType]; exists {
			return nil, errs.Errorf("job type %q registered more than once", entry.JobType)
		}
		r.entries[entry.JobType] = entry
		r.jobTypes = append(r.jobTypes, entry.JobType)
	}
	slices.Sort(r.jobTypes)
	return r, nil
}

// MustNewRegistry returns NewRegistry or panics on an error.
func MustNewRegistry[C any](entries ...Entry[C]) *Registry[C] {
	r, err := NewRegistry(entries...)
	if err != nil {
		panic(err)
	}
	return r
}

// JobTypes returns the sorted job types of the registry.
func (r *Registry[C]) JobTypes() []string {
	return slices.Clone(r.jobTypes)
}

// HasJobType returns if a Handler is registered for jobType.
func (r *Registry[C]) HasJobType(jobType string) bool {
	_, ok := r.entries[jobType]
	return ok
}

// Resolve returns the Handler for jobType
// or nil if jobType is unknown.
func (r *Registry[C]) Resolve(jobType string) Handler[C] {
	return r.entries[jobType].Handler
}

// Priority returns the default priority of jobType.
func (r *Registry[C]) Priority(jobType string) int16 {
	if entry, ok := r.entries[jobType]; ok {
		return entry.Priority
	}
	return jobrunner.DefaultPriority
}

func (r *Registry[C]) Len() int {
	return len(r.entries)
}
