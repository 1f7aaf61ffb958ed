package jobrunner

import (
	"reflect"
)

// BackgroundJob can be implemented by job payload types
// to define their job type string.
//
// The job type MUST be unique across all job kinds
// registered within a deployment.
type BackgroundJob interface {
	JobType() string
}

// PriorityJob can be implemented by job payload types
// to define their default priority.
// Lower values are run first.
type PriorityJob interface {
	JobPriority() int16
}

// JobTypeOf returns the job type string of a job payload.
// If job implements BackgroundJob then its JobType method is used,
// else ReflectJobTypeOfPayload.
func JobTypeOf(job any) string {
	if bj, ok := job.(BackgroundJob); ok {
		return bj.JobType()
	}
	return ReflectJobTypeOfPayload(job)
}

// JobPriorityOf returns the default priority of a job payload.
// If job implements PriorityJob then its JobPriority method is used,
// else DefaultPriority.
func JobPriorityOf(job any) int16 {
	if pj, ok := job.(PriorityJob); ok {
		return pj.JobPriority()
	}
	return DefaultPriority
}

// ReflectJobTypeOfPayload creates a job type string by using reflection on payload.
// The job type string starts with the package import path of the type
// followed by a point and the type name.
// Pointer types will be dereferenced.
func ReflectJobTypeOfPayload(payload any) string {
	if payload == nil {
		return ""
	}
	return JobTypeOfPayloadType(reflect.TypeOf(payload))
}

// JobTypeOfPayloadType creates a job type string for a given payload reflect.Type
// The job type string starts with the package import path of the type
// followed by a point and the type name.
// Pointer types will be dereferenced.
func JobTypeOfPayloadType(payloadType reflect.Type) string {
	for payloadType.Kind() == reflect.Ptr {
		payloadType = payloadType.Elem()
	}
	if payloadType.Name() == "" {
		return ""
	}
	return payloadType.PkgPath() + "." + payloadType.Name()
}
