/*
Package jobrunner provides a PostgreSQL-backed background job queue
with at-least-once execution.

# Overview

Producers enqueue jobs into the background_jobs table,
workers of the jobworker package poll that table, claim jobs
under row locks, run the registered handler, and delete
successful jobs or record failures for later retries.

# Basic Usage

	import (
		"github.com/domonda/go-jobrunner"
		"github.com/domonda/go-jobrunner/jobworker"
		"github.com/domonda/go-jobrunner/jobworkerdb"
	)

	type IndexDocument struct {
		DocumentID int64 `json:"documentId"`
	}

	func (IndexDocument) JobType() string { return "index-document" }

	func main() {
		ctx := context.Background()

		store, err := jobworkerdb.InitJobRunner(ctx, jobworkerdb.DefaultRetryPolicy)
		...

		registry := jobworker.MustNewRegistry(
			jobworker.Register(indexDocument),
		)
		runner, err := jobworker.NewRunner(store, registry, app, jobworker.Config{}, 4)
		...
		go runner.Run(ctx)

		id, err := jobrunner.Enqueue(ctx, IndexDocument{DocumentID: 1})
	}

# Job Types

The job type of a payload is the result of its JobType method
if it implements BackgroundJob, else the package path and name
of its Go type. Job types must be unique within a deployment.
Enqueueing does not check if a handler exists for the job type.

# Job Priorities

Jobs with lower priority values are run first,
jobs with equal priority in insertion order.
The default priority is 0, payload types can implement
PriorityJob to change it, and EnqueueWithPriority overrides it.

# Transactions

The enqueue functions use the database connection of the context,
so a job enqueued within db.Transaction is only visible to workers
after the transaction was committed:

	err := db.Transaction(ctx, func(ctx context.Context) error {
		docID, err := insertDocument(ctx, doc)
		if err != nil {
			return err
		}
		_, err = jobrunner.Enqueue(ctx, IndexDocument{DocumentID: docID})
		return err
	})

# Listeners

Workers call the listeners added with AddJobStoppedListener
after the outcome of a job was committed:

	remove := jobrunner.AddJobStoppedListener(jobrunner.JobStoppedListenerFunc(
		func(ctx context.Context, job *jobrunner.Job, jobErr error) {
			...
		},
	))
	defer remove()

# Testing

Enqueueing can be disabled per context with ContextWithIgnoreJob.

# Error Handling

All errors are wrapped using github.com/domonda/go-errs for stack traces.
Enqueue returns a *SerializeError if the payload can't be encoded
and an *InsertError if the job could not be inserted.
ErrEmptyJobType is returned for payloads without job type.
*/
package jobrunner
