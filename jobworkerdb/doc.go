/*
Package jobworkerdb provides the PostgreSQL implementation of
jobrunner.Service and jobworker.Storage.

# Initialization

The package uses github.com/domonda/go-sqldb/db for database connections.
Set up the connection, apply the migrations, and create the store:

	db.SetConn(pqconn.MustNew(ctx, config))

	err := jobworkerdb.Migrate(ctx, sqlDB)
	if err != nil {
		return err
	}
	store, err := jobworkerdb.InitJobRunner(ctx, jobworkerdb.RetryPolicy{
		MaxRetries: 10,
		BaseDelay:  time.Minute,
	})

# Database Schema

Migrate creates the background_jobs table with the columns
of jobrunner.Job and an insert trigger that notifies
JobAvailableChannel with the job type of new jobs.
It uses its own goose provider with MigrationsVersionTable,
so applications can use goose for their own migrations.

# Claiming

ClaimNextUnlockedJob selects the job with the lowest priority and id
using `for update skip locked`, so competing workers never block
each other and never get the same job while their transactions are open.
The claim, the deletion of a successful job, and the recording
of a failure must happen within the same transaction:

	err := store.Transaction(ctx, func(ctx context.Context) error {
		job, err := store.ClaimNextUnlockedJob(ctx, jobTypes)
		...
		return store.DeleteSuccessfulJob(ctx, job.ID)
	})

If the transaction is rolled back, the job can be claimed again.

Savepoint runs a handler within the savepoint background_job
of the claiming transaction. A failed statement of the handler
aborts the transaction only up to that savepoint, so MarkFailedJob
still works. Error messages are stored as valid UTF-8 without NUL bytes.

# Retries

Failed jobs stay in the table. The RetryPolicy of the Store delays
their next claim exponentially and stops claiming them after
RetryPolicy.MaxRetries failed attempts. Such dead jobs can be
listed with GetFailedJobs, reset with ResetFailedJob,
or deleted with PurgeDeadJobs.
*/
package jobworkerdb
