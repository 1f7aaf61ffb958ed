/*
Package jobworker provides the job registry and the workers
that claim and run jobs of the jobrunner package.

# Registry

A Registry maps job types to handlers. It is built once at startup
and can't be changed afterwards:

	type SendEmail struct {
		To      string `json:"to"`
		Subject string `json:"subject"`
	}

	func (SendEmail) JobType() string { return "send-email" }

	registry := jobworker.MustNewRegistry(
		jobworker.Register(func(ctx context.Context, env *App, job SendEmail) error {
			return env.Mailer.Send(ctx, job.To, job.Subject)
		}),
		jobworker.RegisterFunc("raw-job", func(ctx context.Context, env *App, data notnull.JSON) error {
			return nil
		}),
	)

Registering the same job type twice is an error.

# Workers

A Worker polls its Storage for the next job of a type of its Registry,
runs the handler and deletes the job on success or records the failure.
Claim, handler execution, and the outcome all happen within one
transaction. If the process dies while running a job, the transaction
is rolled back and the job will be claimed again, so handlers must be
safe to run more than once.

The handler runs within a savepoint of the job's transaction.
Writes of the handler using that transaction are committed together
with the deletion of a successful job and rolled back to the savepoint
if the handler fails, so the failure can still be recorded.

A panic of a handler is recovered and recorded as failure of the job.
With Config.ClaimAnyJobType, jobs of types without handler
are claimed and recorded as failures.

A Worker runs one job at a time. Run multiple workers
in the same or in different processes for parallel execution:

	runner, err := jobworker.NewRunner(storage, registry, app, jobworker.Config{
		PollInterval: 5 * time.Second,
	}, 4)
	if err != nil {
		return err
	}
	err = runner.Run(ctx)

# Errors

Failures of jobs and errors while retrieving jobs are logged
and passed to the optional Config.ErrorReporter.
Failures of jobs are reported after they were committed.
*/
package jobworker
