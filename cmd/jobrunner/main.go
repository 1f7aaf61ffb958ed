// Command jobrunner migrates, inspects, and works the background_jobs table.
//
// Subcommands:
//
//	migrate  apply the database migrations and exit
//	enqueue  insert a job with a raw JSON payload
//	work     run workers until SIGINT or SIGTERM
//	status   print the number of jobs
//	failed   print the failed jobs as JSON
//	retry    reset a failed job so it is claimed again
//	purge    delete dead jobs
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/domonda/go-types/notnull"
	rootlog "github.com/domonda/golog/log"
	"github.com/getsentry/sentry-go"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/domonda/go-jobrunner"
	"github.com/domonda/go-jobrunner/jobworker"
	"github.com/domonda/go-jobrunner/jobworkerdb"
	"github.com/domonda/go-jobrunner/sentryreporter"
)

var log = rootlog.NewPackageLogger("main")

func main() {
	root := &cobra.Command{
		Use:           "jobrunner",
		Short:         "Background jobs on PostgreSQL",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.AddCommand(
		migrateCmd(),
		enqueueCmd(),
		workCmd(),
		statusCmd(),
		failedCmd(),
		retryCmd(),
		purgeCmd(),
	)

	err := root.Execute()
	if err != nil {
		log.Error("Command failed").Err(err).Log()
		os.Exit(1)
	}
}

// withStore loads the config, connects, and calls f with
// a context that is cancelled on SIGINT or SIGTERM.
func withStore(cmd *cobra.Command, f func(ctx context.Context, config *Config, store *jobworkerdb.Store) error) error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := connect(ctx, config)
	if err != nil {
		return err
	}
	defer store.Close()

	return f(ctx, config, store)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the background_jobs table",
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			return migrate(cmd.Context(), config)
		},
	}
}

func enqueueCmd() *cobra.Command {
	var priority int16
	cmd := &cobra.Command{
		Use:   "enqueue JOB_TYPE JSON",
		Short: "Insert a job",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				id, err := jobrunner.EnqueueRaw(ctx, args[0], notnull.JSON(args[1]), priority)
				if err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			})
		},
	}
	cmd.Flags().Int16Var(&priority, "priority", jobrunner.DefaultPriority, "lower values run first")
	return cmd
}

func workCmd() *cobra.Command {
	var (
		numWorkers int
		workerConf jobworker.Config
	)
	cmd := &cobra.Command{
		Use:   "work",
		Short: "Run workers until SIGINT or SIGTERM",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				if config.SentryDSN != "" {
					reporter, err := sentryreporter.New(sentry.ClientOptions{
						Dsn:         config.SentryDSN,
						Environment: config.Environment,
					})
					if err != nil {
						return err
					}
					defer reporter.Flush(2 * time.Second)
					workerConf.ErrorReporter = reporter
				}

				runner, err := jobworker.NewRunner(
					store,
					newRegistry(),
					log,
					workerConf,
					numWorkers,
				)
				if err != nil {
					return err
				}
				return runner.Run(ctx)
			})
		},
	}
	cmd.Flags().IntVar(&numWorkers, "workers", 1, "number of parallel workers")
	cmd.Flags().DurationVar(&workerConf.PollInterval, "poll-interval", jobworker.DefaultPollInterval, "sleep between polls of an empty queue")
	cmd.Flags().BoolVar(&workerConf.ShutdownWhenQueueEmpty, "shutdown-when-empty", false, "exit when no job is found")
	cmd.Flags().BoolVar(&workerConf.ClaimAnyJobType, "claim-any", false, "claim jobs of unknown types and record them as failed")
	cmd.Flags().BoolVar(&workerConf.ListenJobAvailable, "listen", true, "wake up workers on new jobs")
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Print the number of jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				status, err := jobrunner.GetStatus(ctx)
				if err != nil {
					return err
				}
				fmt.Println(status)
				for jobType, num := range status.NumJobsPerType {
					fmt.Printf("  %s: %d\n", jobType, num)
				}
				return nil
			})
		},
	}
}

func failedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "failed",
		Short: "Print the failed jobs as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				jobs, err := jobrunner.GetFailedJobs(ctx)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(jobs)
			})
		},
	}
}

func retryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "retry JOB_ID",
		Short: "Reset a failed job so it is claimed again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return err
			}
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				if _, err := jobrunner.GetJob(ctx, id); err != nil {
					return err
				}
				return jobrunner.ResetFailedJob(ctx, id)
			})
		},
	}
}

func purgeCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete jobs that exhausted their retries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(cmd, func(ctx context.Context, config *Config, store *jobworkerdb.Store) error {
				numDeleted, err := jobrunner.PurgeDeadJobs(ctx, olderThan)
				if err != nil {
					return err
				}
				fmt.Println(numDeleted)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 7*24*time.Hour, "minimum age of the last attempt")
	return cmd
}
