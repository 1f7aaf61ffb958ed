package main

import (
	"context"
	"time"

	"github.com/domonda/go-errs"
	"github.com/domonda/golog"

	"github.com/domonda/go-jobrunner/jobworker"
)

// EchoJob logs its message.
type EchoJob struct {
	Message string `json:"message"`
}

func (EchoJob) JobType() string { return "echo" }

// SleepJob sleeps for its duration
// and fails with its error message if set.
type SleepJob struct {
	Duration string `json:"duration"`
	Error    string `json:"error,omitempty"`
}

func (SleepJob) JobType() string { return "sleep" }

func runEcho(ctx context.Context, log *golog.Logger, job EchoJob) error {
	log.Info("Echo").
		Str("message", job.Message).
		Log()
	return nil
}

func runSleep(ctx context.Context, log *golog.Logger, job SleepJob) error {
	d, err := time.ParseDuration(job.Duration)
	if err != nil {
		return err
	}
	time.Sleep(d)
	if job.Error != "" {
		return errs.New(job.Error)
	}
	return nil
}

func newRegistry() *jobworker.Registry[*golog.Logger] {
	return jobworker.MustNewRegistry(
		jobworker.Register(runEcho),
		jobworker.Register(runSleep),
	)
}
