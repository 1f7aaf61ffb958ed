package jobworker

import (
	"time"

	"github.com/domonda/golog"
	rootlog "github.com/domonda/golog/log"
)

var log = rootlog.NewPackageLogger("jobworker")

func OverrideLogger(logger *golog.Logger) {
	log = logger
}

// DefaultPollInterval is used when Config.PollInterval is not set.
const DefaultPollInterval = time.Second

// Config holds the policy knobs of a Worker.
type Config struct {
	// PollInterval is the time to sleep after a poll
	// that found no job or failed to retrieve one.
	PollInterval time.Duration

	// ShutdownWhenQueueEmpty makes Worker.Run return
	// instead of sleeping when no job was found.
	ShutdownWhenQueueEmpty bool

	// ClaimAnyJobType makes the worker claim jobs of all types
	// instead of only the types of its Registry.
	// Jobs of unknown types are then recorded as failed.
	ClaimAnyJobType bool

	// ListenJobAvailable makes a Runner wake up idle workers
	// when its Storage notifies about new jobs.
	ListenJobAvailable bool

	// ErrorReporter receives job failures and
	// errors while retrieving jobs. Optional.
	ErrorReporter ErrorReporter
}

func (c Config) pollInterval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}
