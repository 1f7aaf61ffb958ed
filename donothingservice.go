package jobrunner

import (
	"context"
	"time"

	"github.com/domonda/go-types/notnull"
)

var _ Service = DoNothingService{}

// DoNothingService is a Service implementation
// that does nothing and returns nil for
// all its method result values.
type DoNothingService struct{}

func (DoNothingService) InsertJob(context.Context, string, notnull.JSON, int16) (int64, error) {
	return 0, nil
}
func (DoNothingService) GetJob(context.Context, int64) (*Job, error)              { return nil, nil }
func (DoNothingService) DeleteJob(context.Context, int64) error                   { return nil }
func (DoNothingService) ResetFailedJob(context.Context, int64) error              { return nil }
func (DoNothingService) GetStatus(context.Context) (*Status, error)               { return nil, nil }
func (DoNothingService) GetFailedJobs(context.Context) ([]*Job, error)            { return nil, nil }
func (DoNothingService) PurgeDeadJobs(context.Context, time.Duration) (int, error) { return 0, nil }
func (DoNothingService) Close() error                                             { return nil }
