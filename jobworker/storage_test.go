package jobworker_test

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/domonda/go-types/notnull"
	"github.com/domonda/go-types/nullable"

	"github.com/domonda/go-jobrunner"
	"github.com/domonda/go-jobrunner/jobworker"
)

var (
	_ jobworker.Storage              = new(memStorage)
	_ jobworker.JobAvailableNotifier = new(memStorage)
)

// memStorage is an in-memory jobworker.Storage with row locks
// held until the end of the claiming transaction.
// Failed jobs are never claimed again.
//
// Handlers can add writes to the transaction with Write
// and fail it like a failing SQL statement with Abort.
type memStorage struct {
	mtx      sync.Mutex
	nextID   int64
	jobs     map[int64]*jobrunner.Job
	locked   map[int64]bool
	listener func(jobType string)

	// claimErrs are returned by the next calls of ClaimNextUnlockedJob
	claimErrs []error
	// deleteErrs are returned by the next calls of DeleteSuccessfulJob
	deleteErrs []error
	// markErrs are returned by the next calls of MarkFailedJob
	markErrs []error
	// listenerErr is returned by SetJobAvailableListener
	listenerErr error
}

func newMemStorage() *memStorage {
	return &memStorage{
		jobs:   make(map[int64]*jobrunner.Job),
		locked: make(map[int64]bool),
	}
}

type memTxKey struct{}

type memTx struct {
	claimed []int64
	commit  []func()
	aborted bool
}

var errTxAborted = errors.New("current transaction is aborted")

func memTxFromContext(ctx context.Context) (*memTx, error) {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if tx.aborted {
		return nil, errTxAborted
	}
	return tx, nil
}

func (s *memStorage) Insert(jobType string, data notnull.JSON, priority int16) int64 {
	s.mtx.Lock()
	s.nextID++
	id := s.nextID
	s.jobs[id] = &jobrunner.Job{
		ID:        id,
		JobType:   jobType,
		Data:      data,
		Priority:  priority,
		CreatedAt: time.Now(),
	}
	listener := s.listener
	s.mtx.Unlock()

	if listener != nil {
		listener(jobType)
	}
	return id
}

func (s *memStorage) Get(id int64) *jobrunner.Job {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	clone := *job
	return &clone
}

func (s *memStorage) Len() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.jobs)
}

func (s *memStorage) NumLocked() int {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return len(s.locked)
}

func (s *memStorage) HasListener() bool {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	return s.listener != nil
}

func (s *memStorage) Transaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	tx := new(memTx)
	err := txFunc(context.WithValue(ctx, memTxKey{}, tx))

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if err == nil {
		for _, f := range tx.commit {
			f()
		}
	}
	for _, id := range tx.claimed {
		delete(s.locked, id)
	}
	return err
}

func (s *memStorage) ClaimNextUnlockedJob(ctx context.Context, jobTypes []string) (*jobrunner.Job, error) {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(s.claimErrs) > 0 {
		err := s.claimErrs[0]
		s.claimErrs = s.claimErrs[1:]
		return nil, err
	}

	var candidates []*jobrunner.Job
	for _, job := range s.jobs {
		if s.locked[job.ID] || job.Retries > 0 {
			continue
		}
		if jobTypes != nil && !slices.Contains(jobTypes, job.JobType) {
			continue
		}
		candidates = append(candidates, job)
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	next := slices.MinFunc(candidates, func(a, b *jobrunner.Job) int {
		return cmp.Or(cmp.Compare(a.Priority, b.Priority), cmp.Compare(a.ID, b.ID))
	})
	s.locked[next.ID] = true
	tx.claimed = append(tx.claimed, next.ID)

	clone := *next
	return &clone, nil
}

func (s *memStorage) Savepoint(ctx context.Context, f func(ctx context.Context) error) error {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return err
	}
	numWrites := len(tx.commit)

	err = f(ctx)
	if err == nil && tx.aborted {
		err = fmt.Errorf("can't release savepoint: %w", errTxAborted)
	}
	if err != nil {
		tx.commit = tx.commit[:numWrites]
		tx.aborted = false
	}
	return err
}

// Write adds f to the writes that are applied
// when the transaction of ctx is committed.
func (s *memStorage) Write(ctx context.Context, f func()) error {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return err
	}
	tx.commit = append(tx.commit, f)
	return nil
}

// Abort fails the transaction of ctx until it is
// rolled back to a savepoint.
func (s *memStorage) Abort(ctx context.Context) error {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return err
	}
	tx.aborted = true
	return errTxAborted
}

func (s *memStorage) DeleteSuccessfulJob(ctx context.Context, id int64) error {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(s.deleteErrs) > 0 {
		err := s.deleteErrs[0]
		s.deleteErrs = s.deleteErrs[1:]
		return err
	}

	tx.commit = append(tx.commit, func() {
		delete(s.jobs, id)
	})
	return nil
}

func (s *memStorage) MarkFailedJob(ctx context.Context, id int64, errorMsg string) error {
	tx, err := memTxFromContext(ctx)
	if err != nil {
		return err
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()

	if len(s.markErrs) > 0 {
		err := s.markErrs[0]
		s.markErrs = s.markErrs[1:]
		return err
	}

	tx.commit = append(tx.commit, func() {
		if job, ok := s.jobs[id]; ok {
			job.Retries++
			job.LastRetry = time.Now()
			job.LastError = nullable.NonEmptyString(errorMsg)
		}
	})
	return nil
}

func (s *memStorage) SetJobAvailableListener(ctx context.Context, callback func(jobType string)) error {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	if s.listenerErr != nil {
		return s.listenerErr
	}
	s.listener = callback
	return nil
}

// waitFor polls check until it returns true or the timeout is reached.
func waitFor(check func() bool, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return check()
}
