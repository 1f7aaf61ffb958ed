package jobworkerdb

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/domonda/go-errs"
	"github.com/domonda/go-sqldb"
	"github.com/domonda/go-sqldb/db"
	"github.com/domonda/go-types/notnull"

	"github.com/domonda/go-jobrunner"
	"github.com/domonda/go-jobrunner/jobworker"
)

const ErrNotInTransaction errs.Sentinel = "not called within a database transaction"

// jobColumns are the columns scanned into a jobrunner.Job
const jobColumns = `id, job_type, data, priority, retries, last_retry, last_error, created_at`

var (
	_ jobrunner.Service              = new(Store)
	_ jobworker.Storage              = new(Store)
	_ jobworker.JobAvailableNotifier = new(Store)
)

// Store implements jobrunner.Service and jobworker.Storage
// using the background_jobs table.
//
// All queries use the connection of github.com/domonda/go-sqldb/db
// for the passed context, so they run within a transaction
// if the context carries one.
type Store struct {
	retryPolicy RetryPolicy

	hasJobAvailableListener bool
	listenerMtx             sync.Mutex
	closed                  atomic.Bool
}

// New returns a Store that claims failed jobs according to retryPolicy.
func New(retryPolicy RetryPolicy) *Store {
	return &Store{retryPolicy: retryPolicy}
}

func (s *Store) RetryPolicy() RetryPolicy {
	return s.retryPolicy
}

///////////////////////////////////////////////////////////////////////////////
// jobworker.Storage methods

// Transaction runs txFunc within a transaction of db.Conn(ctx).
func (s *Store) Transaction(ctx context.Context, txFunc func(ctx context.Context) error) error {
	if s.closed.Load() {
		return jobrunner.ErrClosed
	}
	return db.Transaction(ctx, txFunc)
}

func (s *Store) ClaimNextUnlockedJob(ctx context.Context, jobTypes []string) (job *jobrunner.Job, err error) {
	defer errs.WrapWithFuncParams(&err, ctx, jobTypes)

	if s.closed.Load() {
		return nil, jobrunner.ErrClosed
	}
	if jobTypes != nil && len(jobTypes) == 0 {
		return nil, nil
	}

	tx := db.Conn(ctx)
	if !tx.IsTransaction() {
		return nil, ErrNotInTransaction
	}

	args := []any{
		s.retryPolicy.BaseDelay.Seconds(), // $1
		s.retryPolicy.MaxRetries,          // $2
	}
	typeFilter := ``
	if jobTypes != nil {
		typeFilter = `and job_type = any($3::text[])`
		args = append(args, notnull.StringArray(jobTypes))
	}

	// Use `skip locked` because multiple workers compete for jobs
	// and any unclaimed row will do. A row locked by another
	// worker stays locked until its transaction ends.
	err = tx.QueryRow(
		/*sql*/ `
			select `+jobColumns+`
			from background_jobs
			where (
					retries = 0
					or last_retry < now() - make_interval(secs => $1::float8 * power(2, retries - 1))
				)
				and ($2::int = 0 or retries < $2::int)
				`+typeFilter+`
			order by
				priority asc,
				id asc
			limit 1
			for update skip locked
		`,
		args...,
	).ScanStruct(&job)
	if err != nil {
		return nil, sqldb.ReplaceErrNoRows(err, nil)
	}
	return job, nil
}

// Savepoint calls f within the savepoint background_job
// of the transaction of ctx.
func (s *Store) Savepoint(ctx context.Context, f func(ctx context.Context) error) (err error) {
	tx := db.Conn(ctx)
	if !tx.IsTransaction() {
		return ErrNotInTransaction
	}
	err = tx.Exec(`savepoint background_job`)
	if err != nil {
		return errs.Errorf("can't create savepoint: %w", err)
	}

	err = f(ctx)
	if err == nil {
		// Fails if f swallowed an error that aborted the transaction
		err = tx.Exec(`release savepoint background_job`)
		if err == nil {
			return nil
		}
		err = errs.Errorf("can't release savepoint: %w", err)
	}

	if e := tx.Exec(`rollback to savepoint background_job`); e != nil {
		return errors.Join(err, errs.Errorf("can't roll back to savepoint: %w", e))
	}
	return err
}

func (s *Store) DeleteSuccessfulJob(ctx context.Context, id int64) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx, id)

	tx := db.Conn(ctx)
	if !tx.IsTransaction() {
		return ErrNotInTransaction
	}
	return tx.Exec(`delete from background_jobs where id = $1`, id)
}

func (s *Store) MarkFailedJob(ctx context.Context, id int64, errorMsg string) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx, id, errorMsg)

	tx := db.Conn(ctx)
	if !tx.IsTransaction() {
		return ErrNotInTransaction
	}
	return tx.Exec(
		/*sql*/ `
			update background_jobs
			set
				retries    = retries + 1,
				last_retry = now(),
				last_error = nullif($2, '')
			where id = $1
		`,
		id,                      // $1
		cleanErrorMsg(errorMsg), // $2
	)
}

// cleanErrorMsg returns errorMsg as valid UTF-8 without NUL bytes,
// which PostgreSQL rejects in text columns.
func cleanErrorMsg(errorMsg string) string {
	errorMsg = strings.ToValidUTF8(errorMsg, "\uFFFD")
	return strings.ReplaceAll(errorMsg, "\x00", "")
}

///////////////////////////////////////////////////////////////////////////////
// jobrunner.Service methods

func (s *Store) InsertJob(ctx context.Context, jobType string, data notnull.JSON, priority int16) (id int64, err error) {
	defer errs.WrapWithFuncParams(&err, ctx, jobType, data, priority)

	if s.closed.Load() {
		return 0, jobrunner.ErrClosed
	}

	err = db.Conn(ctx).QueryRow(
		/*sql*/ `
			insert into background_jobs
				(job_type, data, priority)
			values
				($1, $2, $3)
			returning id
		`,
		jobType,  // $1
		data,     // $2
		priority, // $3
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (s *Store) GetJob(ctx context.Context, id int64) (job *jobrunner.Job, err error) {
	defer errs.WrapWithFuncParams(&err, ctx, id)

	if s.closed.Load() {
		return nil, jobrunner.ErrClosed
	}

	err = db.Conn(ctx).QueryRow(
		`select `+jobColumns+` from background_jobs where id = $1`,
		id,
	).ScanStruct(&job)
	if err != nil {
		return nil, sqldb.ReplaceErrNoRows(err, jobrunner.ErrJobNotFound)
	}
	return job, nil
}

func (s *Store) DeleteJob(ctx context.Context, id int64) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx, id)

	if s.closed.Load() {
		return jobrunner.ErrClosed
	}

	return db.Conn(ctx).Exec(`delete from background_jobs where id = $1`, id)
}

func (s *Store) ResetFailedJob(ctx context.Context, id int64) (err error) {
	defer errs.WrapWithFuncParams(&err, ctx, id)

	if s.closed.Load() {
		return jobrunner.ErrClosed
	}

	return db.Conn(ctx).Exec(
		/*sql*/ `
			update background_jobs
			set
				retries    = 0,
				last_retry = '1970-01-01',
				last_error = null
			where id = $1
		`,
		id,
	)
}

type jobTypeCount struct {
	JobType string `db:"job_type"`
	Count   int    `db:"count"`
}

func (s *Store) GetStatus(ctx context.Context) (status *jobrunner.Status, err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	if s.closed.Load() {
		return nil, jobrunner.ErrClosed
	}

	status = new(jobrunner.Status)
	err = db.Conn(ctx).QueryRow(
		/*sql*/ `
			select
				count(*)                                                   as num_jobs,
				count(*) filter (where retries > 0)                        as num_failed_jobs,
				count(*) filter (where $1::int > 0 and retries >= $1::int) as num_dead_jobs
			from background_jobs
		`,
		s.retryPolicy.MaxRetries, // $1
	).Scan(
		&status.NumJobs,
		&status.NumFailedJobs,
		&status.NumDeadJobs,
	)
	if err != nil {
		return nil, err
	}

	var counts []jobTypeCount
	err = db.Conn(ctx).QueryRows(
		/*sql*/ `
			select job_type, count(*) as count
			from background_jobs
			group by job_type
		`,
	).ScanStructSlice(&counts)
	if err != nil {
		return nil, err
	}
	status.NumJobsPerType = make(map[string]int, len(counts))
	for _, c := range counts {
		status.NumJobsPerType[c.JobType] = c.Count
	}
	return status, nil
}

func (s *Store) GetFailedJobs(ctx context.Context) (jobs []*jobrunner.Job, err error) {
	defer errs.WrapWithFuncParams(&err, ctx)

	if s.closed.Load() {
		return nil, jobrunner.ErrClosed
	}

	err = db.Conn(ctx).QueryRows(
		/*sql*/ `
			select `+jobColumns+`
			from background_jobs
			where retries > 0
			order by last_retry desc
		`,
	).ScanStructSlice(&jobs)
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

// PurgeDeadJobs deletes jobs that exhausted RetryPolicy.MaxRetries
// and whose last attempt is older than olderThan.
// Does nothing if MaxRetries is zero, because then no job is dead.
func (s *Store) PurgeDeadJobs(ctx context.Context, olderThan time.Duration) (numDeleted int, err error) {
	defer errs.WrapWithFuncParams(&err, ctx, olderThan)

	if s.closed.Load() {
		return 0, jobrunner.ErrClosed
	}
	if s.retryPolicy.MaxRetries <= 0 {
		return 0, nil
	}

	err = db.Conn(ctx).QueryRow(
		/*sql*/ `
			with deleted as (
				delete from background_jobs
				where retries >= $1
					and last_retry < now() - make_interval(secs => $2::float8)
				returning id
			)
			select count(*) from deleted
		`,
		s.retryPolicy.MaxRetries, // $1
		olderThan.Seconds(),      // $2
	).Scan(&numDeleted)
	if err != nil {
		return 0, err
	}
	if numDeleted > 0 {
		log.Info("Purged dead jobs").
			Int("numDeleted", numDeleted).
			Log()
	}
	return numDeleted, nil
}

func (s *Store) Close() (err error) {
	defer errs.WrapWithFuncParams(&err)

	if s.closed.Swap(true) {
		return jobrunner.ErrClosed
	}

	s.listenerMtx.Lock()
	defer s.listenerMtx.Unlock()

	if s.hasJobAvailableListener {
		s.hasJobAvailableListener = false
		return db.Conn(context.Background()).UnlistenChannel(JobAvailableChannel)
	}
	return nil
}
