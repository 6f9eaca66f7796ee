package queue

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
	"github.com/jmoiron/sqlx"
)

// Job is one queued pipeline execution for a document version. Attempts
// counts deliveries, so a job claimed for the first time carries Attempts=1.
type Job struct {
	ID        string    `db:"id"`
	VersionID int64     `db:"version_id"`
	VisibleAt time.Time `db:"-"`
	CreatedAt time.Time `db:"-"`
	Attempts  int       `db:"attempts"`
}

type Options struct {
	// Visibility is how long a claimed job stays invisible to other
	// consumers. It must exceed the slowest expected pipeline run (OCR on
	// a large scan is the ceiling). Default: 20m.
	Visibility time.Duration
	// PollInterval is the delay between claim attempts. Default: 1s.
	PollInterval time.Duration
	// MaxAttempts is the retry budget beyond the first delivery: a job is
	// abandoned and left in the table for operator inspection once it has
	// failed MaxAttempts+1 deliveries. Default: 5.
	MaxAttempts int
	// BackoffBase and BackoffCap bound the exponential retry delay.
	// Defaults: 2s base, 600s cap.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// Concurrency bounds how many jobs run at once. Default: 4.
	Concurrency int
}

func (o *Options) defaults() {
	if o.Visibility <= 0 {
		o.Visibility = 20 * time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 5
	}
	if o.BackoffBase <= 0 {
		o.BackoffBase = 2 * time.Second
	}
	if o.BackoffCap <= 0 {
		o.BackoffCap = 600 * time.Second
	}
	if o.Concurrency <= 0 {
		o.Concurrency = 4
	}
}

// Queue is a visibility-timeout job queue on the application's SQLite
// database. A claimed job reappears automatically when its holder crashes
// or exceeds the visibility window, so no work is lost to dead workers.
type Queue struct {
	db     *sqlx.DB
	opts   Options
	logger *utils.Logger
}

func New(db *sqlx.DB, opts Options, logger *utils.Logger) *Queue {
	opts.defaults()
	return &Queue{db: db, opts: opts, logger: logger}
}

// Publish enqueues a processing job for a version, immediately visible.
func (q *Queue) Publish(ctx context.Context, versionID int64) error {
	now := time.Now().UnixMilli()
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO processing_jobs (id, version_id, visible_at, created_at)
		VALUES ($1, $2, $3, $4)
	`, utils.GenerateID(), versionID, now, now)
	return err
}

// Claim atomically picks the oldest visible job, marks it invisible for
// the visibility window, and returns it. Returns nil, nil when no job is
// available.
func (q *Queue) Claim(ctx context.Context) (*Job, error) {
	now := time.Now()
	hideUntil := now.Add(q.opts.Visibility).UnixMilli()

	row := q.db.QueryRowContext(ctx, `
		UPDATE processing_jobs
		SET visible_at = $1, attempts = attempts + 1
		WHERE id = (
			SELECT id FROM processing_jobs
			WHERE abandoned = 0 AND visible_at <= $2
			ORDER BY visible_at ASC
			LIMIT 1
		)
		RETURNING id, version_id, visible_at, created_at, attempts
	`, hideUntil, now.UnixMilli())

	var j Job
	var visAt, creAt int64
	err := row.Scan(&j.ID, &j.VersionID, &visAt, &creAt, &j.Attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	j.VisibleAt = time.UnixMilli(visAt)
	j.CreatedAt = time.UnixMilli(creAt)
	return &j, nil
}

// Ack deletes a finished job.
func (q *Queue) Ack(ctx context.Context, id string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM processing_jobs WHERE id = $1`, id)
	return err
}

// Nack schedules a failed job for redelivery after an exponential backoff,
// or abandons it once the attempt budget is spent. Abandoned jobs stay in
// the table for manual inspection.
func (q *Queue) Nack(ctx context.Context, job *Job) error {
	if job.Attempts > q.opts.MaxAttempts {
		q.logger.Error("Job retry budget exhausted, abandoning",
			"job_id", job.ID, "version_id", job.VersionID, "attempts", job.Attempts)
		_, err := q.db.ExecContext(ctx, `
			UPDATE processing_jobs SET abandoned = 1 WHERE id = $1
		`, job.ID)
		return err
	}

	delay := q.Backoff(job.Attempts)
	visibleAt := time.Now().Add(delay).UnixMilli()
	_, err := q.db.ExecContext(ctx, `
		UPDATE processing_jobs SET visible_at = $1 WHERE id = $2
	`, visibleAt, job.ID)
	return err
}

// Backoff returns the retry delay for a delivery attempt: exponential in
// the attempt number with a randomized jitter factor in [0.5, 1.5), capped
// so a burst of failing jobs cannot push retries out indefinitely and
// jittered so they do not retry in lockstep.
func (q *Queue) Backoff(attempts int) time.Duration {
	delay := q.opts.BackoffBase
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= q.opts.BackoffCap {
			delay = q.opts.BackoffCap
			break
		}
	}

	jittered := time.Duration(float64(delay) * (0.5 + rand.Float64()))
	if jittered > q.opts.BackoffCap {
		jittered = q.opts.BackoffCap
	}
	return jittered
}

// release gives back a claimed job that was never handed to a handler,
// undoing the delivery count so the aborted claim does not eat into the
// retry budget.
func (q *Queue) release(job *Job) {
	_, err := q.db.Exec(`
		UPDATE processing_jobs SET visible_at = 0, attempts = attempts - 1 WHERE id = $1
	`, job.ID)
	if err != nil {
		q.logger.Error("Failed to release claimed job", "job_id", job.ID, "error", err)
	}
}

// Handler processes one claimed job. Return nil to ack; wrap the error
// with Terminal to ack a job that must not be retried; any other error
// nacks the job into backoff.
type Handler func(ctx context.Context, job *Job) error

type terminalError struct{ err error }

func (e terminalError) Error() string { return e.err.Error() }
func (e terminalError) Unwrap() error { return e.err }

// Terminal marks an error as non-retryable.
func Terminal(err error) error {
	return terminalError{err: err}
}

func IsTerminal(err error) bool {
	var t terminalError
	return errors.As(err, &t)
}

// Run polls for visible jobs and dispatches them to handler with bounded
// concurrency. It blocks until ctx is cancelled, then drains in-flight
// handlers before returning.
func (q *Queue) Run(ctx context.Context, handler Handler) {
	q.logger.Info("Queue consumer started",
		"concurrency", q.opts.Concurrency,
		"visibility", q.opts.Visibility.String(),
		"poll_interval", q.opts.PollInterval.String())

	sem := make(chan struct{}, q.opts.Concurrency)
	var wg sync.WaitGroup

	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			q.logger.Info("Queue consumer stopping, draining in-flight jobs")
			wg.Wait()
			q.logger.Info("Queue consumer stopped")
			return
		case <-ticker.C:
			q.poll(ctx, handler, sem, &wg)
		}
	}
}

func (q *Queue) poll(ctx context.Context, handler Handler, sem chan struct{}, wg *sync.WaitGroup) {
	for {
		job, err := q.Claim(ctx)
		if err != nil {
			if ctx.Err() == nil {
				q.logger.Error("Failed to claim job", "error", err)
			}
			return
		}
		if job == nil {
			return // nothing visible
		}

		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			q.release(job)
			return
		}

		wg.Add(1)
		go func(j *Job) {
			defer wg.Done()
			defer func() { <-sem }()

			err := handler(ctx, j)
			// Acks and nacks use a fresh context: the job's fate must be
			// recorded even when shutdown cancelled ctx mid-handling.
			switch {
			case err == nil:
				_ = q.Ack(context.Background(), j.ID)
			case IsTerminal(err):
				q.logger.Error("Job failed terminally, dropping",
					"job_id", j.ID, "version_id", j.VersionID, "error", err)
				_ = q.Ack(context.Background(), j.ID)
			default:
				q.logger.Error("Job failed, scheduling retry",
					"job_id", j.ID, "version_id", j.VersionID,
					"attempts", j.Attempts, "error", err)
				_ = q.Nack(context.Background(), j)
			}
		}(job)
	}
}
