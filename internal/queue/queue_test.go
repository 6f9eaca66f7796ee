package queue

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/BerylCAtieno/doc-vault-api/internal/utils"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

func testDB(t *testing.T) *sqlx.DB {
	t.Helper()

	db, err := sqlx.Connect("sqlite", filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)

	db.MustExec(`
		CREATE TABLE processing_jobs (
			id         TEXT PRIMARY KEY,
			version_id INTEGER NOT NULL,
			visible_at INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			attempts   INTEGER NOT NULL DEFAULT 0,
			abandoned  INTEGER NOT NULL DEFAULT 0
		)
	`)
	return db
}

func testQueue(t *testing.T, opts Options) *Queue {
	return New(testDB(t), opts, utils.NewLogger("error"))
}

func TestPublishClaimAck(t *testing.T) {
	q := testQueue(t, Options{})
	ctx := context.Background()

	if err := q.Publish(ctx, 42); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job == nil {
		t.Fatal("Claim returned no job for a visible entry")
	}
	if job.VersionID != 42 {
		t.Errorf("version_id = %d, want 42", job.VersionID)
	}
	if job.Attempts != 1 {
		t.Errorf("attempts = %d, want 1 on first delivery", job.Attempts)
	}

	// The claimed job is invisible to a second consumer.
	if second, err := q.Claim(ctx); err != nil || second != nil {
		t.Errorf("second Claim = (%v, %v), want (nil, nil)", second, err)
	}

	if err := q.Ack(ctx, job.ID); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	var count int
	if err := q.db.Get(&count, `SELECT COUNT(*) FROM processing_jobs`); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("acked job still in table, count = %d", count)
	}
}

func TestClaimEmpty(t *testing.T) {
	q := testQueue(t, Options{})

	job, err := q.Claim(context.Background())
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job != nil {
		t.Errorf("Claim on empty queue returned %+v", job)
	}
}

func TestClaimOldestFirst(t *testing.T) {
	q := testQueue(t, Options{})
	ctx := context.Background()

	// Insert with explicit visibility so ordering is deterministic.
	for i, vis := range []int64{300, 100, 200} {
		q.db.MustExec(`
			INSERT INTO processing_jobs (id, version_id, visible_at, created_at)
			VALUES ($1, $2, $3, $3)
		`, fmt.Sprintf("job-%d", i), int64(i+1), vis)
	}

	job, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if job == nil || job.VersionID != 2 {
		t.Errorf("claimed %+v, want the job with the earliest visible_at (version 2)", job)
	}
}

func TestNackReschedulesWithBackoff(t *testing.T) {
	q := testQueue(t, Options{BackoffBase: time.Minute})
	ctx := context.Background()

	if err := q.Publish(ctx, 7); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim = (%v, %v)", job, err)
	}

	before := time.Now()
	if err := q.Nack(ctx, job); err != nil {
		t.Fatalf("Nack failed: %v", err)
	}

	var visibleAt int64
	if err := q.db.Get(&visibleAt, `SELECT visible_at FROM processing_jobs WHERE id = $1`, job.ID); err != nil {
		t.Fatalf("visible_at query failed: %v", err)
	}

	// First retry delay is base * jitter, jitter in [0.5, 1.5).
	min := before.Add(30 * time.Second).UnixMilli()
	max := before.Add(90*time.Second + time.Second).UnixMilli()
	if visibleAt < min || visibleAt > max {
		t.Errorf("visible_at = %d, want within [%d, %d]", visibleAt, min, max)
	}

	// Still invisible right now.
	if again, err := q.Claim(ctx); err != nil || again != nil {
		t.Errorf("Claim after Nack = (%v, %v), want (nil, nil)", again, err)
	}
}

func TestNackAbandonsAfterRetryBudget(t *testing.T) {
	q := testQueue(t, Options{MaxAttempts: 5})
	ctx := context.Background()

	if err := q.Publish(ctx, 8); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	deliveries := 0
	for {
		q.db.MustExec(`UPDATE processing_jobs SET visible_at = 0 WHERE abandoned = 0`)
		job, err := q.Claim(ctx)
		if err != nil {
			t.Fatalf("Claim failed: %v", err)
		}
		if job == nil {
			break
		}
		deliveries++
		if deliveries > 10 {
			t.Fatal("job never abandoned")
		}
		if err := q.Nack(ctx, job); err != nil {
			t.Fatalf("Nack %d failed: %v", deliveries, err)
		}
	}

	// The budget is the initial delivery plus MaxAttempts retries.
	if deliveries != 6 {
		t.Errorf("deliveries = %d (retries = %d), want 6 (5 retries)", deliveries, deliveries-1)
	}

	var abandoned int
	if err := q.db.Get(&abandoned, `SELECT abandoned FROM processing_jobs WHERE version_id = 8`); err != nil {
		t.Fatalf("abandoned query failed: %v", err)
	}
	if abandoned != 1 {
		t.Error("job not abandoned after exhausting its retries")
	}

	// Abandoned jobs are never claimed again, even when visible.
	q.db.MustExec(`UPDATE processing_jobs SET visible_at = 0`)
	if job, err := q.Claim(ctx); err != nil || job != nil {
		t.Errorf("Claim of abandoned job = (%v, %v), want (nil, nil)", job, err)
	}
}

func TestReleaseUndoesClaim(t *testing.T) {
	q := testQueue(t, Options{})
	ctx := context.Background()

	if err := q.Publish(ctx, 9); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}
	job, err := q.Claim(ctx)
	if err != nil || job == nil {
		t.Fatalf("Claim = (%v, %v)", job, err)
	}

	q.release(job)

	// The job is immediately visible again and the aborted delivery does
	// not count against the retry budget.
	again, err := q.Claim(ctx)
	if err != nil {
		t.Fatalf("Claim after release failed: %v", err)
	}
	if again == nil {
		t.Fatal("released job not visible to the next consumer")
	}
	if again.Attempts != 1 {
		t.Errorf("attempts = %d after release and reclaim, want 1", again.Attempts)
	}
}

func TestBackoffBounds(t *testing.T) {
	q := testQueue(t, Options{BackoffBase: 2 * time.Second, BackoffCap: 600 * time.Second})

	for attempts := 1; attempts <= 12; attempts++ {
		delay := q.Backoff(attempts)

		if delay > 600*time.Second {
			t.Errorf("attempt %d: delay %s exceeds cap", attempts, delay)
		}
		if delay < time.Second {
			t.Errorf("attempt %d: delay %s below half the base", attempts, delay)
		}
	}

	// Exponential growth until the cap: attempt 4 is at least base*2^3*0.5.
	if delay := q.Backoff(4); delay < 8*time.Second {
		t.Errorf("attempt 4: delay %s, want >= 8s", delay)
	}
}

func TestTerminal(t *testing.T) {
	base := errors.New("version gone")
	wrapped := Terminal(base)

	if !IsTerminal(wrapped) {
		t.Error("Terminal error not recognized")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Terminal must unwrap to the original error")
	}
	if IsTerminal(base) {
		t.Error("plain error misclassified as terminal")
	}
	if IsTerminal(fmt.Errorf("ctx: %w", wrapped)) != true {
		t.Error("wrapped terminal error not recognized")
	}
}

func TestRunProcessesAndDrains(t *testing.T) {
	q := testQueue(t, Options{PollInterval: 10 * time.Millisecond, Concurrency: 2})
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Publish(ctx, 21); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	handled := make(chan int64, 1)
	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(_ context.Context, job *Job) error {
			handled <- job.VersionID
			return nil
		})
		close(done)
	}()

	select {
	case v := <-handled:
		if v != 21 {
			t.Errorf("handled version %d, want 21", v)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job was never handled")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}

	// The handled job must have been acked.
	var count int
	if err := q.db.Get(&count, `SELECT COUNT(*) FROM processing_jobs`); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("job not acked after successful handling, count = %d", count)
	}
}

func TestRunDropsTerminalFailures(t *testing.T) {
	q := testQueue(t, Options{PollInterval: 10 * time.Millisecond})
	ctx, cancel := context.WithCancel(context.Background())

	if err := q.Publish(ctx, 22); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	handled := make(chan struct{}, 1)
	done := make(chan struct{})
	go func() {
		q.Run(ctx, func(_ context.Context, _ *Job) error {
			handled <- struct{}{}
			return Terminal(errors.New("no such version"))
		})
		close(done)
	}()

	select {
	case <-handled:
	case <-time.After(5 * time.Second):
		t.Fatal("job was never handled")
	}

	cancel()
	<-done

	var count int
	if err := q.db.Get(&count, `SELECT COUNT(*) FROM processing_jobs`); err != nil {
		t.Fatalf("count query failed: %v", err)
	}
	if count != 0 {
		t.Errorf("terminally failed job not dropped, count = %d", count)
	}
}
