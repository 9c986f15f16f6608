// Package queue provides a minimal client for a PostgreSQL-backed job queue.
//
// The client exposes enqueue, peek, fetch and complete operations over a
// disposable backend's connection string; delivery, locking and retry
// semantics belong to the underlying queue library and are inherited
// unchanged.
package queue

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
	"github.com/vgarvardt/gue/v5"
	"github.com/vgarvardt/gue/v5/adapter"
	"github.com/vgarvardt/gue/v5/adapter/pgxv5"
)

// State describes the point a job has reached in its lifecycle.
type State string

const (
	// StateQueued indicates the job is awaiting a worker.
	StateQueued State = "queued"

	// StateFetched indicates the job has been fetched by a worker and
	// released back to the queue without being completed.
	StateFetched State = "fetched"
)

// A Job is a unit of work tracked by the queue.
type Job struct {
	// ID uniquely identifies the job within the backend.
	ID string

	// Queue is the name of the queue the job was sent to.
	Queue string

	// Data is the job's payload.
	Data []byte

	// State is the lifecycle state the job was observed in.
	State State
}

// jobType is the type recorded against every job sent by this client; the
// delivery library requires one, but the harness routes exclusively by queue
// name.
const jobType = "pgarena.job"

// A Client is a session with the job queue on a single backend.
type Client struct {
	pool *pgxpool.Pool
	gue  *gue.Client
}

// Open connects to the backend at the given DSN and ensures the queue schema
// exists.
//
// The returned client owns its connection pool; call [Client.Close] before
// tearing down the backend.
func Open(ctx context.Context, dsn string) (*Client, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to queue backend: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot connect to queue backend: %w", err)
	}

	if err := CreateSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	gc, err := gue.NewClient(pgxv5.NewConnPool(pool))
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("cannot create queue client: %w", err)
	}

	return &Client{
		pool: pool,
		gue:  gc,
	}, nil
}

// Close closes the client's connection pool.
//
// It does not remove queued jobs; they remain on the backend until it is
// torn down.
func (c *Client) Close() {
	c.pool.Close()
}

// Send enqueues a job with the given payload on the named queue and returns
// the job's id.
func (c *Client) Send(ctx context.Context, queue string, data []byte) (string, error) {
	j := &gue.Job{
		Queue: queue,
		Type:  jobType,
		Args:  bytes.Clone(data),
	}

	if err := c.gue.Enqueue(ctx, j); err != nil {
		return "", fmt.Errorf("cannot enqueue job: %w", err)
	}

	return j.ID.String(), nil
}

// Peek returns the jobs currently queued on the named queue without locking
// or otherwise affecting them.
//
// Jobs are returned in the order they become eligible for fetching.
func (c *Client) Peek(ctx context.Context, queue string) ([]Job, error) {
	rows, err := c.pool.Query(
		ctx,
		`SELECT job_id, queue, args
		FROM gue_jobs
		WHERE queue = $1
		ORDER BY priority, run_at, job_id`,
		queue,
	)
	if err != nil {
		return nil, fmt.Errorf("cannot peek at queue: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j := Job{State: StateQueued}
		if err := rows.Scan(&j.ID, &j.Queue, &j.Data); err != nil {
			return nil, fmt.Errorf("cannot peek at queue: %w", err)
		}
		jobs = append(jobs, j)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("cannot peek at queue: %w", err)
	}

	return jobs, nil
}

// Fetch returns the next available job on the named queue, if any.
//
// Fetching does not consume the job: it is locked, snapshotted and released,
// so it remains addressable by [Client.Complete]. An empty result indicates
// the queue has no runnable jobs.
func (c *Client) Fetch(ctx context.Context, queue string) ([]Job, error) {
	j, err := c.gue.LockJob(ctx, queue)
	if err != nil {
		if errors.Is(err, adapter.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("cannot fetch job: %w", err)
	}

	if j == nil {
		return nil, nil
	}

	job := Job{
		ID:    j.ID.String(),
		Queue: j.Queue,
		Data:  bytes.Clone(j.Args),
		State: StateFetched,
	}

	if err := j.Done(ctx); err != nil {
		return nil, fmt.Errorf("cannot release job: %w", err)
	}

	return []Job{job}, nil
}

// Complete marks the job with the given id as done, removing it from the
// named queue.
//
// It returns a [JobNotFoundError] if the job has already been completed or
// never existed.
func (c *Client) Complete(ctx context.Context, queue, id string) error {
	jid, err := ulid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid job id %q: %w", id, err)
	}

	j, err := c.gue.LockJobByID(ctx, jid)
	if err != nil {
		if errors.Is(err, adapter.ErrNoRows) {
			return JobNotFoundError{ID: id}
		}
		return fmt.Errorf("cannot lock job: %w", err)
	}

	if j.Queue != queue {
		_ = j.Done(ctx)
		return JobNotFoundError{ID: id}
	}

	if err := j.Delete(ctx); err != nil {
		_ = j.Done(ctx)
		return fmt.Errorf("cannot complete job: %w", err)
	}

	return j.Done(ctx)
}
