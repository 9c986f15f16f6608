// Package typedqueue extends the queue client with strongly-typed job
// payloads.
package typedqueue

import (
	"context"
	"fmt"

	"github.com/dogmatiq/pgarena/marshaler"
	"github.com/dogmatiq/pgarena/queue"
)

// A Job is a unit of work with a payload of type T.
type Job[T any] struct {
	// ID uniquely identifies the job within the backend.
	ID string

	// Queue is the name of the queue the job was sent to.
	Queue string

	// Data is the job's payload.
	Data T

	// State is the lifecycle state the job was observed in.
	State queue.State
}

// A Queue sends and receives jobs with payloads of type T through an
// underlying [queue.Client].
type Queue[T any] struct {
	Client    *queue.Client
	Marshaler marshaler.Marshaler[T]
}

// Send enqueues a job with the given payload on the named queue and returns
// the job's id.
func (q *Queue[T]) Send(ctx context.Context, name string, payload T) (string, error) {
	data, err := q.Marshaler.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("cannot marshal job payload: %w", err)
	}

	return q.Client.Send(ctx, name, data)
}

// Fetch returns the next available job on the named queue, if any.
func (q *Queue[T]) Fetch(ctx context.Context, name string) ([]Job[T], error) {
	raw, err := q.Client.Fetch(ctx, name)
	if err != nil {
		return nil, err
	}

	jobs := make([]Job[T], 0, len(raw))

	for _, j := range raw {
		data, err := q.Marshaler.Unmarshal(j.Data)
		if err != nil {
			return nil, fmt.Errorf("cannot unmarshal payload of job %q: %w", j.ID, err)
		}

		jobs = append(
			jobs,
			Job[T]{
				ID:    j.ID,
				Queue: j.Queue,
				Data:  data,
				State: j.State,
			},
		)
	}

	return jobs, nil
}

// Complete marks the job with the given id as done, removing it from the
// named queue.
func (q *Queue[T]) Complete(ctx context.Context, name, id string) error {
	return q.Client.Complete(ctx, name, id)
}
