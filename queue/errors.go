package queue

import (
	"fmt"
)

// JobNotFoundError indicates that a job id does not refer to any job that is
// currently queued.
//
// It is returned by [Client.Complete] when the job has already been completed
// or never existed.
type JobNotFoundError struct {
	ID string
}

func (e JobNotFoundError) Error() string {
	return fmt.Sprintf("job %q is not queued", e.ID)
}
