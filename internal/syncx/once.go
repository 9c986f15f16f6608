package syncx

import (
	"sync"
	"sync/atomic"
)

// SucceedOnce is a [sync.Once] variant for operations that may fail.
//
// Unlike [sync.Once], a failed attempt does not latch; the operation runs
// again on the next call.
type SucceedOnce struct {
	done atomic.Bool
	m    sync.Mutex
}

// Do executes fn if and only if no prior call has succeeded.
//
// It returns nil without calling fn if a prior call has succeeded.
func (o *SucceedOnce) Do(fn func() error) error {
	if o.done.Load() {
		return nil
	}

	o.m.Lock()
	defer o.m.Unlock()

	if o.done.Load() {
		return nil
	}

	if err := fn(); err != nil {
		return err
	}

	o.done.Store(true)

	return nil
}
