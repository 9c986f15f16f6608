package xtesting

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// UniqueName returns a globally unique name with the given prefix.
func UniqueName(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.NewString())
}

var counters sync.Map

// SequentialName returns a unique name with the given prefix and a
// monotonically increasing suffix.
func SequentialName(prefix string) string {
	v, ok := counters.Load(prefix)
	if !ok {
		var counter atomic.Uint64
		v, _ = counters.LoadOrStore(prefix, &counter)
	}

	counter := v.(*atomic.Uint64)
	return fmt.Sprintf("%s-%d", prefix, counter.Add(1))
}

// UniqueIdentifier returns a globally unique name with the given prefix that
// is a valid unquoted SQL identifier.
func UniqueIdentifier(prefix string) string {
	return strings.ReplaceAll(UniqueName(prefix), "-", "_")
}
