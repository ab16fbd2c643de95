// Package stream provides the append-only, ID-keyed message queues that
// connect chat requests to task runners and task runners to SSE readers.
//
// Two implementations exist: a Redis-stream queue for multi-process
// deployments and an in-process queue with identical ordering semantics.
// IDs follow the Redis stream format "<ms>-<seq>" and are strictly
// monotonic within a queue; "0" addresses the position before the first
// entry.
package stream

import (
	"context"
	"strconv"
	"strings"
	"time"
)

// Queue is an append-only sequence of (id, payload) entries.
//
// Tail is idempotent per afterID and does not consume: every reader that
// advances its own cursor sees every entry exactly once. Pop atomically
// removes the head entry and delivers it to exactly one consumer;
// concurrent Pop calls are serialized by a queue-scoped advisory lock.
type Queue interface {
	// Put appends payload and returns its assigned id.
	Put(ctx context.Context, payload string) (string, error)

	// Tail returns the first entry strictly after afterID, blocking up to
	// block when the queue has no newer entry. afterID "0" (or empty)
	// reads from the beginning. Returns ("", "", nil) when nothing
	// arrived in time.
	Tail(ctx context.Context, afterID string, block time.Duration) (id, payload string, err error)

	// Pop removes and returns the head entry, or ("", "", nil) when the
	// queue is empty or the pop lock could not be acquired.
	Pop(ctx context.Context) (id, payload string, err error)

	// Size returns the number of entries.
	Size(ctx context.Context) (int64, error)

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Delete removes the entry with the given id.
	Delete(ctx context.Context, id string) error

	// LatestID returns the id of the newest entry, or "0" when empty.
	LatestID(ctx context.Context) (string, error)
}

// Factory builds the two queues owned by a task.
type Factory interface {
	// Queue returns the queue with the given name, creating it if needed.
	Queue(name string) Queue
}

// Pop lock parameters, shared by both implementations.
const (
	popLockAcquire = 5 * time.Second
	popLockExpiry  = 10 * time.Second
	popLockRetry   = 100 * time.Millisecond
)

// CompareIDs orders two stream ids. Returns -1, 0, or 1.
func CompareIDs(a, b string) int {
	ams, aseq := splitID(a)
	bms, bseq := splitID(b)
	switch {
	case ams != bms:
		if ams < bms {
			return -1
		}
		return 1
	case aseq != bseq:
		if aseq < bseq {
			return -1
		}
		return 1
	}
	return 0
}

func splitID(id string) (ms, seq int64) {
	if id == "" || id == "0" {
		return 0, 0
	}
	part, rest, found := strings.Cut(id, "-")
	ms, _ = strconv.ParseInt(part, 10, 64)
	if found {
		seq, _ = strconv.ParseInt(rest, 10, 64)
	}
	return ms, seq
}
