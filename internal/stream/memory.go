package stream

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// MemoryFactory hands out in-process queues keyed by name. Suitable for
// single-process deployments and tests.
type MemoryFactory struct {
	mu     sync.Mutex
	queues map[string]*MemoryQueue
}

func NewMemoryFactory() *MemoryFactory {
	return &MemoryFactory{queues: make(map[string]*MemoryQueue)}
}

func (f *MemoryFactory) Queue(name string) Queue {
	f.mu.Lock()
	defer f.mu.Unlock()
	q, ok := f.queues[name]
	if !ok {
		q = NewMemoryQueue()
		f.queues[name] = q
	}
	return q
}

type memoryEntry struct {
	id      string
	payload string
}

// MemoryQueue is an in-process Queue with the same ordering and delivery
// semantics as the Redis implementation.
type MemoryQueue struct {
	mu      sync.Mutex
	entries []memoryEntry
	lastMS  int64
	lastSeq int64

	// Closed and replaced on every Put so blocked Tail calls wake up.
	arrival chan struct{}
}

func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{arrival: make(chan struct{})}
}

func (q *MemoryQueue) Put(ctx context.Context, payload string) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	ms := time.Now().UnixMilli()
	if ms < q.lastMS {
		ms = q.lastMS
	}
	if ms == q.lastMS {
		q.lastSeq++
	} else {
		q.lastMS = ms
		q.lastSeq = 0
	}
	id := formatID(q.lastMS, q.lastSeq)
	q.entries = append(q.entries, memoryEntry{id: id, payload: payload})

	close(q.arrival)
	q.arrival = make(chan struct{})
	return id, nil
}

func (q *MemoryQueue) Tail(ctx context.Context, afterID string, block time.Duration) (string, string, error) {
	deadline := time.Now().Add(block)
	for {
		q.mu.Lock()
		for _, e := range q.entries {
			if CompareIDs(e.id, afterID) > 0 {
				q.mu.Unlock()
				return e.id, e.payload, nil
			}
		}
		arrival := q.arrival
		q.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return "", "", nil
		}
		timer := time.NewTimer(remaining)
		select {
		case <-ctx.Done():
			timer.Stop()
			return "", "", ctx.Err()
		case <-timer.C:
			return "", "", nil
		case <-arrival:
			timer.Stop()
		}
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (string, string, error) {
	// The mutex is the in-process equivalent of the Redis advisory lock.
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return "", "", nil
	}
	head := q.entries[0]
	q.entries = q.entries[1:]
	return head.id, head.payload, nil
}

func (q *MemoryQueue) Size(ctx context.Context) (int64, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return int64(len(q.entries)), nil
}

func (q *MemoryQueue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
	return nil
}

func (q *MemoryQueue) Delete(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, e := range q.entries {
		if e.id == id {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			return nil
		}
	}
	return nil
}

func (q *MemoryQueue) LatestID(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.entries) == 0 {
		return "0", nil
	}
	return q.entries[len(q.entries)-1].id, nil
}

func formatID(ms, seq int64) string {
	return strconv.FormatInt(ms, 10) + "-" + strconv.FormatInt(seq, 10)
}
