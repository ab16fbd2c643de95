package stream

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestMemoryQueue_OrderAndMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	var ids []string
	for _, payload := range []string{"a", "b", "c"} {
		id, err := q.Put(ctx, payload)
		if err != nil {
			t.Fatalf("Put: %v", err)
		}
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		if CompareIDs(ids[i-1], ids[i]) >= 0 {
			t.Fatalf("ids not strictly increasing: %q then %q", ids[i-1], ids[i])
		}
	}

	after := "0"
	for _, want := range []string{"a", "b", "c"} {
		id, payload, err := q.Tail(ctx, after, 0)
		if err != nil {
			t.Fatalf("Tail: %v", err)
		}
		if payload != want {
			t.Errorf("payload = %q, want %q", payload, want)
		}
		after = id
	}
	if id, _, _ := q.Tail(ctx, after, 0); id != "" {
		t.Errorf("Tail past end returned %q", id)
	}
}

func TestMemoryQueue_TailDoesNotConsume(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()
	if _, err := q.Put(ctx, "x"); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		_, payload, err := q.Tail(ctx, "0", 0)
		if err != nil {
			t.Fatalf("Tail: %v", err)
		}
		if payload != "x" {
			t.Errorf("read %d: payload = %q", i, payload)
		}
	}
	if n, _ := q.Size(ctx); n != 1 {
		t.Errorf("size = %d after repeated Tail", n)
	}
}

func TestMemoryQueue_TailBlocksUntilPut(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	done := make(chan string, 1)
	go func() {
		_, payload, _ := q.Tail(ctx, "0", 2*time.Second)
		done <- payload
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := q.Put(ctx, "late"); err != nil {
		t.Fatal(err)
	}

	select {
	case payload := <-done:
		if payload != "late" {
			t.Errorf("payload = %q", payload)
		}
	case <-time.After(time.Second):
		t.Fatal("Tail did not wake on Put")
	}
}

func TestMemoryQueue_PopExactlyOnce(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	const n = 50
	for i := 0; i < n; i++ {
		if _, err := q.Put(ctx, "m"); err != nil {
			t.Fatal(err)
		}
	}

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				id, _, err := q.Pop(ctx)
				if err != nil {
					t.Error(err)
					return
				}
				if id == "" {
					return
				}
				mu.Lock()
				seen[id]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != n {
		t.Fatalf("popped %d distinct entries, want %d", len(seen), n)
	}
	for id, count := range seen {
		if count != 1 {
			t.Errorf("entry %s delivered %d times", id, count)
		}
	}
	if sz, _ := q.Size(ctx); sz != 0 {
		t.Errorf("size = %d after draining", sz)
	}
}

func TestMemoryQueue_ClearDeleteLatest(t *testing.T) {
	ctx := context.Background()
	q := NewMemoryQueue()

	first, _ := q.Put(ctx, "a")
	second, _ := q.Put(ctx, "b")

	if latest, _ := q.LatestID(ctx); latest != second {
		t.Errorf("LatestID = %q, want %q", latest, second)
	}

	if err := q.Delete(ctx, first); err != nil {
		t.Fatal(err)
	}
	if n, _ := q.Size(ctx); n != 1 {
		t.Errorf("size = %d after delete", n)
	}

	if err := q.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if n, _ := q.Size(ctx); n != 0 {
		t.Errorf("size = %d after clear", n)
	}
	if latest, _ := q.LatestID(ctx); latest != "0" {
		t.Errorf("LatestID = %q on empty queue", latest)
	}
}

func TestFactoryReturnsSameQueue(t *testing.T) {
	f := NewMemoryFactory()
	a := f.Queue("task:input:1")
	b := f.Queue("task:input:1")
	if a != b {
		t.Error("same name returned different queues")
	}
	if f.Queue("task:input:2") == a {
		t.Error("different names returned the same queue")
	}
}

func TestCompareIDs(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"0", "1-0", -1},
		{"", "1-0", -1},
		{"1-0", "1-0", 0},
		{"1-1", "1-0", 1},
		{"2-0", "1-9", 1},
		{"10-0", "9-5", 1},
	}
	for _, tt := range tests {
		if got := CompareIDs(tt.a, tt.b); got != tt.want {
			t.Errorf("CompareIDs(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}
