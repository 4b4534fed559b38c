package ui

import (
	"fmt"
	"sync"
	"testing"
)

func TestQueueDrainReturnsInOrder(t *testing.T) {
	q := NewQueue(10)
	q.Emit("first", StyleInfo)
	q.Emit("second", StyleFinding)

	drained := q.Drain()
	if len(drained) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(drained))
	}
	if drained[0].Text != "first" || drained[1].Text != "second" {
		t.Fatalf("notifications out of order: %v", drained)
	}
	if q.Len() != 0 {
		t.Fatalf("drain left %d notifications behind", q.Len())
	}
	if q.Drain() != nil {
		t.Fatalf("second drain returned notifications")
	}
}

func TestQueueDropsOldestWhenFull(t *testing.T) {
	q := NewQueue(3)
	for i := 0; i < 5; i++ {
		q.Emit(fmt.Sprintf("n%d", i), StyleInfo)
	}

	drained := q.Drain()
	if len(drained) != 3 {
		t.Fatalf("expected capacity-bounded queue, got %d", len(drained))
	}
	if drained[0].Text != "n2" || drained[2].Text != "n4" {
		t.Fatalf("oldest not dropped: %v", drained)
	}
}

func TestQueueStatus(t *testing.T) {
	q := NewQueue(4)
	if q.Status() != "" {
		t.Fatalf("fresh queue has status %q", q.Status())
	}
	q.SetStatus("thinking")
	if q.Status() != "thinking" {
		t.Fatalf("status not updated: %q", q.Status())
	}
}

func TestQueueConcurrentProducers(t *testing.T) {
	q := NewQueue(1000)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				q.Emit("x", StyleInfo)
			}
		}()
	}
	wg.Wait()

	if got := q.Len(); got != 1000 {
		t.Fatalf("expected 1000 notifications, got %d", got)
	}
}
