package queue

import (
	"context"
	"testing"
	"time"
)

func TestEnqueueDequeuePreservesOrderAndPayload(t *testing.T) {
	q := New(8)
	payloads := []string{`{"body":"one"}`, `{"body":"two"}`, `{"body":"three"}`}
	for i, p := range payloads {
		op := &Op{Thread: "th1", ID: "m" + string(rune('1'+i)), Payload: []byte(p)}
		if err := q.TryEnqueue(op); err != nil {
			t.Fatalf("TryEnqueue %d: %v", i, err)
		}
	}
	if q.Len() != 3 {
		t.Fatalf("expected Len 3; got %d", q.Len())
	}
	for i, want := range payloads {
		it := <-q.Out()
		if got := string(it.Op.Payload); got != want {
			t.Fatalf("item %d payload %q; want %q", i, got, want)
		}
		if it.Op.EnqSeq != uint64(i+1) {
			t.Fatalf("item %d seq %d; want %d", i, it.Op.EnqSeq, i+1)
		}
		it.Done()
	}
}

func TestTryEnqueueFull(t *testing.T) {
	q := New(1)
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m1"}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m2"}); err != ErrQueueFull {
		t.Fatalf("expected ErrQueueFull; got %v", err)
	}
	if q.Dropped() != 1 {
		t.Fatalf("expected 1 dropped; got %d", q.Dropped())
	}
}

func TestEnqueueBlocksUntilContextDone(t *testing.T) {
	q := New(1)
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m1"}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := q.Enqueue(ctx, &Op{Thread: "th1", ID: "m2"}); err != context.DeadlineExceeded {
		t.Fatalf("expected DeadlineExceeded; got %v", err)
	}
}

func TestCloseRejectsNewOps(t *testing.T) {
	q := New(4)
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m1"}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	q.Close()
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m2"}); err != ErrQueueClosed {
		t.Fatalf("expected ErrQueueClosed; got %v", err)
	}
	// the queued item is still deliverable after Close
	it, ok := <-q.Out()
	if !ok {
		t.Fatalf("expected queued item before channel close")
	}
	if it.Op.ID != "m1" {
		t.Fatalf("expected m1; got %s", it.Op.ID)
	}
	it.Done()
	if _, ok := <-q.Out(); ok {
		t.Fatalf("channel should be closed after drain")
	}
}

func TestDoneIsIdempotent(t *testing.T) {
	q := New(1)
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m1", Payload: []byte("x")}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	it := <-q.Out()
	it.Done()
	it.Done()
}

func TestPayloadCopiedFromCaller(t *testing.T) {
	q := New(1)
	buf := []byte(`{"body":"orig"}`)
	if err := q.TryEnqueue(&Op{Thread: "th1", ID: "m1", Payload: buf}); err != nil {
		t.Fatalf("TryEnqueue: %v", err)
	}
	// caller may reuse its buffer after enqueue
	copy(buf, `{"body":"trash"}`)
	it := <-q.Out()
	if string(it.Op.Payload) != `{"body":"orig"}` {
		t.Fatalf("payload aliased caller buffer: %q", it.Op.Payload)
	}
	it.Done()
}

func TestZeroCapacityFallsBack(t *testing.T) {
	q := New(0)
	if q.Cap() != fallbackCapacity {
		t.Fatalf("expected fallback capacity %d; got %d", fallbackCapacity, q.Cap())
	}
}
