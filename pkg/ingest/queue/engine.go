// Package queue provides the bounded in-memory queue feeding the ingest
// processor. Payloads ride in pooled buffers; consumers must call
// Item.Done() exactly once per item.
package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/valyala/bytebufferpool"
)

const fallbackCapacity = 1024

// maxPooledBuffer is the largest payload buffer returned to the pool;
// bigger ones are dropped so the pool cannot pin large arrays.
const maxPooledBuffer = 256 * 1024

var (
	ErrQueueFull   = errors.New("ingest queue full")
	ErrQueueClosed = errors.New("ingest queue closed")
)

// Op is one ingest operation. Payload may be backed by a pooled buffer.
type Op struct {
	Thread string
	ID     string
	// Author is the acting user id, resolved by the API layer.
	Author string
	// Group optionally names the owning group for implicit thread creation.
	Group   string
	Payload []byte
	// TS is the creation timestamp (ns) assigned at enqueue time.
	TS int64
	// EnqSeq is a monotonic sequence assigned on accept, for ordering.
	EnqSeq uint64
}

// Item wraps an Op and owns its pooled buffer, if any.
type Item struct {
	Op *Op

	buf  *bytebufferpool.ByteBuffer
	once sync.Once
	q    *Queue
}

// Done returns pooled resources. Must be called exactly once.
func (it *Item) Done() {
	it.once.Do(func() {
		if it.q != nil {
			atomic.AddInt64(&it.q.inFlight, -1)
			it.q = nil
		}
		if it.buf != nil {
			if cap(it.buf.B) <= maxPooledBuffer {
				bytebufferpool.Put(it.buf)
			}
			it.buf = nil
		}
		if it.Op != nil {
			it.Op.Payload = nil
			opPool.Put(it.Op)
			it.Op = nil
		}
	})
}

var opPool = sync.Pool{New: func() any { return &Op{} }}

// Queue is a threadsafe, fixed-size in-memory queue of ingest ops.
type Queue struct {
	ch       chan *Item
	capacity int
	dropped  uint64
	closed   int32
	seq      uint64
	inFlight int64

	closeOnce sync.Once
}

// New creates a bounded Queue of given capacity (>0).
func New(capacity int) *Queue {
	if capacity <= 0 {
		capacity = fallbackCapacity
	}
	return &Queue{ch: make(chan *Item, capacity), capacity: capacity}
}

// Out exposes items for the consumer (do not close).
func (q *Queue) Out() <-chan *Item { return q.ch }

func (q *Queue) prepare(op *Op) *Item {
	newOp := opPool.Get().(*Op)
	*newOp = *op
	newOp.EnqSeq = atomic.AddUint64(&q.seq, 1)

	var bb *bytebufferpool.ByteBuffer
	if len(op.Payload) > 0 {
		bb = bytebufferpool.Get()
		bb.B = append(bb.B[:0], op.Payload...)
		newOp.Payload = bb.B[:len(op.Payload)]
	}
	return &Item{Op: newOp, buf: bb, q: q}
}

func (it *Item) discard() {
	if it.buf != nil {
		bytebufferpool.Put(it.buf)
	}
	opPool.Put(it.Op)
}

// TryEnqueue enqueues without blocking; returns ErrQueueFull when at
// capacity.
func (q *Queue) TryEnqueue(op *Op) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	it := q.prepare(op)
	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		return nil
	default:
		it.discard()
		atomic.AddUint64(&q.dropped, 1)
		return ErrQueueFull
	}
}

// Enqueue blocks until the op is accepted or ctx is done.
func (q *Queue) Enqueue(ctx context.Context, op *Op) error {
	if atomic.LoadInt32(&q.closed) == 1 {
		return ErrQueueClosed
	}
	it := q.prepare(op)
	select {
	case q.ch <- it:
		atomic.AddInt64(&q.inFlight, 1)
		return nil
	case <-ctx.Done():
		it.discard()
		atomic.AddUint64(&q.dropped, 1)
		return ctx.Err()
	}
}

// Close stops accepting new ops and closes the channel; the consumer
// drains what remains.
func (q *Queue) Close() {
	q.closeOnce.Do(func() {
		atomic.StoreInt32(&q.closed, 1)
		close(q.ch)
	})
}

// CloseAndDrain closes the queue and releases any remaining items.
// Only for callers that own the consuming side.
func (q *Queue) CloseAndDrain() {
	q.Close()
	for it := range q.ch {
		it.Done()
	}
}

// Len returns the current number of queued items.
func (q *Queue) Len() int { return len(q.ch) }

// Cap returns the configured capacity.
func (q *Queue) Cap() int { return q.capacity }

// Dropped returns how many ops were rejected at capacity or cancelled.
func (q *Queue) Dropped() uint64 { return atomic.LoadUint64(&q.dropped) }
