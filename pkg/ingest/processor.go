// Package ingest turns accepted message ops into fact transactions. A
// single consumer goroutine drains the queue, so commit order matches
// enqueue order and all fact writes stay serialized through one path.
package ingest

import (
	"context"
	"encoding/json"

	"loomdb/pkg/facts"
	"loomdb/pkg/ingest/queue"
	"loomdb/pkg/logger"
)

// MessagePayload is the body accepted on message ops. Body is opaque;
// Mentions lists user ids to mark as mentioned on the thread.
type MessagePayload struct {
	Body     string   `json:"body"`
	Mentions []string `json:"mentions,omitempty"`
}

// RunProcessor consumes the queue until ctx is cancelled or the queue
// closes. It is the only writer of message facts.
func RunProcessor(ctx context.Context, q *queue.Queue) {
	logger.Info("ingest_processor_started", "capacity", q.Cap())
	for {
		select {
		case <-ctx.Done():
			logger.Info("ingest_processor_stopped", "reason", "context")
			return
		case it, ok := <-q.Out():
			if !ok {
				logger.Info("ingest_processor_stopped", "reason", "queue_closed")
				return
			}
			queueDepth.Set(float64(q.Len()))
			if err := processItem(it.Op); err != nil {
				processFailed.Inc()
				logger.Error("ingest_process_failed", "msg", it.Op.ID, "thread", it.Op.Thread, "error", err)
			} else {
				processedTotal.Inc()
			}
			it.Done()
		}
	}
}

func processItem(op *queue.Op) error {
	var p MessagePayload
	if len(op.Payload) > 0 {
		if err := json.Unmarshal(op.Payload, &p); err != nil {
			return err
		}
	}
	b, err := messageBatch(op, p)
	if err != nil {
		return err
	}
	_, _, err = facts.Apply(b)
	return err
}

// messageBatch builds the atomic fact batch for one posted message:
// the message facts themselves, thread ownership when the thread is
// new, subscription and open state for the author, and mention marks.
func messageBatch(op *queue.Op, p MessagePayload) (facts.Batch, error) {
	b := facts.Batch{
		facts.Assert(facts.RelMessageThread, op.ID, op.Thread),
		facts.Assert(facts.RelMessageCreatedAt, op.ID, formatNS(op.TS)),
	}
	if op.Author != "" {
		b = append(b, facts.Assert(facts.RelMessageUser, op.ID, op.Author))
	}
	if p.Body != "" {
		b = append(b, facts.Assert(facts.RelMessageContent, op.ID, p.Body))
	}
	if op.Group != "" {
		owned, err := facts.HasValue(facts.RelThreadGroup, op.Thread)
		if err != nil {
			return nil, err
		}
		if !owned {
			b = append(b, facts.Assert(facts.RelThreadGroup, op.Thread, op.Group))
		}
	}
	if op.Author != "" {
		// Posting opts the author in; dedup makes this free when they
		// already are.
		b = append(b,
			facts.Assert(facts.RelSubscribedThread, op.Author, op.Thread),
			facts.Assert(facts.RelOpenThread, op.Author, op.Thread),
		)
	}
	for _, u := range p.Mentions {
		b = append(b, facts.Assert(facts.RelThreadMentioned, op.Thread, u))
	}
	return b, nil
}
