// Package subs builds the fact batches that drive subscription and
// open-state changes. Builders never commit; the caller applies the
// returned batch in one transaction. The single exception is
// BumpLastOpen, which must commit twice and does so itself.
package subs

import (
	"fmt"

	"loomdb/pkg/facts"
	"loomdb/pkg/threads"
)

// HideThread removes the thread from the user's open set.
func HideThread(userID, threadID string) facts.Batch {
	return facts.Batch{
		facts.Retract(facts.RelOpenThread, userID, threadID),
	}
}

// ShowThread surfaces the thread in the user's open set.
func ShowThread(userID, threadID string) facts.Batch {
	return facts.Batch{
		facts.Assert(facts.RelOpenThread, userID, threadID),
	}
}

// Subscribe opts the user into the thread and opens it.
func Subscribe(userID, threadID string) facts.Batch {
	return facts.Batch{
		facts.Assert(facts.RelSubscribedThread, userID, threadID),
		facts.Assert(facts.RelOpenThread, userID, threadID),
	}
}

// Unsubscribe opts the user out and closes the thread for them.
func Unsubscribe(userID, threadID string) facts.Batch {
	return facts.Batch{
		facts.Retract(facts.RelSubscribedThread, userID, threadID),
		facts.Retract(facts.RelOpenThread, userID, threadID),
	}
}

// TagThread builds the composite tagging batch: implicit thread
// creation, tag attachment, and subscription fan-out to the broadcast
// group's members. Members already subscribed are left untouched so
// their open-state timestamps do not move. The batch must be applied as
// one transaction.
func TagThread(s *facts.Snapshot, groupID, threadID, tag string) (facts.Batch, error) {
	var b facts.Batch

	exists, err := threads.Exists(s, threadID)
	if err != nil {
		return nil, fmt.Errorf("tag thread %s: %w", threadID, err)
	}
	if !exists {
		b = append(b, facts.Assert(facts.RelThreadGroup, threadID, groupID))
	}

	b = append(b, facts.Assert(facts.RelThreadTag, threadID, tag))

	// Broadcast to the tag's owning group when recorded, otherwise the
	// group the caller is tagging on behalf of.
	bg := groupID
	owners, err := s.Values(facts.RelTagGroup, tag)
	if err != nil {
		return nil, fmt.Errorf("tag thread %s: %w", threadID, err)
	}
	if len(owners) > 0 {
		bg = owners[0]
	}
	members, err := s.Values(facts.RelGroupUser, bg)
	if err != nil {
		return nil, fmt.Errorf("tag thread %s: %w", threadID, err)
	}
	for _, user := range members {
		subscribed, err := s.Holds(facts.RelSubscribedThread, user, threadID)
		if err != nil {
			return nil, fmt.Errorf("tag thread %s: %w", threadID, err)
		}
		if subscribed {
			continue
		}
		b = append(b,
			facts.Assert(facts.RelSubscribedThread, user, threadID),
			facts.Assert(facts.RelOpenThread, user, threadID),
		)
	}
	return b, nil
}

// BumpLastOpen advances the open-state timestamp for (user, thread).
// Because re-asserting a held fact is deduplicated and leaves no new
// history, the touch is a hide commit followed by a show commit, as two
// separate transactions. Returns false without writing when the thread
// is not currently open for the user.
//
// The hide/show pair for one user+thread must not interleave with
// another writer's open-state change for the same pair, so the pair is
// guarded by a keyed mutex.
func BumpLastOpen(userID, threadID string) (bool, error) {
	l := bumpLocks.get(userID + "\x00" + threadID)
	l.Lock()
	defer l.Unlock()

	open, err := facts.Holds(facts.RelOpenThread, userID, threadID)
	if err != nil {
		return false, fmt.Errorf("bump %s/%s: %w", userID, threadID, err)
	}
	if !open {
		return false, nil
	}
	if _, _, err := facts.Apply(HideThread(userID, threadID)); err != nil {
		return false, fmt.Errorf("bump %s/%s hide: %w", userID, threadID, err)
	}
	if _, _, err := facts.Apply(ShowThread(userID, threadID)); err != nil {
		return false, fmt.Errorf("bump %s/%s show: %w", userID, threadID, err)
	}
	return true, nil
}
