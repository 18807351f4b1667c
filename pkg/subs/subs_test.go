package subs

import (
	"testing"

	"loomdb/pkg/facts"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := facts.Open(t.TempDir()); err != nil {
		t.Fatalf("facts.Open: %v", err)
	}
	t.Cleanup(func() { _ = facts.Close() })
}

func apply(t *testing.T, b facts.Batch) (int64, int) {
	t.Helper()
	tx, applied, err := facts.Apply(b)
	if err != nil {
		t.Fatalf("facts.Apply: %v", err)
	}
	return tx, applied
}

func tagThread(t *testing.T, groupID, threadID, tag string) (int64, int) {
	t.Helper()
	s, err := facts.Snap()
	if err != nil {
		t.Fatalf("facts.Snap: %v", err)
	}
	b, err := TagThread(s, groupID, threadID, tag)
	s.Close()
	if err != nil {
		t.Fatalf("TagThread: %v", err)
	}
	return apply(t, b)
}

func mustHold(t *testing.T, attr, entity, value string) {
	t.Helper()
	ok, err := facts.Holds(attr, entity, value)
	if err != nil {
		t.Fatalf("Holds(%s, %s, %s): %v", attr, entity, value, err)
	}
	if !ok {
		t.Fatalf("expected (%s, %s, %s) to hold", attr, entity, value)
	}
}

func mustNotHold(t *testing.T, attr, entity, value string) {
	t.Helper()
	ok, err := facts.Holds(attr, entity, value)
	if err != nil {
		t.Fatalf("Holds(%s, %s, %s): %v", attr, entity, value, err)
	}
	if ok {
		t.Fatalf("expected (%s, %s, %s) to be absent", attr, entity, value)
	}
}

func TestTagNewThreadCreatesAndFansOut(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelGroupUser, "g1", "alice"),
		facts.Assert(facts.RelGroupUser, "g1", "bob"),
	})

	_, applied := tagThread(t, "g1", "th1", "urgent")
	if applied == 0 {
		t.Fatalf("expected writes on first tagging")
	}

	mustHold(t, facts.RelThreadGroup, "th1", "g1")
	mustHold(t, facts.RelThreadTag, "th1", "urgent")
	for _, u := range []string{"alice", "bob"} {
		mustHold(t, facts.RelSubscribedThread, u, "th1")
		mustHold(t, facts.RelOpenThread, u, "th1")
	}
}

func TestTagThreadIdempotent(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{facts.Assert(facts.RelGroupUser, "g1", "alice")})

	tagThread(t, "g1", "th1", "urgent")
	_, applied := tagThread(t, "g1", "th1", "urgent")
	if applied != 0 {
		t.Fatalf("repeat tagging should apply nothing; applied=%d", applied)
	}
	hist, err := facts.History(facts.RelThreadTag, "th1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("repeat tagging must not grow history; got %d entries", len(hist))
	}
}

func TestTagFanOutSkipsSubscribedMembers(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelGroupUser, "g1", "alice"),
		facts.Assert(facts.RelGroupUser, "g1", "bob"),
	})
	// alice is already subscribed but closed the thread
	apply(t, Subscribe("alice", "th1"))
	apply(t, HideThread("alice", "th1"))

	tagThread(t, "g1", "th1", "urgent")

	// fan-out must not reopen alice's thread
	mustNotHold(t, facts.RelOpenThread, "alice", "th1")
	mustHold(t, facts.RelOpenThread, "bob", "th1")
}

func TestTagBroadcastUsesTagOwningGroup(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelTagGroup, "ops", "g-ops"),
		facts.Assert(facts.RelGroupUser, "g-ops", "carol"),
		facts.Assert(facts.RelGroupUser, "g-caller", "dave"),
	})

	tagThread(t, "g-caller", "th1", "ops")

	// the thread still belongs to the caller's group, but fan-out goes
	// to the tag's owner
	mustHold(t, facts.RelThreadGroup, "th1", "g-caller")
	mustHold(t, facts.RelSubscribedThread, "carol", "th1")
	mustNotHold(t, facts.RelSubscribedThread, "dave", "th1")
}

func TestTagExistingThreadKeepsGroup(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{facts.Assert(facts.RelThreadGroup, "th1", "g1")})

	tagThread(t, "g2", "th1", "urgent")

	mustHold(t, facts.RelThreadGroup, "th1", "g1")
	mustNotHold(t, facts.RelThreadGroup, "th1", "g2")
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	openTestStore(t)

	apply(t, Subscribe("alice", "th1"))
	mustHold(t, facts.RelSubscribedThread, "alice", "th1")
	mustHold(t, facts.RelOpenThread, "alice", "th1")

	apply(t, Unsubscribe("alice", "th1"))
	mustNotHold(t, facts.RelSubscribedThread, "alice", "th1")
	mustNotHold(t, facts.RelOpenThread, "alice", "th1")
}

func TestBumpLastOpenWritesRetractThenAssert(t *testing.T) {
	openTestStore(t)
	apply(t, Subscribe("alice", "th1"))

	bumped, err := BumpLastOpen("alice", "th1")
	if err != nil {
		t.Fatalf("BumpLastOpen: %v", err)
	}
	if !bumped {
		t.Fatalf("expected bump on open thread")
	}

	mustHold(t, facts.RelOpenThread, "alice", "th1")
	hist, err := facts.History(facts.RelOpenThread, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	// subscribe assert, bump retract, bump assert
	if len(hist) != 3 {
		t.Fatalf("expected 3 history entries; got %d", len(hist))
	}
	if hist[1].Op != facts.OpRetract || hist[2].Op != facts.OpAssert {
		t.Fatalf("expected retract then assert; got %s then %s", hist[1].Op, hist[2].Op)
	}
	if hist[2].TS <= hist[1].TS {
		t.Fatalf("show tx %d must be after hide tx %d", hist[2].TS, hist[1].TS)
	}
}

func TestBumpLastOpenNoOpWhenNotOpen(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{facts.Assert(facts.RelSubscribedThread, "alice", "th1")})

	bumped, err := BumpLastOpen("alice", "th1")
	if err != nil {
		t.Fatalf("BumpLastOpen: %v", err)
	}
	if bumped {
		t.Fatalf("bump of a closed thread must be a no-op")
	}
	hist, err := facts.History(facts.RelOpenThread, "alice")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 0 {
		t.Fatalf("no-op bump must not write history; got %d entries", len(hist))
	}
}
