package visibility

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

func snap(t *testing.T) *facts.Snapshot {
	t.Helper()
	s, err := facts.Snap()
	if err != nil {
		t.Fatalf("facts.Snap: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func apply(t *testing.T, b facts.Batch) {
	t.Helper()
	if _, _, err := facts.Apply(b); err != nil {
		t.Fatalf("facts.Apply: %v", err)
	}
}

func canSee(t *testing.T, s *facts.Snapshot, user, thread string) bool {
	t.Helper()
	ok, err := CanSee(s, user, thread)
	if err != nil {
		t.Fatalf("CanSee(%s, %s): %v", user, thread, err)
	}
	return ok
}

func TestNonexistentThreadVisibleToEveryone(t *testing.T) {
	openTestStore(t)
	s := snap(t)
	if !canSee(t, s, "anyone", "brand-new") {
		t.Fatalf("thread with no facts should be visible")
	}
}

func TestSubscriptionGrantsAccess(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadGroup, "th1", "g1"),
		facts.Assert(facts.RelSubscribedThread, "alice", "th1"),
	})
	s := snap(t)
	if !canSee(t, s, "alice", "th1") {
		t.Fatalf("subscriber should see the thread")
	}
	if canSee(t, s, "bob", "th1") {
		t.Fatalf("outsider should not see the thread")
	}
}

func TestMentionGrantsAccess(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadGroup, "th1", "g1"),
		facts.Assert(facts.RelThreadMentioned, "th1", "carol"),
	})
	s := snap(t)
	if !canSee(t, s, "carol", "th1") {
		t.Fatalf("mentioned user should see the thread")
	}
	if canSee(t, s, "alice", "th1") {
		t.Fatalf("unmentioned user should not see the thread")
	}
}

func TestTagGroupMembershipGrantsAccess(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadGroup, "th1", "g1"),
		facts.Assert(facts.RelThreadTag, "th1", "ops"),
		facts.Assert(facts.RelTagGroup, "ops", "g-ops"),
		facts.Assert(facts.RelGroupUser, "g-ops", "dave"),
	})
	s := snap(t)
	if !canSee(t, s, "dave", "th1") {
		t.Fatalf("member of the tag's owning group should see the thread")
	}
	if canSee(t, s, "eve", "th1") {
		t.Fatalf("non-member should not see the thread")
	}
}

func TestTagWithoutOwnerGrantsNothing(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{facts.Assert(facts.RelThreadTag, "th1", "orphan")})
	s := snap(t)
	if canSee(t, s, "alice", "th1") {
		t.Fatalf("ownerless tag must not grant access")
	}
}

func TestVisibleTagsFilters(t *testing.T) {
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadTag, "th1", "public-ops"),
		facts.Assert(facts.RelThreadTag, "th1", "secret-hr"),
		facts.Assert(facts.RelTagGroup, "public-ops", "g-ops"),
		facts.Assert(facts.RelTagGroup, "secret-hr", "g-hr"),
		facts.Assert(facts.RelGroupUser, "g-ops", "alice"),
	})
	s := snap(t)
	tags, err := VisibleTags(s, "alice", "th1")
	if err != nil {
		t.Fatalf("VisibleTags: %v", err)
	}
	if len(tags) != 1 || tags[0] != "public-ops" {
		t.Fatalf("expected [public-ops]; got %v", tags)
	}
	none, err := VisibleTags(s, "mallory", "th1")
	if err != nil {
		t.Fatalf("VisibleTags: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("outsider should see no tags; got %v", none)
	}
}

func TestAccessOnlyWidens(t *testing.T) {
	// granting more facts never revokes access already held
	openTestStore(t)
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadGroup, "th1", "g1"),
		facts.Assert(facts.RelSubscribedThread, "alice", "th1"),
	})
	s1 := snap(t)
	if !canSee(t, s1, "alice", "th1") {
		t.Fatalf("precondition failed")
	}
	apply(t, facts.Batch{
		facts.Assert(facts.RelThreadTag, "th1", "extra"),
		facts.Assert(facts.RelThreadMentioned, "th1", "bob"),
	})
	s2 := snap(t)
	if !canSee(t, s2, "alice", "th1") {
		t.Fatalf("adding facts must not revoke existing access")
	}
	if !canSee(t, s2, "bob", "th1") {
		t.Fatalf("new mention should grant access")
	}
}
