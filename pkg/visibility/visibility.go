// Package visibility decides what a user may see. The rules are a
// disjunction: any one of them grants access, and nothing revokes it.
package visibility

import (
	"loomdb/pkg/facts"
	"loomdb/pkg/threads"
)

// CanSee reports whether the user may view the thread.
//
// A thread with no facts at all is visible to everyone; it is about to
// be created and there is nothing to protect yet. Otherwise the user
// needs a subscription, a mention, or membership in the owning group of
// any tag on the thread.
func CanSee(s *facts.Snapshot, userID, threadID string) (bool, error) {
	exists, err := threads.Exists(s, threadID)
	if err != nil {
		return false, err
	}
	if !exists {
		return true, nil
	}
	sub, err := s.Holds(facts.RelSubscribedThread, userID, threadID)
	if err != nil {
		return false, err
	}
	if sub {
		return true, nil
	}
	mentioned, err := s.Holds(facts.RelThreadMentioned, threadID, userID)
	if err != nil {
		return false, err
	}
	if mentioned {
		return true, nil
	}
	tags, err := s.Values(facts.RelThreadTag, threadID)
	if err != nil {
		return false, err
	}
	for _, tag := range tags {
		ok, err := canSeeTag(s, userID, tag)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// HasTags reports whether the thread carries any tag.
func HasTags(s *facts.Snapshot, threadID string) (bool, error) {
	return s.HasValue(facts.RelThreadTag, threadID)
}

// canSeeTag reports whether the user is a member of the tag's owning
// group. Tags with no recorded owner are visible to no one.
func canSeeTag(s *facts.Snapshot, userID, tag string) (bool, error) {
	groups, err := s.Values(facts.RelTagGroup, tag)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		member, err := s.Holds(facts.RelGroupUser, g, userID)
		if err != nil {
			return false, err
		}
		if member {
			return true, nil
		}
	}
	return false, nil
}

// VisibleTags filters the thread's tags down to those the user is
// authorized to see. Used when annotating inbox views so users never
// learn tag names from groups they are not in.
func VisibleTags(s *facts.Snapshot, userID, threadID string) ([]string, error) {
	tags, err := s.Values(facts.RelThreadTag, threadID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, tag := range tags {
		ok, err := canSeeTag(s, userID, tag)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, tag)
		}
	}
	return out, nil
}
