// Package recency computes per-user last-open watermarks and the
// recency-ranked thread views built on them. Everything here is a pure
// fold over a snapshot; no state, no locks.
package recency

import (
	"sort"
	"time"

	"loomdb/pkg/facts"
	"loomdb/pkg/models"
	"loomdb/pkg/threads"
	"loomdb/pkg/visibility"
)

const (
	DefaultWindowDays = 7
	DefaultLimit      = 10
)

// LastOpenAt returns the user's watermark for the thread (ns): the max
// over every retraction time of open-thread(user, thread) in history and
// every creation time of a message the user authored in the thread.
// 0 means never.
func LastOpenAt(s *facts.Snapshot, threadID, userID string) (int64, error) {
	var last int64
	hist, err := s.History(facts.RelOpenThread, userID)
	if err != nil {
		return 0, err
	}
	for _, e := range hist {
		if e.Value == threadID && e.Op == facts.OpRetract && e.TS > last {
			last = e.TS
		}
	}
	msgs, err := threads.Messages(s, threadID)
	if err != nil {
		return 0, err
	}
	for _, m := range msgs {
		if m.Author == userID && m.TS > last {
			last = m.TS
		}
	}
	return last, nil
}

// OpenThreads returns the user's open threads, each annotated with its
// LastOpenAt and with tags filtered to those the user may see. Sorted
// descending by watermark, ties broken by thread id.
func OpenThreads(s *facts.Snapshot, userID string) ([]models.Thread, error) {
	ids, err := s.Values(facts.RelOpenThread, userID)
	if err != nil {
		return nil, err
	}
	out := make([]models.Thread, 0, len(ids))
	for _, id := range ids {
		t, ok, err := threads.ByID(s, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		if t.Tags, err = visibility.VisibleTags(s, userID, id); err != nil {
			return nil, err
		}
		if t.LastOpenAt, err = LastOpenAt(s, id, userID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].LastOpenAt != out[j].LastOpenAt {
			return out[i].LastOpenAt > out[j].LastOpenAt
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Recent returns the group's threads whose newest message falls inside
// the window ending at now, filtered to those the user can see, sorted
// descending by newest message time (ties broken by ascending thread
// id) and truncated to limit. windowDays and limit fall back to the
// defaults when non-positive.
func Recent(s *facts.Snapshot, userID, groupID string, windowDays, limit int, now time.Time) ([]models.Thread, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	cutoff := now.Add(-time.Duration(windowDays) * 24 * time.Hour).UTC().UnixNano()

	ids, err := threads.InGroup(s, groupID)
	if err != nil {
		return nil, err
	}
	type ranked struct {
		t      models.Thread
		newest int64
	}
	var rs []ranked
	for _, id := range ids {
		newest, err := threads.NewestMessageTS(s, id)
		if err != nil {
			return nil, err
		}
		if newest == 0 || newest < cutoff {
			continue
		}
		ok, err := visibility.CanSee(s, userID, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		t, found, err := threads.ByID(s, id)
		if err != nil {
			return nil, err
		}
		if !found {
			continue
		}
		if t.Tags, err = visibility.VisibleTags(s, userID, id); err != nil {
			return nil, err
		}
		if t.LastOpenAt, err = LastOpenAt(s, id, userID); err != nil {
			return nil, err
		}
		rs = append(rs, ranked{t: t, newest: newest})
	}
	sort.Slice(rs, func(i, j int) bool {
		if rs[i].newest != rs[j].newest {
			return rs[i].newest > rs[j].newest
		}
		return rs[i].t.ID < rs[j].t.ID
	})
	if len(rs) > limit {
		rs = rs[:limit]
	}
	out := make([]models.Thread, 0, len(rs))
	for _, r := range rs {
		out = append(out, r.t)
	}
	return out, nil
}
