// Package threads rebuilds thread aggregates from the fact store. There
// is no cached projection: every read folds the relevant facts out of a
// snapshot, so aggregates are always consistent with the snapshot they
// were pulled from.
package threads

import (
	"fmt"
	"sort"
	"strconv"

	"loomdb/pkg/facts"
	"loomdb/pkg/models"
)

// Exists reports whether any fact references the thread. Threads come
// into existence with their first fact; an id nothing references yet is
// a nonexistent thread.
func Exists(s *facts.Snapshot, threadID string) (bool, error) {
	type probe func() (bool, error)
	probes := []probe{
		func() (bool, error) { return s.HasValue(facts.RelThreadGroup, threadID) },
		func() (bool, error) { return s.HasValue(facts.RelThreadTag, threadID) },
		func() (bool, error) { return s.HasValue(facts.RelThreadMentioned, threadID) },
		func() (bool, error) { return s.HasEntity(facts.RelMessageThread, threadID) },
		func() (bool, error) { return s.HasEntity(facts.RelOpenThread, threadID) },
		func() (bool, error) { return s.HasEntity(facts.RelSubscribedThread, threadID) },
	}
	for _, p := range probes {
		ok, err := p()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// GroupID returns the thread's owning group, or "" when none is set.
func GroupID(s *facts.Snapshot, threadID string) (string, error) {
	vs, err := s.Values(facts.RelThreadGroup, threadID)
	if err != nil {
		return "", err
	}
	return first(vs), nil
}

// Messages returns the thread's messages sorted ascending by creation
// time, ties broken by message id.
func Messages(s *facts.Snapshot, threadID string) ([]models.Message, error) {
	ids, err := s.Entities(facts.RelMessageThread, threadID)
	if err != nil {
		return nil, err
	}
	msgs := make([]models.Message, 0, len(ids))
	for _, id := range ids {
		m, err := message(s, id, threadID)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].TS != msgs[j].TS {
			return msgs[i].TS < msgs[j].TS
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs, nil
}

func message(s *facts.Snapshot, msgID, threadID string) (models.Message, error) {
	m := models.Message{ID: msgID, Thread: threadID}
	author, err := s.Values(facts.RelMessageUser, msgID)
	if err != nil {
		return m, err
	}
	m.Author = first(author)
	created, err := s.Values(facts.RelMessageCreatedAt, msgID)
	if err != nil {
		return m, err
	}
	if c := first(created); c != "" {
		ts, err := strconv.ParseInt(c, 10, 64)
		if err != nil {
			return m, fmt.Errorf("message %s: bad created-at %q: %w", msgID, c, err)
		}
		m.TS = ts
	}
	body, err := s.Values(facts.RelMessageContent, msgID)
	if err != nil {
		return m, err
	}
	m.Body = first(body)
	return m, nil
}

// ByID pulls the full aggregate. The second return is false when the
// thread does not exist.
func ByID(s *facts.Snapshot, threadID string) (models.Thread, bool, error) {
	ok, err := Exists(s, threadID)
	if err != nil || !ok {
		return models.Thread{}, false, err
	}
	t := models.Thread{ID: threadID}
	if t.Group, err = GroupID(s, threadID); err != nil {
		return t, false, err
	}
	if t.Tags, err = s.Values(facts.RelThreadTag, threadID); err != nil {
		return t, false, err
	}
	if t.Mentioned, err = s.Values(facts.RelThreadMentioned, threadID); err != nil {
		return t, false, err
	}
	if t.Messages, err = Messages(s, threadID); err != nil {
		return t, false, err
	}
	return t, true, nil
}

// ByIDs pulls aggregates for the given ids; ids that do not exist are
// silently omitted.
func ByIDs(s *facts.Snapshot, ids []string) ([]models.Thread, error) {
	out := make([]models.Thread, 0, len(ids))
	for _, id := range ids {
		t, ok, err := ByID(s, id)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, t)
		}
	}
	return out, nil
}

// NewestMessageTS returns the creation time (ns) of the thread's newest
// message, or 0 when it has none.
func NewestMessageTS(s *facts.Snapshot, threadID string) (int64, error) {
	ids, err := s.Entities(facts.RelMessageThread, threadID)
	if err != nil {
		return 0, err
	}
	var newest int64
	for _, id := range ids {
		created, err := s.Values(facts.RelMessageCreatedAt, id)
		if err != nil {
			return 0, err
		}
		if c := first(created); c != "" {
			ts, err := strconv.ParseInt(c, 10, 64)
			if err != nil {
				return 0, fmt.Errorf("message %s: bad created-at %q: %w", id, c, err)
			}
			if ts > newest {
				newest = ts
			}
		}
	}
	return newest, nil
}

// Subscribers returns the users currently subscribed to the thread.
func Subscribers(s *facts.Snapshot, threadID string) ([]string, error) {
	return s.Entities(facts.RelSubscribedThread, threadID)
}

// InGroup returns the ids of all threads owned by the group.
func InGroup(s *facts.Snapshot, groupID string) ([]string, error) {
	return s.Entities(facts.RelThreadGroup, groupID)
}

func first(vs []string) string {
	if len(vs) == 0 {
		return ""
	}
	return vs[0]
}
