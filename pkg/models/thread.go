package models

// Thread is the aggregate view of a thread, rebuilt from facts on every
// read. Threads come into existence with their first fact; there is no
// separate create step and no metadata record.
type Thread struct {
	ID string `json:"id"`
	// Group is the owning group id; empty for threads that exist only
	// through tag or message facts that never set one.
	Group string `json:"group,omitempty"`
	// Tags currently attached to this thread.
	Tags []string `json:"tags,omitempty"`
	// Mentioned lists user ids explicitly mentioned in the thread.
	Mentioned []string `json:"mentioned,omitempty"`
	// Messages sorted ascending by creation time (ns).
	Messages []Message `json:"messages,omitempty"`
	// LastOpenAt is a per-viewer annotation (ns); 0 means never.
	LastOpenAt int64 `json:"last_open_at,omitempty"`
}

// NewestMessageTS returns the creation time of the newest message, or 0
// when the thread has none.
func (t Thread) NewestMessageTS() int64 {
	if len(t.Messages) == 0 {
		return 0
	}
	return t.Messages[len(t.Messages)-1].TS
}
