// Package facts implements an append-only fact store on pebble.
//
// A fact is an (attr, entity, value) triple. Facts are asserted and
// retracted in atomic batches; the store keeps the current state, an
// inverse index for value-to-entity lookups, and the full assert/retract
// history per (attr, entity) tagged with transaction times.
package facts

import "errors"

// Mutation ops.
const (
	OpAssert  = "assert"
	OpRetract = "retract"
)

// Relation attrs persisted by the engine. Entity/value orientation:
//
//	open-thread        user -> thread     thread is open in the user's inbox
//	subscribed-thread  user -> thread     user receives updates for thread
//	thread-tag         thread -> tag
//	thread-group       thread -> group
//	thread-mentioned   thread -> user
//	message-thread     message -> thread
//	message-user       message -> user    author
//	message-created-at message -> ns      decimal unix nanos
//	message-content    message -> body    opaque to the engine
//	group-user         group -> user      membership, produced by admin tooling
//	tag-group          tag -> group       owning group, produced by admin tooling
const (
	RelOpenThread       = "open-thread"
	RelSubscribedThread = "subscribed-thread"
	RelThreadTag        = "thread-tag"
	RelThreadGroup      = "thread-group"
	RelThreadMentioned  = "thread-mentioned"
	RelMessageThread    = "message-thread"
	RelMessageUser      = "message-user"
	RelMessageCreatedAt = "message-created-at"
	RelMessageContent   = "message-content"
	RelGroupUser        = "group-user"
	RelTagGroup         = "tag-group"
)

var (
	ErrNotOpened = errors.New("facts: store not opened; call facts.Open first")
)

// Fact is an attribute triple.
type Fact struct {
	Attr   string `json:"attr"`
	Entity string `json:"entity"`
	Value  string `json:"value"`
}

// Mutation is a single assert or retract of a fact.
type Mutation struct {
	Op string `json:"op"`
	Fact
}

// Batch is an ordered set of mutations applied in one transaction.
type Batch []Mutation

// Assert builds an assert mutation.
func Assert(attr, entity, value string) Mutation {
	return Mutation{Op: OpAssert, Fact: Fact{Attr: attr, Entity: entity, Value: value}}
}

// Retract builds a retract mutation.
func Retract(attr, entity, value string) Mutation {
	return Mutation{Op: OpRetract, Fact: Fact{Attr: attr, Entity: entity, Value: value}}
}

// Entry is one history record for an (attr, entity) pair.
type Entry struct {
	Value string `json:"v"`
	Op    string `json:"op"`
	// TS is the transaction time (ns) assigned when the mutation applied.
	TS int64 `json:"ts"`
}
