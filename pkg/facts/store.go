package facts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"loomdb/pkg/logger"
)

var db *pebble.DB
var dbPath string

// mu serializes writers. Readers go through snapshots or point reads and
// never take this lock.
var mu sync.Mutex

// lastTx is the last assigned transaction time; Apply bumps past it so
// tx times stay strictly monotonic even if the clock stalls.
var lastTx int64

// seq disambiguates history keys for mutations sharing one tx time.
var seq uint64

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_fact_store", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("fact_store_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	ready.Set(1)
	logger.Info("fact_store_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	ready.Set(0)
	logger.Info("fact_store_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

// Key layout. Component values are query-escaped so bodies and ids with
// ':' cannot break the separator scheme; the escaped form is only used
// for ordering and uniqueness, the raw value is read back from the
// stored record.
//
//	eav:<attr>:<entity>:<value>          current state, one key per held fact
//	vae:<attr>:<value>:<entity>          inverse index
//	log:<attr>:<entity>:<tx %020d>-<seq %06d>  full history
func curKey(attr, entity, value string) []byte {
	return []byte(fmt.Sprintf("eav:%s:%s:%s", attr, esc(entity), esc(value)))
}

func invKey(attr, value, entity string) []byte {
	return []byte(fmt.Sprintf("vae:%s:%s:%s", attr, esc(value), esc(entity)))
}

func logKey(attr, entity string, tx int64, s uint64) []byte {
	return []byte(fmt.Sprintf("log:%s:%s:%020d-%06d", attr, esc(entity), tx, s))
}

func curPrefix(attr, entity string) []byte {
	return []byte(fmt.Sprintf("eav:%s:%s:", attr, esc(entity)))
}

func invPrefix(attr, value string) []byte {
	return []byte(fmt.Sprintf("vae:%s:%s:", attr, esc(value)))
}

func logPrefix(attr, entity string) []byte {
	return []byte(fmt.Sprintf("log:%s:%s:", attr, esc(entity)))
}

func relPrefix(attr string) []byte {
	return []byte(fmt.Sprintf("eav:%s:", attr))
}

func esc(s string) string { return url.QueryEscape(s) }

// curRec is the stored record under eav/vae keys.
type curRec struct {
	Value string `json:"v"`
	TS    int64  `json:"ts"`
}

// Apply applies the batch atomically under one transaction time.
// Asserts of already-held facts and retracts of absent facts are
// deduplicated: they write nothing, not even history. Returns the tx
// time and the number of mutations that actually applied.
func Apply(b Batch) (int64, int, error) {
	if db == nil {
		return 0, 0, ErrNotOpened
	}
	mu.Lock()
	defer mu.Unlock()

	tx := time.Now().UTC().UnixNano()
	if tx <= lastTx {
		tx = lastTx + 1
	}

	wb := db.NewBatch()
	defer wb.Close()

	// pending tracks current-state flips within this batch so a batch
	// asserting the same fact twice still deduplicates the second one.
	pending := make(map[string]bool)
	applied := 0
	for _, m := range b {
		ck := curKey(m.Attr, m.Entity, m.Value)
		held, ok := pending[string(ck)]
		if !ok {
			var err error
			held, err = holds(db, m.Attr, m.Entity, m.Value)
			if err != nil {
				return 0, 0, fmt.Errorf("apply read: %w", err)
			}
		}
		switch m.Op {
		case OpAssert:
			if held {
				mutationsDeduped.Inc()
				continue
			}
		case OpRetract:
			if !held {
				mutationsDeduped.Inc()
				continue
			}
		default:
			return 0, 0, fmt.Errorf("apply: unknown op %q", m.Op)
		}

		rec, err := json.Marshal(curRec{Value: m.Value, TS: tx})
		if err != nil {
			return 0, 0, fmt.Errorf("apply marshal: %w", err)
		}
		ik := invKey(m.Attr, m.Value, m.Entity)
		if m.Op == OpAssert {
			if err := wb.Set(ck, rec, nil); err != nil {
				return 0, 0, err
			}
			if err := wb.Set(ik, rec, nil); err != nil {
				return 0, 0, err
			}
		} else {
			if err := wb.Delete(ck, nil); err != nil {
				return 0, 0, err
			}
			if err := wb.Delete(ik, nil); err != nil {
				return 0, 0, err
			}
		}
		seq++
		ent, err := json.Marshal(Entry{Value: m.Value, Op: m.Op, TS: tx})
		if err != nil {
			return 0, 0, fmt.Errorf("apply marshal: %w", err)
		}
		if err := wb.Set(logKey(m.Attr, m.Entity, tx, seq), ent, nil); err != nil {
			return 0, 0, err
		}
		pending[string(ck)] = m.Op == OpAssert
		applied++
	}

	if applied > 0 {
		if err := db.Apply(wb, pebble.Sync); err != nil {
			logger.Error("fact_apply_failed", "mutations", applied, "error", err)
			return 0, 0, err
		}
	}
	lastTx = tx
	txApplied.Inc()
	mutationsApplied.Add(float64(applied))
	logger.Debug("facts_applied", "tx", tx, "applied", applied, "deduped", len(b)-applied)
	return tx, applied, nil
}

// holds reports whether the fact currently holds, reading from r.
func holds(r pebble.Reader, attr, entity, value string) (bool, error) {
	_, closer, err := r.Get(curKey(attr, entity, value))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	_ = closer.Close()
	return true, nil
}

func values(r pebble.Reader, attr, entity string) ([]string, error) {
	return scanRecs(r, curPrefix(attr, entity))
}

func entities(r pebble.Reader, attr, value string) ([]string, error) {
	iter, err := r.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := invPrefix(attr, value)
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		ent, err := url.QueryUnescape(string(iter.Key()[len(prefix):]))
		if err != nil {
			return nil, fmt.Errorf("corrupt inverse key %q: %w", iter.Key(), err)
		}
		out = append(out, ent)
	}
	return out, iter.Error()
}

func scanRecs(r pebble.Reader, prefix []byte) ([]string, error) {
	iter, err := r.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var rec curRec
		if err := json.Unmarshal(iter.Value(), &rec); err != nil {
			return nil, fmt.Errorf("corrupt record at %q: %w", iter.Key(), err)
		}
		out = append(out, rec.Value)
	}
	return out, iter.Error()
}

func hasPrefix(r pebble.Reader, prefix []byte) (bool, error) {
	iter, err := r.NewIter(nil)
	if err != nil {
		return false, err
	}
	defer iter.Close()
	iter.SeekGE(prefix)
	return iter.Valid() && bytes.HasPrefix(iter.Key(), prefix), iter.Error()
}

func history(r pebble.Reader, attr, entity string) ([]Entry, error) {
	iter, err := r.NewIter(nil)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	prefix := logPrefix(attr, entity)
	var out []Entry
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var e Entry
		if err := json.Unmarshal(iter.Value(), &e); err != nil {
			return nil, fmt.Errorf("corrupt history at %q: %w", iter.Key(), err)
		}
		out = append(out, e)
	}
	return out, iter.Error()
}

func asOf(r pebble.Reader, attr, entity string, t int64) ([]string, error) {
	hist, err := history(r, attr, entity)
	if err != nil {
		return nil, err
	}
	held := make(map[string]bool)
	var order []string
	for _, e := range hist {
		if e.TS > t {
			break
		}
		if e.Op == OpAssert {
			if !held[e.Value] {
				held[e.Value] = true
				order = append(order, e.Value)
			}
		} else {
			held[e.Value] = false
		}
	}
	var out []string
	for _, v := range order {
		if held[v] {
			out = append(out, v)
		}
	}
	return out, nil
}

func countCurrent(r pebble.Reader, attr string) (int, error) {
	iter, err := r.NewIter(nil)
	if err != nil {
		return 0, err
	}
	defer iter.Close()
	prefix := relPrefix(attr)
	n := 0
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		n++
	}
	return n, iter.Error()
}

// Holds reports whether the fact currently holds.
func Holds(attr, entity, value string) (bool, error) {
	if db == nil {
		return false, ErrNotOpened
	}
	return holds(db, attr, entity, value)
}

// Values returns the values currently asserted for (attr, entity).
func Values(attr, entity string) ([]string, error) {
	if db == nil {
		return nil, ErrNotOpened
	}
	return values(db, attr, entity)
}

// Entities returns the entities for which (attr, entity, value) currently
// holds, via the inverse index.
func Entities(attr, value string) ([]string, error) {
	if db == nil {
		return nil, ErrNotOpened
	}
	return entities(db, attr, value)
}

// HasValue reports whether any value is asserted for (attr, entity).
func HasValue(attr, entity string) (bool, error) {
	if db == nil {
		return false, ErrNotOpened
	}
	return hasPrefix(db, curPrefix(attr, entity))
}

// HasEntity reports whether any entity holds (attr, _, value).
func HasEntity(attr, value string) (bool, error) {
	if db == nil {
		return false, ErrNotOpened
	}
	return hasPrefix(db, invPrefix(attr, value))
}

// History returns the full assert/retract history for (attr, entity) in
// transaction-time order.
func History(attr, entity string) ([]Entry, error) {
	if db == nil {
		return nil, ErrNotOpened
	}
	return history(db, attr, entity)
}

// AsOf folds the history and returns the values held for (attr, entity)
// at transaction time t.
func AsOf(attr, entity string, t int64) ([]string, error) {
	if db == nil {
		return nil, ErrNotOpened
	}
	return asOf(db, attr, entity, t)
}

// CountCurrent counts the facts currently held for a relation.
func CountCurrent(attr string) (int, error) {
	if db == nil {
		return 0, ErrNotOpened
	}
	return countCurrent(db, attr)
}

// CompactLog requests a manual compaction of the history keyspace.
func CompactLog() error {
	if db == nil {
		return ErrNotOpened
	}
	return db.Compact([]byte("log:"), []byte("log;"), false)
}

// DiskUsage returns the on-disk size estimate reported by pebble.
func DiskUsage() uint64 {
	if db == nil {
		return 0
	}
	return db.Metrics().DiskSpaceUsage()
}
