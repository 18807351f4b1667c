package facts

import (
	"testing"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := Open(t.TempDir()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close() })
}

func TestApplyAssertAndReadback(t *testing.T) {
	openTestStore(t)

	tx, applied, err := Apply(Batch{Assert("thread-tag", "th1", "urgent")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected applied=1; got %d", applied)
	}
	if tx == 0 {
		t.Fatalf("expected nonzero tx")
	}

	held, err := Holds("thread-tag", "th1", "urgent")
	if err != nil {
		t.Fatalf("Holds: %v", err)
	}
	if !held {
		t.Fatalf("expected fact to hold")
	}
	vs, err := Values("thread-tag", "th1")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(vs) != 1 || vs[0] != "urgent" {
		t.Fatalf("expected [urgent]; got %v", vs)
	}
	es, err := Entities("thread-tag", "urgent")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(es) != 1 || es[0] != "th1" {
		t.Fatalf("expected [th1]; got %v", es)
	}
}

func TestApplyDedupWritesNothing(t *testing.T) {
	openTestStore(t)

	if _, applied, err := Apply(Batch{Assert("thread-tag", "th1", "urgent")}); err != nil || applied != 1 {
		t.Fatalf("first assert: applied=%d err=%v", applied, err)
	}
	// re-asserting a held fact must not write, not even history
	if _, applied, err := Apply(Batch{Assert("thread-tag", "th1", "urgent")}); err != nil || applied != 0 {
		t.Fatalf("second assert: applied=%d err=%v", applied, err)
	}
	// retracting an absent fact likewise
	if _, applied, err := Apply(Batch{Retract("thread-tag", "th1", "other")}); err != nil || applied != 0 {
		t.Fatalf("retract absent: applied=%d err=%v", applied, err)
	}

	hist, err := History("thread-tag", "th1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 1 {
		t.Fatalf("expected 1 history entry; got %d", len(hist))
	}
}

func TestApplyDedupWithinBatch(t *testing.T) {
	openTestStore(t)

	_, applied, err := Apply(Batch{
		Assert("subscribed-thread", "u1", "th1"),
		Assert("subscribed-thread", "u1", "th1"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied != 1 {
		t.Fatalf("expected batch-internal dedup to apply 1; got %d", applied)
	}
	// retract then assert within one batch both apply
	_, applied, err = Apply(Batch{
		Retract("subscribed-thread", "u1", "th1"),
		Assert("subscribed-thread", "u1", "th1"),
	})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if applied != 2 {
		t.Fatalf("expected retract+assert to apply 2; got %d", applied)
	}
}

func TestTxTimesStrictlyIncrease(t *testing.T) {
	openTestStore(t)

	var prev int64
	for i := 0; i < 50; i++ {
		tx, _, err := Apply(Batch{Assert("open-thread", "u1", "th1"), Retract("open-thread", "u1", "th1")})
		if err != nil {
			t.Fatalf("Apply %d: %v", i, err)
		}
		if tx <= prev {
			t.Fatalf("tx %d not after %d", tx, prev)
		}
		prev = tx
	}
}

func TestHistoryAndAsOf(t *testing.T) {
	openTestStore(t)

	tx1, _, err := Apply(Batch{Assert("thread-tag", "th1", "a")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	tx2, _, err := Apply(Batch{Retract("thread-tag", "th1", "a"), Assert("thread-tag", "th1", "b")})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}

	hist, err := History("thread-tag", "th1")
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(hist) != 3 {
		t.Fatalf("expected 3 entries; got %d", len(hist))
	}
	if hist[0].Op != OpAssert || hist[0].Value != "a" || hist[0].TS != tx1 {
		t.Fatalf("unexpected first entry: %+v", hist[0])
	}

	at1, err := AsOf("thread-tag", "th1", tx1)
	if err != nil {
		t.Fatalf("AsOf: %v", err)
	}
	if len(at1) != 1 || at1[0] != "a" {
		t.Fatalf("as of tx1 expected [a]; got %v", at1)
	}
	at2, err := AsOf("thread-tag", "th1", tx2)
	if err != nil {
		t.Fatalf("AsOf: %v", err)
	}
	if len(at2) != 1 || at2[0] != "b" {
		t.Fatalf("as of tx2 expected [b]; got %v", at2)
	}
}

func TestSnapshotIsolation(t *testing.T) {
	openTestStore(t)

	if _, _, err := Apply(Batch{Assert("thread-group", "th1", "g1")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	s, err := Snap()
	if err != nil {
		t.Fatalf("Snap: %v", err)
	}
	defer s.Close()

	if _, _, err := Apply(Batch{Assert("thread-group", "th2", "g1")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}

	es, err := s.Entities("thread-group", "g1")
	if err != nil {
		t.Fatalf("snapshot Entities: %v", err)
	}
	if len(es) != 1 || es[0] != "th1" {
		t.Fatalf("snapshot should see only th1; got %v", es)
	}
	cur, err := Entities("thread-group", "g1")
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(cur) != 2 {
		t.Fatalf("live store should see both threads; got %v", cur)
	}
}

func TestValuesWithSeparatorBytes(t *testing.T) {
	openTestStore(t)

	body := "subject: hello\nworld & more %"
	if _, _, err := Apply(Batch{Assert("message-content", "m1", body)}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	vs, err := Values("message-content", "m1")
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(vs) != 1 || vs[0] != body {
		t.Fatalf("body did not round-trip: %q", vs)
	}
	es, err := Entities("message-content", body)
	if err != nil {
		t.Fatalf("Entities: %v", err)
	}
	if len(es) != 1 || es[0] != "m1" {
		t.Fatalf("inverse lookup failed: %v", es)
	}
}

func TestHasValueHasEntity(t *testing.T) {
	openTestStore(t)

	if _, _, err := Apply(Batch{Assert("message-thread", "m1", "th1")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if ok, err := HasValue("message-thread", "m1"); err != nil || !ok {
		t.Fatalf("HasValue m1: ok=%v err=%v", ok, err)
	}
	if ok, err := HasEntity("message-thread", "th1"); err != nil || !ok {
		t.Fatalf("HasEntity th1: ok=%v err=%v", ok, err)
	}
	if ok, err := HasValue("message-thread", "m2"); err != nil || ok {
		t.Fatalf("HasValue m2 should be false: ok=%v err=%v", ok, err)
	}
}

func TestCountCurrent(t *testing.T) {
	openTestStore(t)

	if _, _, err := Apply(Batch{
		Assert("open-thread", "u1", "th1"),
		Assert("open-thread", "u1", "th2"),
		Assert("open-thread", "u2", "th1"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, _, err := Apply(Batch{Retract("open-thread", "u1", "th2")}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	n, err := CountCurrent("open-thread")
	if err != nil {
		t.Fatalf("CountCurrent: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 current facts; got %d", n)
	}
}

func TestNotOpened(t *testing.T) {
	// no Open; the global store must reject reads and writes cleanly
	if err := Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, _, err := Apply(Batch{Assert("thread-tag", "th1", "a")}); err != ErrNotOpened {
		t.Fatalf("expected ErrNotOpened; got %v", err)
	}
	if _, err := Holds("thread-tag", "th1", "a"); err != ErrNotOpened {
		t.Fatalf("expected ErrNotOpened; got %v", err)
	}
}
