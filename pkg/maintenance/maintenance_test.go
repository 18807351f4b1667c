package maintenance

import (
	"context"
	"testing"

	"loomdb/pkg/config"
	"loomdb/pkg/facts"
	"loomdb/pkg/ingest/queue"
)

func openTestStore(t *testing.T) {
	t.Helper()
	if err := facts.Open(t.TempDir()); err != nil {
		t.Fatalf("facts.Open: %v", err)
	}
	t.Cleanup(func() { _ = facts.Close() })
}

func TestRunOnce(t *testing.T) {
	openTestStore(t)
	if _, _, err := facts.Apply(facts.Batch{
		facts.Assert(facts.RelOpenThread, "alice", "th1"),
		facts.Assert(facts.RelThreadGroup, "th1", "g1"),
	}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	q := queue.New(4)
	if err := RunOnce(context.Background(), q); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	// facts must survive a maintenance pass untouched
	ok, err := facts.Holds(facts.RelOpenThread, "alice", "th1")
	if err != nil || !ok {
		t.Fatalf("fact lost after maintenance: ok=%v err=%v", ok, err)
	}
}

func TestStartDisabled(t *testing.T) {
	stop, err := Start(context.Background(), config.MaintenanceConfig{Enabled: false}, queue.New(1))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}

func TestStartRejectsBadCron(t *testing.T) {
	_, err := Start(context.Background(), config.MaintenanceConfig{Enabled: true, Cron: "not a cron"}, queue.New(1))
	if err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestStartValidCron(t *testing.T) {
	openTestStore(t)
	stop, err := Start(context.Background(), config.MaintenanceConfig{Enabled: true, Cron: "0 3 * * *"}, queue.New(1))
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	stop()
}
