package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/marchhare/go-crew/internal/bus"
)

func openTestArchive(t *testing.T) *Archive {
	t.Helper()
	a, err := Open(filepath.Join(t.TempDir(), "history.db"), nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func sampleEvent(taskID, agentID, status string) bus.TaskEvent {
	now := time.Now().UTC().Truncate(time.Second)
	return bus.TaskEvent{
		TaskID:      taskID,
		AgentID:     agentID,
		Prompt:      "do the thing",
		Status:      status,
		Result:      "it is done",
		CreatedAt:   now.Add(-time.Minute),
		StartedAt:   now.Add(-30 * time.Second),
		CompletedAt: now,
	}
}

func TestRecordAndRecent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	if err := a.Record(ctx, sampleEvent("t1", "researcher", "completed")); err != nil {
		t.Fatalf("Record: %v", err)
	}
	ev2 := sampleEvent("t2", "researcher", "failed")
	ev2.Result = ""
	ev2.Error = "provider exploded"
	ev2.CompletedAt = ev2.CompletedAt.Add(time.Second)
	if err := a.Record(ctx, ev2); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := a.Record(ctx, sampleEvent("t3", "writer", "completed")); err != nil {
		t.Fatalf("Record: %v", err)
	}

	recs, err := a.Recent(ctx, "researcher", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records", len(recs))
	}
	if recs[0].TaskID != "t2" {
		t.Errorf("newest first: got %s", recs[0].TaskID)
	}
	if recs[0].Error != "provider exploded" || recs[0].Status != "failed" {
		t.Errorf("failed record = %+v", recs[0])
	}

	all, err := a.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("got %d records across agents", len(all))
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	a := openTestArchive(t)
	ctx := context.Background()

	ev := sampleEvent("t1", "researcher", "completed")
	if err := a.Record(ctx, ev); err != nil {
		t.Fatal(err)
	}
	ev.Result = "revised result"
	if err := a.Record(ctx, ev); err != nil {
		t.Fatalf("re-record: %v", err)
	}

	n, err := a.Count(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("count = %d after duplicate record", n)
	}
	recs, _ := a.Recent(ctx, "researcher", 1)
	if recs[0].Result != "revised result" {
		t.Errorf("upsert did not apply: %q", recs[0].Result)
	}
}

func TestRunArchivesTerminalEvents(t *testing.T) {
	a := openTestArchive(t)
	b := bus.New()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.Run(ctx, b)
	}()

	// Give the subscriber a moment to attach.
	waitFor(t, func() bool { return b.SubscriberCount() == 1 })

	b.Publish(bus.TopicTaskStart, sampleEvent("t1", "researcher", "running"))
	b.Publish(bus.TopicTaskComplete, sampleEvent("t1", "researcher", "completed"))
	b.Publish(bus.TopicTaskError, sampleEvent("t2", "writer", "failed"))

	waitFor(t, func() bool {
		n, err := a.Count(context.Background())
		return err == nil && n == 2
	})

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not exit on cancel")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			t.Fatal("condition never became true")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
