package agent

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func testConfig(id string, enabled bool) Config {
	return Config{
		Identity:  Identity{Name: id, Emoji: "🤖"},
		Specialty: Specialty{ID: id, DisplayName: id, Description: id + " things"},
		Enabled:   enabled,
	}
}

func TestCatalogRegisterStartsEmpty(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("researcher", testConfig("researcher", true))

	snap, ok := c.Get("researcher")
	if !ok {
		t.Fatal("agent not found after Register")
	}
	if len(snap.ActiveTasks) != 0 || len(snap.CompletedTasks) != 0 {
		t.Errorf("fresh agent should have empty task lists, got %d active %d completed",
			len(snap.ActiveTasks), len(snap.CompletedTasks))
	}
	if !snap.IsRunning {
		t.Error("enabled agent should report IsRunning")
	}
}

func TestCatalogReRegisterDropsState(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("researcher", testConfig("researcher", true))

	task := &Task{ID: "task-1", AgentID: "researcher", Status: StatusPending}
	if err := c.beginTask(task); err != nil {
		t.Fatalf("beginTask: %v", err)
	}

	c.Register("researcher", testConfig("researcher", true))
	snap, _ := c.Get("researcher")
	if len(snap.ActiveTasks) != 0 {
		t.Error("re-registration should reset the active task list")
	}
}

func TestCatalogListOrdering(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", true))
	c.Register("analyst", testConfig("analyst", false))
	c.Register("researcher", testConfig("researcher", true))

	all := c.List()
	if len(all) != 3 {
		t.Fatalf("List returned %d agents", len(all))
	}
	for i, want := range []string{"analyst", "researcher", "writer"} {
		if all[i].Config.Specialty.ID != want {
			t.Errorf("List[%d] = %s, want %s", i, all[i].Config.Specialty.ID, want)
		}
	}

	enabled := c.ListEnabled()
	if len(enabled) != 2 {
		t.Fatalf("ListEnabled returned %d agents", len(enabled))
	}
	if enabled[0].Config.Specialty.ID != "researcher" || enabled[1].Config.Specialty.ID != "writer" {
		t.Errorf("unexpected enabled set: %s, %s",
			enabled[0].Config.Specialty.ID, enabled[1].Config.Specialty.ID)
	}
}

func TestCatalogSetEnabled(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", true))

	c.SetEnabled("writer", false)
	snap, _ := c.Get("writer")
	if snap.Config.Enabled || snap.IsRunning {
		t.Error("disable should clear both Enabled and IsRunning")
	}

	c.SetEnabled("ghost", true) // unknown id is a no-op
	if _, ok := c.Get("ghost"); ok {
		t.Error("SetEnabled must not create agents")
	}
}

func TestCatalogSetModel(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", true))

	if !c.SetModel("writer", "claude-sonnet-4-5") {
		t.Fatal("SetModel on known agent returned false")
	}
	snap, _ := c.Get("writer")
	if snap.Config.Model != "claude-sonnet-4-5" {
		t.Errorf("model = %q", snap.Config.Model)
	}

	c.SetModel("writer", "")
	snap, _ = c.Get("writer")
	if snap.Config.Model != "" {
		t.Error("empty model should clear the override")
	}

	if c.SetModel("ghost", "x") {
		t.Error("SetModel on unknown agent should return false")
	}
}

func TestCatalogUpdateConfig(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", true))

	iter := 3
	timeout := 30 * time.Second
	enabled := false
	if !c.UpdateConfig("writer", ConfigPatch{
		MaxIterations: &iter,
		TaskTimeout:   &timeout,
		Enabled:       &enabled,
	}) {
		t.Fatal("UpdateConfig returned false")
	}

	snap, _ := c.Get("writer")
	if snap.Config.MaxIterations != 3 || snap.Config.TaskTimeout != 30*time.Second {
		t.Errorf("patch not applied: %+v", snap.Config)
	}
	if snap.Config.Enabled || snap.IsRunning {
		t.Error("Enabled patch should toggle IsRunning too")
	}
	if snap.Config.Identity.Name != "writer" {
		t.Error("untouched fields must survive the patch")
	}

	if c.UpdateConfig("ghost", ConfigPatch{}) {
		t.Error("UpdateConfig on unknown agent should return false")
	}
}

func TestCatalogRegisterFromManifest(t *testing.T) {
	c := NewCatalog(nil)
	model := "gpt-4o"
	disabled := false
	c.RegisterFromManifest(Manifest{
		Identity:     Identity{Name: "Ana", Emoji: "📊"},
		Specialty:    Specialty{ID: "analyst", DisplayName: "Analysis", Description: "Crunches numbers."},
		DefaultModel: "claude-sonnet-4-5",
	}, &Overrides{Model: &model, Enabled: &disabled})

	snap, ok := c.Get("analyst")
	if !ok {
		t.Fatal("manifest registration did not use the specialty id")
	}
	if snap.Config.Model != "gpt-4o" {
		t.Errorf("override lost: model = %q", snap.Config.Model)
	}
	if snap.Config.Enabled {
		t.Error("Enabled override lost")
	}
}

func TestCatalogBeginTaskValidation(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", false))

	err := c.beginTask(&Task{ID: "t1", AgentID: "ghost"})
	if !errors.Is(err, ErrAgentNotFound) {
		t.Errorf("unknown agent: got %v", err)
	}
	err = c.beginTask(&Task{ID: "t2", AgentID: "writer"})
	if !errors.Is(err, ErrAgentDisabled) {
		t.Errorf("disabled agent: got %v", err)
	}

	snap, _ := c.Get("writer")
	if len(snap.ActiveTasks) != 0 {
		t.Error("rejected spawn must not leave a task behind")
	}
}

func TestCatalogCompletedHistoryCap(t *testing.T) {
	c := NewCatalog(nil)
	c.Register("writer", testConfig("writer", true))

	total := completedHistoryCap + 10
	for i := 0; i < total; i++ {
		task := &Task{ID: fmt.Sprintf("task-%03d", i), AgentID: "writer", Status: StatusPending}
		if err := c.beginTask(task); err != nil {
			t.Fatalf("beginTask %d: %v", i, err)
		}
		c.startTask(task)
		status := StatusCompleted
		if i%2 == 1 {
			status = StatusFailed // failures share the history ring
		}
		c.finishTask(task, status, "done", "")
	}

	snap, _ := c.Get("writer")
	if len(snap.ActiveTasks) != 0 {
		t.Errorf("%d tasks still active", len(snap.ActiveTasks))
	}
	if len(snap.CompletedTasks) != completedHistoryCap {
		t.Fatalf("history holds %d tasks, want %d", len(snap.CompletedTasks), completedHistoryCap)
	}
	// Oldest entries were evicted; the survivors are the most recent 50 in order.
	if got := snap.CompletedTasks[0].ID; got != "task-010" {
		t.Errorf("oldest surviving task = %s, want task-010", got)
	}
	if got := snap.CompletedTasks[completedHistoryCap-1].ID; got != fmt.Sprintf("task-%03d", total-1) {
		t.Errorf("newest task = %s", got)
	}

	// Evicted tasks are gone; survivors are still findable.
	if _, ok := c.findTask("task-000"); ok {
		t.Error("evicted task should be unreachable")
	}
	if task, ok := c.findTask("task-011"); !ok || task.Status != StatusFailed {
		t.Error("surviving failed task should be findable with its terminal state")
	}
}
