package taskstore

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/richinex/theseus/tools"
)

func findTool(t *testing.T, store Store, name string) tools.Tool {
	t.Helper()
	for _, tool := range Tools(store) {
		if tool.Metadata().Name == name {
			return tool
		}
	}
	t.Fatalf("tool %q not found", name)
	return nil
}

func TestToolsRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	create := findTool(t, store, "create_task")
	result, err := create.Execute(ctx, json.RawMessage(`{"title": "write report", "priority": "high", "due_date": "2026-09-01"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("create_task failed: %v", result.Error)
	}

	var created Task
	if err := json.Unmarshal([]byte(result.Output), &created); err != nil {
		t.Fatalf("create_task output is not a task: %v", err)
	}
	if created.ID != "task_1" || created.Priority != PriorityHigh {
		t.Errorf("unexpected task: %+v", created)
	}

	get := findTool(t, store, "get_task")
	result, err = get.Execute(ctx, json.RawMessage(`{"task_id": "task_1"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() || !strings.Contains(result.Output, "write report") {
		t.Errorf("get_task result wrong: %v %q", result.Error, result.Output)
	}

	update := findTool(t, store, "update_task_status")
	result, err = update.Execute(ctx, json.RawMessage(`{"task_id": "task_1", "status": "completed"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() || !strings.Contains(result.Output, "completed_at") {
		t.Errorf("completing should include completed_at: %v %q", result.Error, result.Output)
	}

	del := findTool(t, store, "delete_task")
	result, err = del.Execute(ctx, json.RawMessage(`{"task_id": "task_1"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success() {
		t.Fatalf("delete_task failed: %v", result.Error)
	}

	result, err = get.Execute(ctx, json.RawMessage(`{"task_id": "task_1"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("get_task should fail after deletion")
	}
}

func TestToolsRejectBadEnums(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	create := findTool(t, store, "create_task")
	result, err := create.Execute(ctx, json.RawMessage(`{"title": "x", "priority": "urgent"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for invalid priority")
	}

	result, err = create.Execute(ctx, json.RawMessage(`{"title": "x", "due_date": "tomorrow"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for invalid due_date")
	}

	list := findTool(t, store, "list_tasks")
	result, err = list.Execute(ctx, json.RawMessage(`{"status": "done"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for invalid status filter")
	}
}

func TestListAndStatsTools(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	create := findTool(t, store, "create_task")
	for _, args := range []string{
		`{"title": "a", "priority": "high"}`,
		`{"title": "b", "priority": "low"}`,
		`{"title": "c", "priority": "high"}`,
	} {
		if result, err := create.Execute(ctx, json.RawMessage(args)); err != nil || !result.Success() {
			t.Fatalf("create_task failed: %v %v", err, result.Error)
		}
	}

	list := findTool(t, store, "list_tasks")
	result, err := list.Execute(ctx, json.RawMessage(`{"priority": "high"}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var tasks []Task
	if err := json.Unmarshal([]byte(result.Output), &tasks); err != nil {
		t.Fatalf("list_tasks output is not a task list: %v", err)
	}
	if len(tasks) != 2 {
		t.Errorf("expected 2 high-priority tasks, got %d", len(tasks))
	}

	stats := findTool(t, store, "get_task_stats")
	result, err = stats.Execute(ctx, nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	var s Stats
	if err := json.Unmarshal([]byte(result.Output), &s); err != nil {
		t.Fatalf("get_task_stats output is not stats: %v", err)
	}
	if s.Total != 3 || s.ByPriority[PriorityHigh] != 2 {
		t.Errorf("unexpected stats: %+v", s)
	}
}

func TestDueSoonTool(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	create := findTool(t, store, "create_task")
	if result, err := create.Execute(ctx, json.RawMessage(`{"title": "near", "due_date": "2026-08-25"}`)); err != nil || !result.Success() {
		t.Fatalf("create_task failed: %v %v", err, result.Error)
	}

	dueSoon := findTool(t, store, "get_tasks_due_soon")
	result, err := dueSoon.Execute(ctx, json.RawMessage(`{"days": -1}`))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Success() {
		t.Error("expected failure for negative days")
	}
}
