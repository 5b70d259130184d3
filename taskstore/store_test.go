package taskstore

import (
	"context"
	"errors"
	"testing"
	"time"
)

// storeUnderTest runs the same suite against both Store implementations.
func storeUnderTest(t *testing.T, run func(t *testing.T, store Store)) {
	t.Helper()

	t.Run("memory", func(t *testing.T) {
		run(t, NewMemoryStore())
	})

	t.Run("sqlite", func(t *testing.T) {
		store, err := NewSqliteInMemory()
		if err != nil {
			t.Fatalf("failed to create SQLite store: %v", err)
		}
		defer store.Close()
		run(t, store)
	})
}

func TestCreateAssignsSequentialIDs(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		first, err := store.Create(ctx, "first", "", PriorityMedium, nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if first.ID != "task_1" {
			t.Errorf("expected task_1, got %s", first.ID)
		}
		if first.Status != StatusPending {
			t.Errorf("new task should be pending, got %s", first.Status)
		}

		second, err := store.Create(ctx, "second", "details", PriorityHigh, nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if second.ID != "task_2" {
			t.Errorf("expected task_2, got %s", second.ID)
		}

		// Deleting the latest task must not cause ID reuse
		if err := store.Delete(ctx, "task_2"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		third, err := store.Create(ctx, "third", "", PriorityLow, nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if third.ID != "task_3" {
			t.Errorf("deleted IDs should not be reused, got %s", third.ID)
		}
	})
}

func TestCreateRequiresTitle(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		if _, err := store.Create(context.Background(), "", "", PriorityLow, nil); err == nil {
			t.Error("expected error for empty title")
		}
	})
}

func TestGetMissingTask(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		_, err := store.Get(context.Background(), "task_99")
		if !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})
}

func TestUpdateStatusManagesCompletedAt(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		task, err := store.Create(ctx, "finish me", "", PriorityMedium, nil)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		completed, err := store.UpdateStatus(ctx, task.ID, StatusCompleted)
		if err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if completed.CompletedAt == nil {
			t.Error("completing a task should set completed_at")
		}

		reopened, err := store.UpdateStatus(ctx, task.ID, StatusInProgress)
		if err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}
		if reopened.CompletedAt != nil {
			t.Error("leaving completed should clear completed_at")
		}
		if reopened.Status != StatusInProgress {
			t.Errorf("expected in_progress, got %s", reopened.Status)
		}
	})
}

func TestUpdateMissingTask(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		if _, err := store.UpdateStatus(ctx, "task_404", StatusCompleted); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
		if _, err := store.UpdatePriority(ctx, "task_404", PriorityHigh); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
		if err := store.Delete(ctx, "task_404"); !errors.Is(err, ErrTaskNotFound) {
			t.Errorf("expected ErrTaskNotFound, got %v", err)
		}
	})
}

func TestListFilters(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		a, _ := store.Create(ctx, "a", "", PriorityHigh, nil)
		b, _ := store.Create(ctx, "b", "", PriorityLow, nil)
		if _, err := store.Create(ctx, "c", "", PriorityHigh, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := store.UpdateStatus(ctx, b.ID, StatusCompleted); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}

		all, err := store.List(ctx, ListFilter{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(all) != 3 {
			t.Fatalf("expected 3 tasks, got %d", len(all))
		}
		if all[0].ID != a.ID {
			t.Errorf("list should be in creation order, got %s first", all[0].ID)
		}

		high := PriorityHigh
		byPriority, err := store.List(ctx, ListFilter{Priority: &high})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(byPriority) != 2 {
			t.Errorf("expected 2 high-priority tasks, got %d", len(byPriority))
		}

		completed := StatusCompleted
		byStatus, err := store.List(ctx, ListFilter{Status: &completed})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(byStatus) != 1 || byStatus[0].ID != b.ID {
			t.Errorf("expected only %s completed, got %v", b.ID, byStatus)
		}

		both, err := store.List(ctx, ListFilter{Status: &completed, Priority: &high})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(both) != 0 {
			t.Errorf("expected no completed high-priority tasks, got %d", len(both))
		}
	})
}

func TestDueSoon(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		now := time.Now()

		overdue := now.Add(-48 * time.Hour)
		tomorrow := now.Add(24 * time.Hour)
		nextMonth := now.Add(30 * 24 * time.Hour)

		late, _ := store.Create(ctx, "late", "", PriorityHigh, &overdue)
		soon, _ := store.Create(ctx, "soon", "", PriorityMedium, &tomorrow)
		if _, err := store.Create(ctx, "far", "", PriorityLow, &nextMonth); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := store.Create(ctx, "no due date", "", PriorityLow, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		done, _ := store.Create(ctx, "done", "", PriorityHigh, &tomorrow)
		if _, err := store.UpdateStatus(ctx, done.ID, StatusCompleted); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}

		due, err := store.DueSoon(ctx, 7)
		if err != nil {
			t.Fatalf("DueSoon failed: %v", err)
		}
		if len(due) != 2 {
			t.Fatalf("expected 2 tasks due soon, got %d", len(due))
		}
		if due[0].ID != late.ID || due[1].ID != soon.ID {
			t.Errorf("expected [%s %s] sorted by due date, got [%s %s]",
				late.ID, soon.ID, due[0].ID, due[1].ID)
		}
	})
}

func TestDueSoonOrdersMixedOffsets(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()

		// The earlier instant carries a +09:00 offset, so its wall-clock
		// reading is ahead of the later instant's UTC form. Ordering must
		// follow the instants, not the offset-local clock.
		tokyo := time.FixedZone("UTC+9", 9*60*60)
		earlier := time.Now().Add(20 * time.Hour).In(tokyo)
		later := time.Now().Add(24 * time.Hour).UTC()

		second, _ := store.Create(ctx, "later instant", "", PriorityLow, &later)
		first, err := store.Create(ctx, "earlier instant", "", PriorityLow, &earlier)
		if err != nil {
			t.Fatalf("Create failed: %v", err)
		}

		due, err := store.DueSoon(ctx, 7)
		if err != nil {
			t.Fatalf("DueSoon failed: %v", err)
		}
		if len(due) != 2 {
			t.Fatalf("expected 2 tasks due soon, got %d", len(due))
		}
		if due[0].ID != first.ID || due[1].ID != second.ID {
			t.Errorf("expected chronological order [%s %s], got [%s %s]",
				first.ID, second.ID, due[0].ID, due[1].ID)
		}
	})
}

func TestStats(t *testing.T) {
	storeUnderTest(t, func(t *testing.T, store Store) {
		ctx := context.Background()
		past := time.Now().Add(-24 * time.Hour)

		if _, err := store.Create(ctx, "a", "", PriorityHigh, &past); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		b, _ := store.Create(ctx, "b", "", PriorityLow, &past)
		if _, err := store.Create(ctx, "c", "", PriorityHigh, nil); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
		if _, err := store.UpdateStatus(ctx, b.ID, StatusCompleted); err != nil {
			t.Fatalf("UpdateStatus failed: %v", err)
		}

		stats, err := store.Stats(ctx)
		if err != nil {
			t.Fatalf("Stats failed: %v", err)
		}
		if stats.Total != 3 {
			t.Errorf("expected total 3, got %d", stats.Total)
		}
		if stats.ByStatus[StatusPending] != 2 || stats.ByStatus[StatusCompleted] != 1 {
			t.Errorf("unexpected status counts: %v", stats.ByStatus)
		}
		if stats.ByPriority[PriorityHigh] != 2 || stats.ByPriority[PriorityLow] != 1 {
			t.Errorf("unexpected priority counts: %v", stats.ByPriority)
		}
		// b is completed, so only a's past due date counts
		if stats.Overdue != 1 {
			t.Errorf("expected 1 overdue, got %d", stats.Overdue)
		}
	})
}

func TestParseEnums(t *testing.T) {
	if _, err := ParsePriority("urgent"); err == nil {
		t.Error("expected error for invalid priority")
	}
	if p, err := ParsePriority("HIGH"); err != nil || p != PriorityHigh {
		t.Errorf("expected case-insensitive parse, got %v %v", p, err)
	}
	if _, err := ParseStatus("done"); err == nil {
		t.Error("expected error for invalid status")
	}
	if s, err := ParseStatus("In_Progress"); err != nil || s != StatusInProgress {
		t.Errorf("expected case-insensitive parse, got %v %v", s, err)
	}

	if PriorityHigh.Rank() <= PriorityMedium.Rank() || PriorityMedium.Rank() <= PriorityLow.Rank() {
		t.Error("priority ranks out of order")
	}
}
