// In-memory task store.
//
// Process-local: tasks are lost on restart. Thread-safe via a single mutex.

package taskstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps tasks in a process-local map.
type MemoryStore struct {
	mu     sync.Mutex
	tasks  map[string]*Task
	nextID int
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tasks:  make(map[string]*Task),
		nextID: 1,
	}
}

// Create adds a task with the next task_N ID.
func (s *MemoryStore) Create(ctx context.Context, title, description string, priority Priority, dueDate *time.Time) (*Task, error) {
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if priority == "" {
		priority = PriorityMedium
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	task := &Task{
		ID:          fmt.Sprintf("task_%d", s.nextID),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		DueDate:     dueDate,
	}
	s.nextID++
	s.tasks[task.ID] = task
	return copyTask(task), nil
}

// List returns tasks matching the filter, ordered by creation.
func (s *MemoryStore) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	result := []*Task{}
	for _, task := range s.tasks {
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.Priority != nil && task.Priority != *filter.Priority {
			continue
		}
		result = append(result, copyTask(task))
	}

	sort.Slice(result, func(i, j int) bool {
		return taskOrdinal(result[i].ID) < taskOrdinal(result[j].ID)
	})
	return result, nil
}

// Get returns a task by ID.
func (s *MemoryStore) Get(ctx context.Context, id string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return copyTask(task), nil
}

// UpdateStatus changes a task's status, maintaining completed_at.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id string, status Status) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}

	task.Status = status
	if status == StatusCompleted {
		now := time.Now()
		task.CompletedAt = &now
	} else {
		task.CompletedAt = nil
	}
	return copyTask(task), nil
}

// UpdatePriority changes a task's priority.
func (s *MemoryStore) UpdatePriority(ctx context.Context, id string, priority Priority) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	task, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	task.Priority = priority
	return copyTask(task), nil
}

// Delete removes a task.
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.tasks[id]; !ok {
		return ErrTaskNotFound
	}
	delete(s.tasks, id)
	return nil
}

// DueSoon returns non-completed tasks due within the window, sorted by due date.
func (s *MemoryStore) DueSoon(ctx context.Context, days int) ([]*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().AddDate(0, 0, days)
	result := []*Task{}
	for _, task := range s.tasks {
		if task.Status == StatusCompleted || task.DueDate == nil {
			continue
		}
		if task.DueDate.After(cutoff) {
			continue
		}
		result = append(result, copyTask(task))
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(*result[j].DueDate)
	})
	return result, nil
}

// Stats returns counts by status and priority plus the overdue count.
func (s *MemoryStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := &Stats{
		ByStatus:   make(map[Status]int),
		ByPriority: make(map[Priority]int),
	}
	now := time.Now()
	for _, task := range s.tasks {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++
		if task.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// copyTask returns a shallow copy so callers can't mutate stored tasks.
func copyTask(t *Task) *Task {
	c := *t
	if t.DueDate != nil {
		d := *t.DueDate
		c.DueDate = &d
	}
	if t.CompletedAt != nil {
		d := *t.CompletedAt
		c.CompletedAt = &d
	}
	return &c
}

// taskOrdinal extracts the numeric part of a task_N ID for ordering.
func taskOrdinal(id string) int {
	var n int
	fmt.Sscanf(id, "task_%d", &n)
	return n
}

// Verify MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
