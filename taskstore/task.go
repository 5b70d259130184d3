// Package taskstore provides the task model and stores for the task-manager
// MCP server.
//
// Information Hiding:
// - ID allocation hidden inside stores
// - completed_at bookkeeping hidden behind UpdateStatus
// - Storage backend (in-memory or SQLite) hidden behind Store
package taskstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Priority is a task priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority parses a priority string (case-insensitive).
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(s) {
	case "low":
		return PriorityLow, nil
	case "medium":
		return PriorityMedium, nil
	case "high":
		return PriorityHigh, nil
	default:
		return "", fmt.Errorf("invalid priority %q (want low, medium, or high)", s)
	}
}

// Rank returns the numeric weight of the priority for ordering.
func (p Priority) Rank() int {
	switch p {
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Status is a task lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ParseStatus parses a status string (case-insensitive).
func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(s) {
	case "pending":
		return StatusPending, nil
	case "in_progress":
		return StatusInProgress, nil
	case "completed":
		return StatusCompleted, nil
	default:
		return "", fmt.Errorf("invalid status %q (want pending, in_progress, or completed)", s)
	}
}

// Task is a single tracked task.
type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	DueDate     *time.Time `json:"due_date,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Overdue reports whether the task's due date has passed without completion.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.Status != StatusCompleted && t.DueDate.Before(now)
}

// ListFilter narrows List results. Nil fields match everything.
type ListFilter struct {
	Status   *Status
	Priority *Priority
}

// Stats summarizes the task collection.
type Stats struct {
	Total      int              `json:"total"`
	ByStatus   map[Status]int   `json:"by_status"`
	ByPriority map[Priority]int `json:"by_priority"`
	Overdue    int              `json:"overdue"`
}

// ErrTaskNotFound is returned when a task ID does not exist.
var ErrTaskNotFound = errors.New("task not found")

// Store is the task persistence interface.
type Store interface {
	// Create adds a task and assigns it the next task_N ID.
	Create(ctx context.Context, title, description string, priority Priority, dueDate *time.Time) (*Task, error)

	// List returns tasks matching the filter, ordered by creation.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	// Get returns a task by ID, or ErrTaskNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// UpdateStatus changes a task's status. Moving to completed sets
	// completed_at; moving away from completed clears it.
	UpdateStatus(ctx context.Context, id string, status Status) (*Task, error)

	// UpdatePriority changes a task's priority.
	UpdatePriority(ctx context.Context, id string, priority Priority) (*Task, error)

	// Delete removes a task, or returns ErrTaskNotFound.
	Delete(ctx context.Context, id string) error

	// DueSoon returns non-completed tasks due within the given number of
	// days (including already overdue tasks), sorted by due date.
	DueSoon(ctx context.Context, days int) ([]*Task, error)

	// Stats returns counts by status and priority plus the overdue count.
	Stats(ctx context.Context) (*Stats, error)
}
