// SQLite-backed task store.
//
// Information Hiding:
// - SQLite connection management hidden behind Store
// - Schema and ID-counter details encapsulated
// - Thread-safe via sql.DB's built-in connection pooling

package taskstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore persists tasks in a SQLite database file.
type SqliteStore struct {
	db *sql.DB
}

// OpenSqlite opens or creates a SQLite task database at the given path.
// Creates parent directories if they don't exist.
func OpenSqlite(path string) (*SqliteStore, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// NewSqliteInMemory creates an in-memory task database (useful for testing).
func NewSqliteInMemory() (*SqliteStore, error) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite: %w", err)
	}

	store := &SqliteStore{db: db}
	if err := store.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			priority TEXT NOT NULL,
			status TEXT NOT NULL,
			created_at TEXT NOT NULL,
			due_date TEXT,
			completed_at TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
		CREATE INDEX IF NOT EXISTS idx_tasks_due ON tasks(due_date);

		CREATE TABLE IF NOT EXISTS task_counter (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			next INTEGER NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	_, err := s.db.Exec("INSERT OR IGNORE INTO task_counter (id, next) VALUES (1, 1)")
	if err != nil {
		return fmt.Errorf("failed to seed counter: %w", err)
	}
	return nil
}

// Create adds a task with the next task_N ID. The counter never reuses IDs
// of deleted tasks.
func (s *SqliteStore) Create(ctx context.Context, title, description string, priority Priority, dueDate *time.Time) (*Task, error) {
	if title == "" {
		return nil, fmt.Errorf("title cannot be empty")
	}
	if priority == "" {
		priority = PriorityMedium
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// defer tx.Rollback() is safe even after Commit() - it becomes a no-op
	defer func() { _ = tx.Rollback() }()

	var next int
	if err := tx.QueryRowContext(ctx, "SELECT next FROM task_counter WHERE id = 1").Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to read counter: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "UPDATE task_counter SET next = next + 1 WHERE id = 1"); err != nil {
		return nil, fmt.Errorf("failed to advance counter: %w", err)
	}

	task := &Task{
		ID:          fmt.Sprintf("task_%d", next),
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      StatusPending,
		CreatedAt:   time.Now(),
		DueDate:     dueDate,
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO tasks (id, title, description, priority, status, created_at, due_date, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Title,
		task.Description,
		string(task.Priority),
		string(task.Status),
		formatTime(&task.CreatedAt),
		formatTime(task.DueDate),
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to insert task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return task, nil
}

// List returns tasks matching the filter, ordered by creation.
func (s *SqliteStore) List(ctx context.Context, filter ListFilter) ([]*Task, error) {
	query := "SELECT id, title, description, priority, status, created_at, due_date, completed_at FROM tasks"
	var clauses []string
	var args []interface{}

	if filter.Status != nil {
		clauses = append(clauses, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.Priority != nil {
		clauses = append(clauses, "priority = ?")
		args = append(args, string(*filter.Priority))
	}
	for i, clause := range clauses {
		if i == 0 {
			query += " WHERE " + clause
		} else {
			query += " AND " + clause
		}
	}
	query += " ORDER BY CAST(substr(id, 6) AS INTEGER) ASC"

	return s.queryTasks(ctx, query, args...)
}

// Get returns a task by ID.
func (s *SqliteStore) Get(ctx context.Context, id string) (*Task, error) {
	tasks, err := s.queryTasks(ctx,
		"SELECT id, title, description, priority, status, created_at, due_date, completed_at FROM tasks WHERE id = ?",
		id)
	if err != nil {
		return nil, err
	}
	if len(tasks) == 0 {
		return nil, ErrTaskNotFound
	}
	return tasks[0], nil
}

// UpdateStatus changes a task's status, maintaining completed_at.
func (s *SqliteStore) UpdateStatus(ctx context.Context, id string, status Status) (*Task, error) {
	var completedAt interface{}
	if status == StatusCompleted {
		completedAt = time.Now().UTC().Format(time.RFC3339)
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ?, completed_at = ? WHERE id = ?",
		string(status), completedAt, id)
	if err != nil {
		return nil, fmt.Errorf("failed to update status: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrTaskNotFound
	}
	return s.Get(ctx, id)
}

// UpdatePriority changes a task's priority.
func (s *SqliteStore) UpdatePriority(ctx context.Context, id string, priority Priority) (*Task, error) {
	result, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET priority = ? WHERE id = ?",
		string(priority), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update priority: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return nil, ErrTaskNotFound
	}
	return s.Get(ctx, id)
}

// Delete removes a task.
func (s *SqliteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// DueSoon returns non-completed tasks due within the window, sorted by due date.
func (s *SqliteStore) DueSoon(ctx context.Context, days int) ([]*Task, error) {
	cutoff := time.Now().AddDate(0, 0, days).UTC().Format(time.RFC3339)
	return s.queryTasks(ctx, `
		SELECT id, title, description, priority, status, created_at, due_date, completed_at
		FROM tasks
		WHERE status != ? AND due_date IS NOT NULL AND due_date <= ?
		ORDER BY due_date ASC`,
		string(StatusCompleted), cutoff)
}

// Stats returns counts by status and priority plus the overdue count.
func (s *SqliteStore) Stats(ctx context.Context) (*Stats, error) {
	tasks, err := s.queryTasks(ctx,
		"SELECT id, title, description, priority, status, created_at, due_date, completed_at FROM tasks")
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ByStatus:   make(map[Status]int),
		ByPriority: make(map[Priority]int),
	}
	now := time.Now()
	for _, task := range tasks {
		stats.Total++
		stats.ByStatus[task.Status]++
		stats.ByPriority[task.Priority]++
		if task.Overdue(now) {
			stats.Overdue++
		}
	}
	return stats, nil
}

// queryTasks executes a query and scans results into a Task slice.
func (s *SqliteStore) queryTasks(ctx context.Context, query string, args ...interface{}) ([]*Task, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*Task{} // Start with empty slice, not nil
	for rows.Next() {
		task, err := scanTaskRow(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tasks: %w", err)
	}
	return tasks, nil
}

// scanTaskRow scans a single task row from the result set.
func scanTaskRow(rows *sql.Rows) (*Task, error) {
	var task Task
	var priority, status, createdAt string
	var dueDate, completedAt sql.NullString

	err := rows.Scan(
		&task.ID,
		&task.Title,
		&task.Description,
		&priority,
		&status,
		&createdAt,
		&dueDate,
		&completedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to scan task: %w", err)
	}

	p, err := ParsePriority(priority)
	if err != nil {
		return nil, fmt.Errorf("invalid priority %q in database: %w", priority, err)
	}
	task.Priority = p

	st, err := ParseStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invalid status %q in database: %w", status, err)
	}
	task.Status = st

	task.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q in database: %w", createdAt, err)
	}

	if task.DueDate, err = parseNullTime(dueDate); err != nil {
		return nil, fmt.Errorf("invalid due_date in database: %w", err)
	}
	if task.CompletedAt, err = parseNullTime(completedAt); err != nil {
		return nil, fmt.Errorf("invalid completed_at in database: %w", err)
	}

	return &task, nil
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// formatTime formats a time pointer as RFC3339 in UTC, or nil for NULL.
// Times are normalized to UTC before storage so the TEXT columns compare
// and sort chronologically regardless of the offset the caller supplied.
func formatTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

// Verify SqliteStore implements Store
var _ Store = (*SqliteStore)(nil)
