// Task-manager tools exposed over MCP.
//
// Each tool is a thin wrapper over a Store. Domain errors (unknown ID,
// bad enum value) are returned as tool results, not Go errors, so the
// caller always gets a structured answer.

package taskstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richinex/theseus/tools"
)

// dueDateLayouts are the accepted due_date formats.
var dueDateLayouts = []string{time.RFC3339, "2006-01-02"}

// parseDueDate parses an optional due date argument.
func parseDueDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("invalid due_date %q (want RFC3339 or YYYY-MM-DD)", s)
}

// taskJSON renders a task as indented JSON.
func taskJSON(task *Task) tools.ToolResult {
	data, err := json.MarshalIndent(task, "", "  ")
	if err != nil {
		return tools.FailureResult(fmt.Errorf("failed to encode task: %w", err))
	}
	return tools.SuccessResult(string(data))
}

// taskListJSON renders a task slice as indented JSON.
func taskListJSON(tasks []*Task) tools.ToolResult {
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return tools.FailureResult(fmt.Errorf("failed to encode tasks: %w", err))
	}
	return tools.SuccessResult(string(data))
}

// storeFailure converts a store error into a tool result.
func storeFailure(id string, err error) tools.ToolResult {
	if errors.Is(err, ErrTaskNotFound) {
		return tools.FailureResultf("task '%s' not found", id)
	}
	return tools.FailureResult(err)
}

// Tools returns all task-manager tools backed by the given store.
func Tools(store Store) []tools.Tool {
	return []tools.Tool{
		&CreateTaskTool{store: store},
		&ListTasksTool{store: store},
		&GetTaskTool{store: store},
		&UpdateTaskStatusTool{store: store},
		&UpdateTaskPriorityTool{store: store},
		&DeleteTaskTool{store: store},
		&TasksDueSoonTool{store: store},
		&TaskStatsTool{store: store},
	}
}

// CreateTaskTool creates a new task.
type CreateTaskTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *CreateTaskTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "create_task",
		Description: "Create a new task with a title, optional description, priority, and due date",
		Parameters: []tools.ToolParameter{
			{Name: "title", ParamType: "string", Description: "Task title", Required: true},
			{Name: "description", ParamType: "string", Description: "Task description", Required: false},
			{Name: "priority", ParamType: "string", Description: "Priority: low, medium, or high (default: medium)", Required: false},
			{Name: "due_date", ParamType: "string", Description: "Due date (RFC3339 or YYYY-MM-DD)", Required: false},
		},
	}
}

type createTaskArgs struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
	DueDate     string `json:"due_date"`
}

// Validate validates the arguments.
func (t *CreateTaskTool) Validate(args json.RawMessage) error {
	var a createTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Title == "" {
		return fmt.Errorf("title cannot be empty")
	}
	return nil
}

// Execute creates the task.
func (t *CreateTaskTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a createTaskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.Title == "" {
		return tools.FailureResultf("title cannot be empty"), nil
	}

	priority := PriorityMedium
	if a.Priority != "" {
		p, err := ParsePriority(a.Priority)
		if err != nil {
			return tools.FailureResult(err), nil
		}
		priority = p
	}

	dueDate, err := parseDueDate(a.DueDate)
	if err != nil {
		return tools.FailureResult(err), nil
	}

	task, err := t.store.Create(ctx, a.Title, a.Description, priority, dueDate)
	if err != nil {
		return tools.FailureResult(err), nil
	}
	return taskJSON(task), nil
}

// ListTasksTool lists tasks with optional status/priority filters.
type ListTasksTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *ListTasksTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "list_tasks",
		Description: "List tasks, optionally filtered by status and/or priority",
		Parameters: []tools.ToolParameter{
			{Name: "status", ParamType: "string", Description: "Filter: pending, in_progress, or completed", Required: false},
			{Name: "priority", ParamType: "string", Description: "Filter: low, medium, or high", Required: false},
		},
	}
}

type listTasksArgs struct {
	Status   string `json:"status"`
	Priority string `json:"priority"`
}

// Execute lists the tasks.
func (t *ListTasksTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a listTasksArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}
	}

	var filter ListFilter
	if a.Status != "" {
		status, err := ParseStatus(a.Status)
		if err != nil {
			return tools.FailureResult(err), nil
		}
		filter.Status = &status
	}
	if a.Priority != "" {
		priority, err := ParsePriority(a.Priority)
		if err != nil {
			return tools.FailureResult(err), nil
		}
		filter.Priority = &priority
	}

	tasks, err := t.store.List(ctx, filter)
	if err != nil {
		return tools.FailureResult(err), nil
	}
	return taskListJSON(tasks), nil
}

// GetTaskTool fetches a single task by ID.
type GetTaskTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *GetTaskTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "get_task",
		Description: "Get a task by its ID",
		Parameters: []tools.ToolParameter{
			{Name: "task_id", ParamType: "string", Description: "Task ID (e.g. task_1)", Required: true},
		},
	}
}

type taskIDArgs struct {
	TaskID string `json:"task_id"`
}

// Validate validates the arguments.
func (t *GetTaskTool) Validate(args json.RawMessage) error {
	return validateTaskID(args)
}

func validateTaskID(args json.RawMessage) error {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if a.TaskID == "" {
		return fmt.Errorf("task_id cannot be empty")
	}
	return nil
}

// Execute fetches the task.
func (t *GetTaskTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.TaskID == "" {
		return tools.FailureResultf("task_id cannot be empty"), nil
	}

	task, err := t.store.Get(ctx, a.TaskID)
	if err != nil {
		return storeFailure(a.TaskID, err), nil
	}
	return taskJSON(task), nil
}

// UpdateTaskStatusTool changes a task's status.
type UpdateTaskStatusTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *UpdateTaskStatusTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "update_task_status",
		Description: "Update a task's status. Completing a task records its completion time.",
		Parameters: []tools.ToolParameter{
			{Name: "task_id", ParamType: "string", Description: "Task ID", Required: true},
			{Name: "status", ParamType: "string", Description: "New status: pending, in_progress, or completed", Required: true},
		},
	}
}

type updateStatusArgs struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// Execute updates the status.
func (t *UpdateTaskStatusTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a updateStatusArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.TaskID == "" {
		return tools.FailureResultf("task_id cannot be empty"), nil
	}

	status, err := ParseStatus(a.Status)
	if err != nil {
		return tools.FailureResult(err), nil
	}

	task, err := t.store.UpdateStatus(ctx, a.TaskID, status)
	if err != nil {
		return storeFailure(a.TaskID, err), nil
	}
	return taskJSON(task), nil
}

// UpdateTaskPriorityTool changes a task's priority.
type UpdateTaskPriorityTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *UpdateTaskPriorityTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "update_task_priority",
		Description: "Update a task's priority",
		Parameters: []tools.ToolParameter{
			{Name: "task_id", ParamType: "string", Description: "Task ID", Required: true},
			{Name: "priority", ParamType: "string", Description: "New priority: low, medium, or high", Required: true},
		},
	}
}

type updatePriorityArgs struct {
	TaskID   string `json:"task_id"`
	Priority string `json:"priority"`
}

// Execute updates the priority.
func (t *UpdateTaskPriorityTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a updatePriorityArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.TaskID == "" {
		return tools.FailureResultf("task_id cannot be empty"), nil
	}

	priority, err := ParsePriority(a.Priority)
	if err != nil {
		return tools.FailureResult(err), nil
	}

	task, err := t.store.UpdatePriority(ctx, a.TaskID, priority)
	if err != nil {
		return storeFailure(a.TaskID, err), nil
	}
	return taskJSON(task), nil
}

// DeleteTaskTool removes a task.
type DeleteTaskTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *DeleteTaskTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "delete_task",
		Description: "Delete a task by its ID",
		Parameters: []tools.ToolParameter{
			{Name: "task_id", ParamType: "string", Description: "Task ID", Required: true},
		},
	}
}

// Validate validates the arguments.
func (t *DeleteTaskTool) Validate(args json.RawMessage) error {
	return validateTaskID(args)
}

// Execute deletes the task.
func (t *DeleteTaskTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a taskIDArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
	}
	if a.TaskID == "" {
		return tools.FailureResultf("task_id cannot be empty"), nil
	}

	if err := t.store.Delete(ctx, a.TaskID); err != nil {
		return storeFailure(a.TaskID, err), nil
	}
	return tools.SuccessResult(fmt.Sprintf("Deleted %s", a.TaskID)), nil
}

// TasksDueSoonTool lists upcoming tasks.
type TasksDueSoonTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *TasksDueSoonTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "get_tasks_due_soon",
		Description: "List non-completed tasks due within the given number of days, including overdue tasks, sorted by due date",
		Parameters: []tools.ToolParameter{
			{Name: "days", ParamType: "integer", Description: "Window in days (default: 7)", Required: false},
		},
	}
}

type dueSoonArgs struct {
	Days *int `json:"days"`
}

// Execute lists tasks due within the window.
func (t *TasksDueSoonTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	var a dueSoonArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &a); err != nil {
			return tools.FailureResult(fmt.Errorf("invalid arguments: %w", err)), nil
		}
	}

	days := 7
	if a.Days != nil {
		if *a.Days < 0 {
			return tools.FailureResultf("days cannot be negative"), nil
		}
		days = *a.Days
	}

	tasks, err := t.store.DueSoon(ctx, days)
	if err != nil {
		return tools.FailureResult(err), nil
	}
	return taskListJSON(tasks), nil
}

// TaskStatsTool summarizes the task collection.
type TaskStatsTool struct {
	tools.BaseTool
	store Store
}

// Metadata returns the tool metadata.
func (t *TaskStatsTool) Metadata() tools.ToolMetadata {
	return tools.ToolMetadata{
		Name:        "get_task_stats",
		Description: "Get task counts by status and priority, plus the number of overdue tasks",
		Parameters:  []tools.ToolParameter{},
	}
}

// Execute returns the stats.
func (t *TaskStatsTool) Execute(ctx context.Context, args json.RawMessage) (tools.ToolResult, error) {
	stats, err := t.store.Stats(ctx)
	if err != nil {
		return tools.FailureResult(err), nil
	}

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return tools.FailureResult(fmt.Errorf("failed to encode stats: %w", err)), nil
	}
	return tools.SuccessResult(string(data)), nil
}
