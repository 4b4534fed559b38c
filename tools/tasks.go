package tools

import (
	"context"
	"fmt"
	"strings"
)

// TaskSink receives tasks captured during conversation. The desktop
// build appends to the user's notes application; tests and headless
// runs supply their own sink.
type TaskSink interface {
	AddTask(ctx context.Context, task string) error
}

// TaskSinkFunc adapts a function to the TaskSink interface
type TaskSinkFunc func(ctx context.Context, task string) error

func (f TaskSinkFunc) AddTask(ctx context.Context, task string) error {
	return f(ctx, task)
}

// AddTaskTool forwards a task the user mentioned to the task sink
type AddTaskTool struct {
	sink TaskSink
}

// NewAddTaskTool creates the add_task_to_notes tool
func NewAddTaskTool(sink TaskSink) *AddTaskTool {
	return &AddTaskTool{sink: sink}
}

func (t *AddTaskTool) Name() string {
	return "add_task_to_notes"
}

func (t *AddTaskTool) Description() string {
	return "Add a task to the user's notes. Use when the user asks to be reminded of something or mentions something they need to do."
}

func (t *AddTaskTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"task": map[string]interface{}{
				"type":        "string",
				"description": "The task, phrased as an actionable item",
			},
		},
		"required": []string{"task"},
	}
}

func (t *AddTaskTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	task, err := StringArg(args, "task")
	if err != nil {
		return "", err
	}
	task = strings.TrimSpace(task)
	if task == "" {
		return "", NewToolError("invalid_argument", "task must not be empty")
	}
	if err := t.sink.AddTask(ctx, task); err != nil {
		return "", fmt.Errorf("failed to add task: %w", err)
	}
	return fmt.Sprintf("Task added to notes: %s", task), nil
}
