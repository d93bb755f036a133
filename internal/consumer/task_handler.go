package consumer

import (
	"context"

	"example.com/stravasync/internal/dispatch"
)

// TaskHandler runs decoded tasks synchronously so the offset is committed only after
// the work finished.
type TaskHandler struct {
	runner dispatch.TaskRunner
}

// NewTaskHandler constructs a TaskHandler.
func NewTaskHandler(runner dispatch.TaskRunner) *TaskHandler {
	return &TaskHandler{runner: runner}
}

// Handle executes the task carried by msg.
func (h *TaskHandler) Handle(ctx context.Context, msg Message) error {
	return h.runner.Run(ctx, msg.Task)
}
