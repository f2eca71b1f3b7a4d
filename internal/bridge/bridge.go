// Package bridge implements the tool->job bridge: the single entry
// point every long-running tool uses to enqueue work instead of running it
// synchronously.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docs-mcp-server/internal/jobs"
)

// Enqueue validates nothing itself (callers validate against their own
// schema first); it creates the job row, pushes the
// broker message, and returns the real job id created by the store. It
// never fabricates or accepts a client-supplied id.
func Enqueue(ctx context.Context, store *jobs.Store, queue *jobs.Queue, jobType, subject string, payload json.RawMessage, priority int) (string, error) {
	jobID, err := store.Create(ctx, jobType, subject, payload)
	if err != nil {
		return "", fmt.Errorf("creating job: %w", err)
	}

	if priority <= 0 {
		priority = jobs.DefaultPriority(jobType)
	}

	if queue != nil {
		msg := jobs.Message{
			JobID:     jobID,
			JobType:   jobType,
			Priority:  priority,
			Payload:   payload,
			CreatedAt: time.Now().UTC(),
		}
		if err := queue.Push(ctx, msg); err != nil {
			// The DB row remains the source of truth;
			// a lost broker message does not lose the job itself.
			return jobID, fmt.Errorf("pushing queue message (job %s remains queued in the store): %w", jobID, err)
		}
	}

	return jobID, nil
}

// StatusPointer renders the human-readable text every bridge-enqueuing tool
// must return: the job id plus a pointer to the status tool.
func StatusPointer(jobID string) string {
	return fmt.Sprintf("Job %s queued. Check progress with check_rust_status {\"jobId\": %q}.", jobID, jobID)
}
