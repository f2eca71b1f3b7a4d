package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestDefaultPriority(t *testing.T) {
	tests := []struct {
		jobType string
		want    int
	}{
		{"crate_add", 4},
		{"ingest", 3},
		{"unknown_type", 3},
	}
	for _, tt := range tests {
		if got := DefaultPriority(tt.jobType); got != tt.want {
			t.Fatalf("DefaultPriority(%q) = %d, want %d", tt.jobType, got, tt.want)
		}
	}
}

func TestQueueKey(t *testing.T) {
	if got := queueKey("ingest", 3); got != "queue:ingest:p3" {
		t.Fatalf("queueKey() = %q", got)
	}
}

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewQueue(client)
}

func TestQueue_PushAndBlockingPop(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	msg := Message{JobID: "job-1", JobType: "ingest", Payload: json.RawMessage(`{"repoUrl":"https://example.com/repo"}`)}
	if err := q.Push(ctx, msg); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}

	got, err := q.BlockingPop(ctx, []string{"ingest", "crate_add"}, time.Second)
	if err != nil {
		t.Fatalf("BlockingPop returned error: %v", err)
	}
	if got == nil {
		t.Fatalf("BlockingPop returned nil message")
	}
	if got.JobID != "job-1" || got.JobType != "ingest" {
		t.Fatalf("unexpected message: %+v", got)
	}
	if got.Priority != DefaultPriority("ingest") {
		t.Fatalf("Priority = %d, want default %d", got.Priority, DefaultPriority("ingest"))
	}
}

func TestQueue_BlockingPop_HigherPriorityFirst(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Push(ctx, Message{JobID: "ingest-job", JobType: "ingest"}); err != nil {
		t.Fatalf("Push ingest job failed: %v", err)
	}
	if err := q.Push(ctx, Message{JobID: "crate-job", JobType: "crate_add"}); err != nil {
		t.Fatalf("Push crate_add job failed: %v", err)
	}

	got, err := q.BlockingPop(ctx, []string{"ingest", "crate_add"}, time.Second)
	if err != nil {
		t.Fatalf("BlockingPop returned error: %v", err)
	}
	if got == nil || got.JobID != "crate-job" {
		t.Fatalf("expected the higher-priority crate_add job first, got %+v", got)
	}
}

func TestQueue_BlockingPop_TimeoutReturnsNil(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	got, err := q.BlockingPop(ctx, []string{"ingest"}, 100*time.Millisecond)
	if err != nil {
		t.Fatalf("BlockingPop returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil message on timeout, got %+v", got)
	}
}

func TestQueue_Push_AssignsDefaultPriority(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()

	if err := q.Push(ctx, Message{JobID: "j", JobType: "crate_add", Priority: 0}); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}
	got, err := q.BlockingPop(ctx, []string{"crate_add"}, time.Second)
	if err != nil {
		t.Fatalf("BlockingPop returned error: %v", err)
	}
	if got == nil || got.Priority != 4 {
		t.Fatalf("expected default priority 4 for crate_add, got %+v", got)
	}
}
