package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is the payload pushed to the broker.
type Message struct {
	JobID     string          `json:"jobId"`
	JobType   string          `json:"jobType"`
	Priority  int             `json:"priority"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"createdAt"`
}

// DefaultPriority returns the default queue priority for a job type, per
// the priority-defaults table: crate management is user-interactive and
// preempts background ingestion.
func DefaultPriority(jobType string) int {
	switch jobType {
	case "crate_add":
		return 4
	case "ingest":
		return 3
	default:
		return 3
	}
}

// Queue is the Redis-backed priority, multi-type FIFO list broker.
type Queue struct {
	client *redis.Client
}

// NewQueue wraps an existing redis client.
func NewQueue(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// NewQueueFromURL opens a redis client from a redis:// URL.
func NewQueueFromURL(url string) (*Queue, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
	}
	return &Queue{client: redis.NewClient(opts)}, nil
}

func queueKey(jobType string, priority int) string {
	return fmt.Sprintf("queue:%s:p%d", jobType, priority)
}

// Push pushes msg onto the left of its priority list.
func (q *Queue) Push(ctx context.Context, msg Message) error {
	if msg.Priority <= 0 {
		msg.Priority = DefaultPriority(msg.JobType)
	}
	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encoding queue message: %w", err)
	}
	key := queueKey(msg.JobType, msg.Priority)
	return q.client.LPush(ctx, key, encoded).Err()
}

// BlockingPop issues a blocking pop across the prioritized key list built
// from jobTypes x priorities 5..1, returning the decoded message from the
// first non-empty list. A zero timeout blocks indefinitely.
func (q *Queue) BlockingPop(ctx context.Context, jobTypes []string, timeout time.Duration) (*Message, error) {
	keys := make([]string, 0, len(jobTypes)*5)
	for priority := 5; priority >= 1; priority-- {
		for _, jobType := range jobTypes {
			keys = append(keys, queueKey(jobType, priority))
		}
	}

	result, err := q.client.BRPop(ctx, timeout, keys...).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	if len(result) != 2 {
		return nil, fmt.Errorf("unexpected BRPOP result shape")
	}

	var msg Message
	if err := json.Unmarshal([]byte(result[1]), &msg); err != nil {
		return nil, fmt.Errorf("decoding queue message: %w", err)
	}
	return &msg, nil
}

// Close releases the underlying redis client.
func (q *Queue) Close() error {
	return q.client.Close()
}
