package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"docs-mcp-server/internal/docsengine"
	"docs-mcp-server/pkg/mcptypes"
)

// crateAddDocumentSources names the per-crate documents embedded by a
// crate_add job. Each is embedded in its own batch so the calls can run
// concurrently, bounded by maxConcurrentEmbedBatches.
var crateAddDocumentSources = []string{"README", "API docs", "CHANGELOG", "examples"}

// maxConcurrentEmbedBatches bounds how many Embed calls a single crate_add
// job runs at once, so a crate with many document sources doesn't open an
// unbounded number of concurrent calls against the embedding provider.
const maxConcurrentEmbedBatches = 2

// WorkerConfig configures the standalone worker loop. Zero-valued
// fields are defaulted in NewWorker via a constructor-level defaulting
// cascade.
type WorkerConfig struct {
	JobTypes     []string
	PopTimeout   time.Duration
	ReconnectGap time.Duration
}

func (c *WorkerConfig) applyDefaults() {
	if len(c.JobTypes) == 0 {
		c.JobTypes = []string{"ingest", "crate_add"}
	}
	if c.PopTimeout <= 0 {
		c.PopTimeout = 5 * time.Second
	}
	if c.ReconnectGap <= 0 {
		c.ReconnectGap = 2 * time.Second
	}
}

// IngestPayload is the decoded payload for an "ingest" job.
type IngestPayload struct {
	RepoURL string `json:"repoUrl"`
}

// CrateAddPayload is the decoded payload for a "crate_add" job.
type CrateAddPayload struct {
	CrateName string `json:"crateName"`
}

// Worker pops messages from a Queue, marks the corresponding row running in
// a Store, and dispatches to a typed handler per job type.
type Worker struct {
	cfg      WorkerConfig
	store    *Store
	queue    *Queue
	analyzer docsengine.RepoAnalyzer
	embedder docsengine.EmbeddingProvider
}

// NewWorker constructs a Worker, defaulting unset config fields.
func NewWorker(cfg WorkerConfig, store *Store, queue *Queue, analyzer docsengine.RepoAnalyzer, embedder docsengine.EmbeddingProvider) *Worker {
	cfg.applyDefaults()
	return &Worker{cfg: cfg, store: store, queue: queue, analyzer: analyzer, embedder: embedder}
}

func (w *Worker) logf(level slog.Level, jobID, msg string, args ...any) {
	attrs := append([]any{"job_id", jobID}, args...)
	slog.Log(context.Background(), level, msg, attrs...)
}

// Run is the main loop: blocking pop, decode, mark running, dispatch, mark
// terminal. It blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("worker loop stopping")
			return
		default:
		}

		msg, err := w.queue.BlockingPop(ctx, w.cfg.JobTypes, w.cfg.PopTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("broker pop failed, pausing before retry", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.cfg.ReconnectGap):
			}
			continue
		}
		if msg == nil {
			continue // pop timed out with nothing available; poll again
		}

		w.processJob(ctx, msg)
	}
}

func (w *Worker) processJob(ctx context.Context, msg *Message) {
	w.logf(slog.LevelInfo, msg.JobID, "job picked up", "job_type", msg.JobType)

	if err := w.store.UpdateStatus(ctx, msg.JobID, mcptypes.JobRunning, nil, nil); err != nil {
		w.logf(slog.LevelError, msg.JobID, "failed to mark job running", "error", err)
		return
	}

	var runErr error
	switch msg.JobType {
	case "ingest":
		runErr = w.runIngest(ctx, msg)
	case "crate_add":
		runErr = w.runCrateAdd(ctx, msg)
	default:
		runErr = fmt.Errorf("unknown job type %q", msg.JobType)
	}

	if runErr != nil {
		errText := runErr.Error()
		w.logf(slog.LevelError, msg.JobID, "job failed", "error", runErr)
		if err := w.store.UpdateStatus(ctx, msg.JobID, mcptypes.JobFailed, nil, &errText); err != nil {
			w.logf(slog.LevelError, msg.JobID, "failed to mark job failed", "error", err)
		}
		return
	}

	full := 100
	if err := w.store.UpdateStatus(ctx, msg.JobID, mcptypes.JobCompleted, &full, nil); err != nil {
		w.logf(slog.LevelError, msg.JobID, "failed to mark job completed", "error", err)
		return
	}
	w.logf(slog.LevelInfo, msg.JobID, "job completed")
}

// runIngest calls the repository analyzer and reports progress once per
// step of the returned plan. It does not run the plan's shell steps, and it
// collects and stores no step output.
func (w *Worker) runIngest(ctx context.Context, msg *Message) error {
	var payload IngestPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decoding ingest payload: %w", err)
	}

	steps, err := w.analyzer.Plan(ctx, payload.RepoURL)
	if err != nil {
		return fmt.Errorf("planning ingest for %q: %w", payload.RepoURL, err)
	}

	for i, step := range steps {
		w.logf(slog.LevelDebug, msg.JobID, "ingest step", "index", i, "description", step.Description)
		progress := (i + 1) * 100 / max(len(steps), 1)
		if err := w.store.UpdateStatus(ctx, msg.JobID, mcptypes.JobRunning, &progress, nil); err != nil {
			return fmt.Errorf("reporting ingest progress: %w", err)
		}
	}
	return nil
}

// runCrateAdd fetches crate metadata (delegated to the embedder's caller,
// not modeled here), embeds each document source in its own batch
// concurrently (bounded by maxConcurrentEmbedBatches), and reports
// progress as batches complete.
func (w *Worker) runCrateAdd(ctx context.Context, msg *Message) error {
	var payload CrateAddPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("decoding crate_add payload: %w", err)
	}
	if payload.CrateName == "" {
		return fmt.Errorf("crate_add payload missing crateName")
	}

	vectors := make([][]float32, len(crateAddDocumentSources))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentEmbedBatches)
	for i, source := range crateAddDocumentSources {
		g.Go(func() error {
			batch := []string{payload.CrateName + " " + source}
			vecs, err := w.embedder.Embed(gctx, batch)
			if err != nil {
				return fmt.Errorf("embedding crate %q %s: %w", payload.CrateName, source, err)
			}
			vectors[i] = vecs[0]

			done := completed.Add(1)
			progress := int(done) * 100 / len(crateAddDocumentSources)
			if err := w.store.UpdateStatus(gctx, msg.JobID, mcptypes.JobRunning, &progress, nil); err != nil {
				return fmt.Errorf("reporting crate_add progress: %w", err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w.logf(slog.LevelDebug, msg.JobID, "crate_add embedded document batches", "count", len(vectors))
	return nil
}
