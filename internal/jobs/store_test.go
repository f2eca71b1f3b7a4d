package jobs

import (
	"testing"

	"docs-mcp-server/pkg/mcptypes"
)

func TestValidTransition_SameStateIsIdempotent(t *testing.T) {
	for _, s := range []mcptypes.JobStatus{mcptypes.JobQueued, mcptypes.JobRunning, mcptypes.JobCompleted, mcptypes.JobFailed, mcptypes.JobCancelled} {
		if !validTransition(s, s) {
			t.Fatalf("validTransition(%s, %s) = false, want true", s, s)
		}
	}
}

func TestValidTransition_AllowedEdges(t *testing.T) {
	allowed := []struct {
		from, to mcptypes.JobStatus
	}{
		{mcptypes.JobQueued, mcptypes.JobRunning},
		{mcptypes.JobQueued, mcptypes.JobCancelled},
		{mcptypes.JobRunning, mcptypes.JobCompleted},
		{mcptypes.JobRunning, mcptypes.JobFailed},
		{mcptypes.JobRunning, mcptypes.JobCancelled},
	}
	for _, tt := range allowed {
		if !validTransition(tt.from, tt.to) {
			t.Fatalf("validTransition(%s, %s) = false, want true", tt.from, tt.to)
		}
	}
}

func TestValidTransition_RejectsBackwardsAndSkippedEdges(t *testing.T) {
	rejected := []struct {
		from, to mcptypes.JobStatus
	}{
		{mcptypes.JobRunning, mcptypes.JobQueued},
		{mcptypes.JobCompleted, mcptypes.JobRunning},
		{mcptypes.JobFailed, mcptypes.JobQueued},
		{mcptypes.JobCancelled, mcptypes.JobRunning},
		{mcptypes.JobQueued, mcptypes.JobCompleted},
		{mcptypes.JobQueued, mcptypes.JobFailed},
	}
	for _, tt := range rejected {
		if validTransition(tt.from, tt.to) {
			t.Fatalf("validTransition(%s, %s) = true, want false", tt.from, tt.to)
		}
	}
}
