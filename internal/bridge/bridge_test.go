package bridge

import (
	"strings"
	"testing"
)

func TestStatusPointer(t *testing.T) {
	text := StatusPointer("job-123")
	if !strings.Contains(text, "job-123") {
		t.Fatalf("StatusPointer() = %q, want it to mention the job id", text)
	}
	if !strings.Contains(text, "check_rust_status") {
		t.Fatalf("StatusPointer() = %q, want it to point at check_rust_status", text)
	}
	if !strings.Contains(text, `"jobId": "job-123"`) {
		t.Fatalf("StatusPointer() = %q, want a well-formed jobId argument example", text)
	}
}
