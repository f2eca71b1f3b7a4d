// Package mcptypes holds the plain-data types shared across packages: the
// session record, job record, and tool descriptor shapes of the data model.
package mcptypes

import (
	"encoding/json"
	"time"
)

// ClientInfo is the optional client metadata captured on a session.
type ClientInfo struct {
	UserAgent string `json:"userAgent,omitempty"`
	Origin    string `json:"origin,omitempty"`
	PeerAddr  string `json:"peerAddress,omitempty"`
}

// Session is a server-side record identifying a client across consecutive
// requests. It is not an authentication token.
type Session struct {
	ID              string     `json:"id"`
	CreatedAt       time.Time  `json:"createdAt"`
	LastAccessed    time.Time  `json:"lastAccessed"`
	ProtocolVersion string     `json:"protocolVersion"`
	Client          ClientInfo `json:"client,omitempty"`
}

// JobStatus enumerates the job lifecycle states. Transitions are
// queued -> running -> {completed, failed, cancelled}; backward transitions
// are forbidden.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// Terminal reports whether status is one from which no further transition
// is possible.
func (s JobStatus) Terminal() bool {
	switch s {
	case JobCompleted, JobFailed, JobCancelled:
		return true
	default:
		return false
	}
}

// Job is a persistent record of an asynchronous unit of work that outlives
// a single HTTP request.
type Job struct {
	ID         string          `json:"id"`
	JobType    string          `json:"jobType"`
	Subject    string          `json:"subject"`
	Status     JobStatus       `json:"status"`
	Progress   *int            `json:"progress,omitempty"`
	Error      *string         `json:"error,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	StartedAt  time.Time       `json:"startedAt"`
	FinishedAt *time.Time      `json:"finishedAt,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// MetadataHints are the optional per-tool hints advertised in a dynamic
// tool's configuration.
type MetadataHints struct {
	SupportedFormats          []string `json:"supported_formats,omitempty"`
	SupportedComplexityLevels []string `json:"supported_complexity_levels,omitempty"`
	SupportedCategories       []string `json:"supported_categories,omitempty"`
	SupportedTopics           []string `json:"supported_topics,omitempty"`
	SupportsAPIVersion        bool     `json:"supports_api_version,omitempty"`
}

// ToolConfig is one entry of the dynamic tool configuration blob.
type ToolConfig struct {
	Name          string         `json:"name"`
	DocType       string         `json:"docType"`
	Title         string         `json:"title"`
	Description   string         `json:"description"`
	Enabled       bool           `json:"enabled"`
	MetadataHints *MetadataHints `json:"metadataHints,omitempty"`
}

// ToolConfigFile is the top-level shape of the TOOLS_CONFIG / TOOLS_CONFIG_PATH blob.
type ToolConfigFile struct {
	Tools []ToolConfig `json:"tools"`
}
