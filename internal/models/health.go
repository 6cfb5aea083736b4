package models

import "time"

// Pagination is the metadata returned with paginated lists
type Pagination struct {
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// Paginated wraps a page of results
type Paginated[T any] struct {
	Data       []T        `json:"data"`
	Pagination Pagination `json:"pagination"`
}

// JobStatus is the latest recorded run of one ingestion job
type JobStatus struct {
	Job            string    `json:"job"`
	RunID          string    `json:"runId"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	RecordsWritten int       `json:"recordsWritten"`
	RecordsSkipped int       `json:"recordsSkipped"`
	Error          *string   `json:"error,omitempty"`
}

// Health is the JSON body of GET /health
type Health struct {
	Status    string      `json:"status"`   // "ok" or "error"
	Database  string      `json:"database"` // "connected" or "disconnected"
	Timestamp time.Time   `json:"timestamp"`
	Jobs      []JobStatus `json:"jobs,omitempty"`
	Error     string      `json:"error,omitempty"`
}
