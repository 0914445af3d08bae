package types

import "time"

// JobRecordStatus is the observability-side lifecycle of an enqueued job.
// The broker remains the source of truth for delivery.
type JobRecordStatus string

const (
	JobQueued    JobRecordStatus = "queued"
	JobRunning   JobRecordStatus = "running"
	JobCompleted JobRecordStatus = "completed"
	JobFailed    JobRecordStatus = "failed"
)

// JobRecord mirrors one published job for operator visibility.
type JobRecord struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	WorkID    string          `json:"workId,omitempty"`
	ChapterID string          `json:"chapterId,omitempty"`
	Status    JobRecordStatus `json:"status"`
	Error     string          `json:"error,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
