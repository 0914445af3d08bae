// Package pipeline is the job-driven heart of tome: the command producer
// that the API enqueues through, the worker loop that consumes the jobs
// queue, and the stage handlers that run the per-chapter overview →
// analysis → notes cascade plus the work-level synthesis and the folder
// organizer.
//
// Delivery is at-least-once; handlers are idempotent on state. Deleting a
// work is how users cancel it: handlers re-read their entity around every
// expensive call and abort silently when it is gone.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/tomehq/tome/internal/types"
)

// JobType discriminates the jobs-queue envelope.
type JobType string

const (
	JobOverview       JobType = "overview"
	JobAnalysis       JobType = "analysis"
	JobNotes          JobType = "notes"
	JobBookAnalysis   JobType = "book_analysis"
	JobFolderOrganize JobType = "folder_organize"
)

// Job is the wire envelope published on the jobs queue. JobID correlates
// the delivery with its JobRecord; consumers ignore it when absent.
type Job struct {
	Type      JobType         `json:"type"`
	WorkID    string          `json:"workId,omitempty"`
	ChapterID string          `json:"chapterId,omitempty"`
	Stage     types.Stage     `json:"stage,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	JobID     string          `json:"jobId,omitempty"`
}

// BookAnalysisPayload parameterizes book_analysis jobs. Force runs the
// synthesis even when chapters are still outstanding.
type BookAnalysisPayload struct {
	Force bool `json:"force,omitempty"`
}

// NewStageJob builds the job for one chapter stage.
func NewStageJob(stage types.Stage, workID, chapterID string) Job {
	return Job{
		Type:      JobType(stage),
		WorkID:    workID,
		ChapterID: chapterID,
		Stage:     stage,
	}
}

// NewBookAnalysisJob builds the work-level synthesis probe.
func NewBookAnalysisJob(workID string, force bool) Job {
	job := Job{Type: JobBookAnalysis, WorkID: workID}
	if force {
		payload, _ := json.Marshal(BookAnalysisPayload{Force: true})
		job.Payload = payload
	}
	return job
}

// NewFolderOrganizeJob builds the global folder-organize job.
func NewFolderOrganizeJob() Job {
	return Job{Type: JobFolderOrganize}
}

// Encode renders the job as its wire JSON.
func (j Job) Encode() ([]byte, error) {
	data, err := json.Marshal(j)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s job: %w", j.Type, err)
	}
	return data, nil
}

// DecodeJob parses a jobs-queue delivery.
func DecodeJob(data []byte) (Job, error) {
	var j Job
	if err := json.Unmarshal(data, &j); err != nil {
		return Job{}, fmt.Errorf("failed to decode job: %w", err)
	}
	if j.Type == "" {
		return Job{}, fmt.Errorf("job missing type")
	}
	return j, nil
}

// bookAnalysisPayload parses the optional payload, defaulting force=false.
func (j Job) bookAnalysisPayload() BookAnalysisPayload {
	var p BookAnalysisPayload
	if len(j.Payload) == 0 {
		return p
	}
	// Malformed payloads degrade to a plain probe rather than failing the job.
	_ = json.Unmarshal(j.Payload, &p)
	return p
}
