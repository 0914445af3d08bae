package pipeline

import (
	"encoding/json"
	"testing"

	"github.com/tomehq/tome/internal/types"
)

func TestJobEncodeDecodeRoundTrip(t *testing.T) {
	job := NewStageJob(types.StageAnalysis, "w1", "c1")
	job.JobID = "rec-1"

	body, err := job.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeJob(body)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if got.Type != JobAnalysis || got.WorkID != "w1" || got.ChapterID != "c1" {
		t.Fatalf("decoded job = %+v", got)
	}
	if got.Stage != types.StageAnalysis {
		t.Fatalf("stage = %q, want analysis", got.Stage)
	}
	if got.JobID != "rec-1" {
		t.Fatalf("jobId = %q, want rec-1", got.JobID)
	}
}

func TestDecodeJobValidation(t *testing.T) {
	if _, err := DecodeJob([]byte(`{}`)); err == nil {
		t.Fatal("expected error for missing type")
	}
	if _, err := DecodeJob([]byte(`{"type":`)); err == nil {
		t.Fatal("expected error for truncated JSON")
	}
}

func TestNewStageJobTypes(t *testing.T) {
	tests := []struct {
		stage types.Stage
		want  JobType
	}{
		{types.StageOverview, JobOverview},
		{types.StageAnalysis, JobAnalysis},
		{types.StageNotes, JobNotes},
	}
	for _, tt := range tests {
		if got := NewStageJob(tt.stage, "w", "c").Type; got != tt.want {
			t.Errorf("NewStageJob(%s).Type = %q, want %q", tt.stage, got, tt.want)
		}
	}
}

func TestBookAnalysisPayload(t *testing.T) {
	plain := NewBookAnalysisJob("w1", false)
	if plain.Payload != nil {
		t.Fatalf("plain probe carries payload %s", plain.Payload)
	}
	if plain.bookAnalysisPayload().Force {
		t.Fatal("plain probe decoded as forced")
	}

	forced := NewBookAnalysisJob("w1", true)
	body, err := forced.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := DecodeJob(body)
	if err != nil {
		t.Fatalf("DecodeJob: %v", err)
	}
	if !decoded.bookAnalysisPayload().Force {
		t.Fatal("force flag lost in transit")
	}

	// A payload the worker cannot parse degrades to a plain probe.
	mangled := Job{Type: JobBookAnalysis, WorkID: "w1", Payload: json.RawMessage(`{"force":`)}
	if mangled.bookAnalysisPayload().Force {
		t.Fatal("malformed payload decoded as forced")
	}
}

func TestNewFolderOrganizeJob(t *testing.T) {
	job := NewFolderOrganizeJob()
	if job.Type != JobFolderOrganize {
		t.Fatalf("type = %q, want folder_organize", job.Type)
	}
	if job.WorkID != "" || job.ChapterID != "" {
		t.Fatalf("organize job unexpectedly scoped: %+v", job)
	}
}
