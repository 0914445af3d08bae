// Package events defines the wire-level lifecycle events published by the
// worker and fanned out to UI subscribers by the API process, plus the
// per-work Hub that does the fan-out.
package events

import (
	"encoding/json"
	"fmt"

	"github.com/tomehq/tome/internal/types"
)

// Type discriminates the event envelope.
type Type string

const (
	TypeStageStatus       Type = "stageStatus"
	TypeOverviewStream    Type = "overviewStream"
	TypeChapterDone       Type = "chapterDone"
	TypeChapterFinalized  Type = "chapterFinalized"
	TypeBookDone          Type = "bookDone"
	TypeFoldersProcessing Type = "foldersProcessing"
	TypeFoldersProgress   Type = "foldersProgress"
	TypeFoldersDone       Type = "foldersDone"
	TypeFoldersError      Type = "foldersError"
	TypeStatus            Type = "status"
	TypeError             Type = "error"
)

// Event is the JSON envelope carried on the events exchange. Fields are
// populated per type; everything except Type is optional on the wire.
// Events are progress signals, not an audit log: consumers reconcile
// state by reading entities, never by replaying the stream.
type Event struct {
	Type      Type              `json:"type"`
	WorkID    string            `json:"workId,omitempty"`
	ChapterID string            `json:"chapterId,omitempty"`
	Stage     types.Stage       `json:"stage,omitempty"`
	Status    types.StageStatus `json:"status,omitempty"`
	Content   string            `json:"content,omitempty"`
	Summary   *types.Summary    `json:"summary,omitempty"`
	Work      *types.Work       `json:"work,omitempty"`
	Current   int               `json:"current,omitempty"`
	Total     int               `json:"total,omitempty"`
	Folders   []types.Folder    `json:"folders,omitempty"`
	Message   string            `json:"message,omitempty"`
	Error     string            `json:"error,omitempty"`
}

// Encode renders the event as its wire JSON.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s event: %w", e.Type, err)
	}
	return data, nil
}

// Decode parses a wire envelope.
func Decode(data []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return e, nil
}

// StageStatus reports a stage transition on a chapter.
func StageStatus(workID, chapterID string, stage types.Stage, status types.StageStatus) Event {
	return Event{Type: TypeStageStatus, WorkID: workID, ChapterID: chapterID, Stage: stage, Status: status}
}

// OverviewStream carries cumulative overview text for a chapter while the
// overview stage is generating.
func OverviewStream(workID, chapterID, content string) Event {
	return Event{Type: TypeOverviewStream, WorkID: workID, ChapterID: chapterID, Content: content}
}

// ChapterDone announces that a chapter's analysis has been merged into its
// summary and carries the merged document for immediate display.
func ChapterDone(workID, chapterID string, summary *types.Summary) Event {
	return Event{Type: TypeChapterDone, WorkID: workID, ChapterID: chapterID, Summary: summary}
}

// ChapterFinalized announces that the notes stage completed for a chapter.
func ChapterFinalized(workID, chapterID string) Event {
	return Event{Type: TypeChapterFinalized, WorkID: workID, ChapterID: chapterID}
}

// BookDone announces that the work-level analysis was written.
func BookDone(workID string, work *types.Work) Event {
	return Event{Type: TypeBookDone, WorkID: workID, Work: work}
}

// FoldersProcessing announces that an organize job was accepted.
func FoldersProcessing(message string) Event {
	return Event{Type: TypeFoldersProcessing, Message: message}
}

// FoldersProgress reports one persisted organize batch.
func FoldersProgress(current, total int, folders []types.Folder, message string) Event {
	return Event{Type: TypeFoldersProgress, Current: current, Total: total, Folders: folders, Message: message}
}

// FoldersDone reports organize completion with the final folder set.
func FoldersDone(folders []types.Folder, message string) Event {
	return Event{Type: TypeFoldersDone, Folders: folders, Message: message}
}

// FoldersError reports an aborted organize run.
func FoldersError(reason string) Event {
	return Event{Type: TypeFoldersError, Error: reason}
}

// Status carries a free-form progress tag for a work.
func Status(workID, message string) Event {
	return Event{Type: TypeStatus, WorkID: workID, Message: message}
}

// Failure reports a stage or work error. chapterID and stage may be empty
// for work-level failures.
func Failure(workID, chapterID string, stage types.Stage, message string) Event {
	return Event{Type: TypeError, WorkID: workID, ChapterID: chapterID, Stage: stage, Message: message}
}
