package metrics

import (
	"time"

	"github.com/google/uuid"

	"github.com/tomehq/tome/internal/defra"
)

// Recorder captures model calls fire-and-forget through the store's write
// sink. A nil Recorder drops records, so callers never guard.
type Recorder struct {
	sink *defra.Sink
}

// NewRecorder returns a recorder writing to the ModelCall collection.
func NewRecorder(sink *defra.Sink) *Recorder {
	return &Recorder{sink: sink}
}

// Record queues one call for batched persistence. Non-blocking.
func (r *Recorder) Record(call ModelCall) {
	if r == nil || r.sink == nil {
		return
	}
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now().UTC()
	}
	r.sink.Send(defra.WriteOp{
		Op:         defra.OpCreate,
		Collection: "ModelCall",
		Document:   call.ToMap(),
	})
}
