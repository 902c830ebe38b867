package registry

import (
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of an indexing run.
type RunStatus string

const (
	StatusRunning   RunStatus = "running"
	StatusCompleted RunStatus = "completed"
	StatusFailed    RunStatus = "failed"
)

// Run records one key-frame indexing run over a recording.
type Run struct {
	ID            string    `json:"id"`
	RecordingPath []string  `json:"recording_path"`
	Algorithm     string    `json:"algorithm"`
	Status        RunStatus `json:"status"`
	FrameCount    int       `json:"frame_count"`
	KeyFrames     []int     `json:"key_frames"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Error         string    `json:"error,omitempty"`
}

// NewRun creates a running run with a fresh id.
func NewRun(recordingPath []string, algorithm string) *Run {
	return &Run{
		ID:            uuid.New().String(),
		RecordingPath: recordingPath,
		Algorithm:     algorithm,
		Status:        StatusRunning,
		KeyFrames:     []int{},
		StartedAt:     time.Now().UTC(),
	}
}

// Complete marks the run successful.
func (r *Run) Complete(frameCount int, keyFrames []int) {
	r.Status = StatusCompleted
	r.FrameCount = frameCount
	r.KeyFrames = keyFrames
	r.FinishedAt = time.Now().UTC()
}

// Fail marks the run failed after frameCount frames.
func (r *Run) Fail(frameCount int, err error) {
	r.Status = StatusFailed
	r.FrameCount = frameCount
	r.Error = err.Error()
	r.FinishedAt = time.Now().UTC()
}

// Duration returns how long the run took, or has taken so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
