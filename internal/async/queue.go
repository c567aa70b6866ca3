package async

import (
	"context"
	"errors"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
)

var (
	// ErrQueueClosed is returned by Enqueue once Shutdown has started.
	ErrQueueClosed = errors.New("queue is shutting down")
	// ErrQueueFull is returned by Enqueue when every buffer slot is taken.
	ErrQueueFull = errors.New("queue is full")
)

// Job carries everything a background rewrite needs. It holds the document id and
// a copy of its text, never a reference to the stored record.
type Job struct {
	DocumentID  int64
	Text        string
	Style       constants.WritingStyle
	SubmittedAt time.Time
	TraceID     string
}

// Queue schedules jobs for background processing. Enqueue never waits for a free slot.
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	// Shutdown returns once no job is running. A non-nil error means ctx ended
	// before the backlog drained and the remaining jobs were canceled.
	Shutdown(ctx context.Context) error
}

// Handler runs one job to completion. The context carries the per-job deadline.
type Handler interface {
	Process(ctx context.Context, job Job) error
}
