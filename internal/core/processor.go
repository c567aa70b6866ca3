package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/async"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/entity"
	"github.com/joseph-ayodele/docrefine/internal/extract"
	"github.com/joseph-ayodele/docrefine/internal/llm"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

// Client-facing submission errors. Each unwraps to common.ErrValidation.
var (
	ErrMissingFile   = common.NewAppError("MISSING_FILE", "No file uploaded", common.ErrValidation)
	ErrInvalidStyle  = common.NewAppError("INVALID_STYLE", "Invalid writing style", common.ErrValidation)
	ErrEmptyDocument = common.NewAppError("EMPTY_DOCUMENT", "Document appears to be empty", common.ErrValidation)
)

// ErrBusy is returned by Submit when the background queue cannot take another document.
// No record is left behind.
var ErrBusy = common.NewAppError("BUSY", "Server is busy processing other documents, try again later", common.ErrUnavailable)

// fullReporter is implemented by queues that can report saturation up front.
type fullReporter interface {
	Full() bool
}

// statusWriteTimeout bounds the final status write, which runs even after the job deadline.
const statusWriteTimeout = 10 * time.Second

// TextExtractor is Stage 1: file -> text.
type TextExtractor interface {
	Extract(ctx context.Context, path, mediaType string) (extract.Result, error)
}

// Upload describes one file handed to Submit.
type Upload struct {
	Path         string
	OriginalName string
	MediaType    string // declared type; resolved from the extension when empty or generic
	Size         int64
	Style        string
	// Temporary files are removed on every exit path of Submit.
	Temporary bool
}

// Processor accepts uploads, extracts text, records them and schedules the rewrite.
type Processor struct {
	logger         *slog.Logger
	extractor      TextExtractor
	rewriter       llm.Rewriter
	repo           repository.DocumentRepository
	processTimeout time.Duration

	mu    sync.RWMutex
	queue async.Queue
	wg    sync.WaitGroup
}

var _ async.Handler = (*Processor)(nil)

func NewProcessor(
	logger *slog.Logger,
	extractor TextExtractor,
	rewriter llm.Rewriter,
	repo repository.DocumentRepository,
	processTimeout time.Duration,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if processTimeout <= 0 {
		processTimeout = 3 * time.Minute
	}
	return &Processor{
		logger:         logger,
		extractor:      extractor,
		rewriter:       rewriter,
		repo:           repo,
		processTimeout: processTimeout,
	}
}

// SetQueue routes background work through q. Without a queue every accepted
// document gets its own goroutine.
func (p *Processor) SetQueue(q async.Queue) {
	p.mu.Lock()
	p.queue = q
	p.mu.Unlock()
}

// Submit validates, extracts and records the upload, then schedules the rewrite and
// returns without waiting for it. The returned document is in processing state.
func (p *Processor) Submit(ctx context.Context, up Upload) (*entity.Document, error) {
	p.mu.RLock()
	q := p.queue
	p.mu.RUnlock()

	if fr, ok := q.(fullReporter); ok && fr.Full() {
		if up.Temporary && up.Path != "" {
			p.removeFile(up.Path)
		}
		p.logger.Warn("processor.submit.busy", "name", up.OriginalName)
		return nil, ErrBusy
	}

	doc, job, err := p.accept(ctx, up)
	if err != nil {
		return nil, err
	}

	if q == nil {
		p.detach(job)
		return doc, nil
	}
	if err := q.Enqueue(ctx, job); err != nil {
		// the slot went away after the check above; withdraw the record
		p.logger.Error("processor.enqueue.failed", "document_id", doc.ID, "error", err)
		dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
		defer cancel()
		if derr := p.repo.Delete(dctx, doc.ID); derr != nil {
			p.logger.Error("processor.enqueue.withdraw_failed", "document_id", doc.ID, "error", derr)
			p.markFailed(ctx, doc.ID)
		}
		if errors.Is(err, async.ErrQueueFull) || errors.Is(err, async.ErrQueueClosed) {
			return nil, ErrBusy
		}
		return nil, err
	}
	return doc, nil
}

// Run is the synchronous form of Submit: it rewrites in the caller's goroutine and
// returns the document in its terminal state.
func (p *Processor) Run(ctx context.Context, up Upload) (*entity.Document, error) {
	doc, job, err := p.accept(ctx, up)
	if err != nil {
		return nil, err
	}
	jobCtx, cancel := context.WithTimeout(ctx, p.processTimeout)
	defer cancel()
	_ = p.Process(jobCtx, job)
	return p.repo.Get(context.WithoutCancel(ctx), doc.ID)
}

// Wait blocks until detached goroutines started by Submit have finished or ctx is done.
func (p *Processor) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() { p.wg.Wait(); close(done) }()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Processor) accept(ctx context.Context, up Upload) (*entity.Document, async.Job, error) {
	if up.Temporary && up.Path != "" {
		defer p.removeFile(up.Path)
	}

	// style is checked first so a bad value never costs an extraction
	style, ok := constants.ParseStyle(up.Style)
	if !ok {
		p.logger.Warn("processor.submit.invalid_style", "style", up.Style)
		return nil, async.Job{}, ErrInvalidStyle
	}
	if up.Path == "" {
		return nil, async.Job{}, ErrMissingFile
	}

	mediaType := constants.ResolveMediaType(up.MediaType, filepath.Ext(up.OriginalName))
	res, err := p.extractor.Extract(ctx, up.Path, mediaType)
	if err != nil {
		return nil, async.Job{}, extractionError(err, mediaType)
	}
	if res.WordCount == 0 {
		p.logger.Warn("processor.submit.empty_document", "name", up.OriginalName, "media_type", mediaType)
		return nil, async.Job{}, ErrEmptyDocument
	}

	doc, err := p.repo.Create(ctx, entity.NewDocument{
		OriginalName:    up.OriginalName,
		FileType:        mediaType,
		FileSize:        up.Size,
		OriginalContent: res.Text,
		WritingStyle:    style,
	})
	if err != nil {
		p.logger.Error("processor.submit.create_failed", "name", up.OriginalName, "error", err)
		return nil, async.Job{}, err
	}

	p.logger.Info("processor.submit.accepted",
		"document_id", doc.ID,
		"name", up.OriginalName,
		"media_type", mediaType,
		"style", style,
		"words", res.WordCount,
	)
	job := async.Job{
		DocumentID:  doc.ID,
		Text:        res.Text,
		Style:       style,
		SubmittedAt: time.Now(),
		TraceID:     common.RequestIDFromContext(ctx),
	}
	return doc, job, nil
}

func extractionError(err error, mediaType string) error {
	var unsupported *extract.UnsupportedFileTypeError
	if errors.As(err, &unsupported) {
		return common.NewAppError("UNSUPPORTED_FILE_TYPE",
			"Unsupported file type: "+mediaType,
			fmt.Errorf("%w: %w", common.ErrInvalidInput, err))
	}
	return common.NewAppError("EXTRACTION_FAILED",
		"Failed to extract text from document",
		fmt.Errorf("%w: %w", common.ErrInternal, err))
}

func (p *Processor) detach(job async.Job) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), p.processTimeout)
		defer cancel()
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("processing failed", "document_id", job.DocumentID, "error", err)
		}
	}()
}

// Process rewrites the job's text and writes exactly one terminal update:
// completed with content and counters, or failed with neither.
func (p *Processor) Process(ctx context.Context, job async.Job) (err error) {
	start := time.Now()
	ctx = common.WithDocumentID(ctx, job.DocumentID)
	p.logger.Info("processor.rewrite.start", "document_id", job.DocumentID, "style", job.Style, "trace_id", job.TraceID)

	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("processor.rewrite.panic", "document_id", job.DocumentID, "panic", r)
			p.markFailed(ctx, job.DocumentID)
			err = fmt.Errorf("%w: panic: %v", llm.ErrRewriteFailed, r)
		}
	}()

	res, err := p.rewriter.Rewrite(ctx, job.Text, job.Style)
	if err != nil {
		p.logger.Error("processor.rewrite.failed",
			"document_id", job.DocumentID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds())
		p.markFailed(ctx, job.DocumentID)
		return err
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if _, err := p.repo.Update(wctx, job.DocumentID, entity.CompletedPatch(res.CorrectedText, res.Corrections)); err != nil {
		p.logger.Error("processor.rewrite.store_failed", "document_id", job.DocumentID, "error", err)
		if !errors.Is(err, repository.ErrNotFound) {
			p.markFailed(ctx, job.DocumentID)
		}
		return err
	}

	p.logger.Info("processor.rewrite.completed",
		"document_id", job.DocumentID,
		"grammar", res.Corrections.Grammar,
		"style", res.Corrections.Style,
		"clarity", res.Corrections.Clarity,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (p *Processor) markFailed(ctx context.Context, id int64) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusWriteTimeout)
	defer cancel()
	if _, err := p.repo.Update(wctx, id, entity.FailedPatch()); err != nil {
		p.logger.Error("processor.mark_failed.error", "document_id", id, "error", err)
		return
	}
	p.logger.Warn("document marked failed", "document_id", id)
}

func (p *Processor) removeFile(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		p.logger.Warn("failed to remove uploaded file", "path", path, "error", err)
	}
}
