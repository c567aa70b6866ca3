// Package extract turns uploaded files into plain text.
//
// Supported media types:
//   - text/plain: passthrough
//   - application/vnd.openxmlformats-officedocument.wordprocessingml.document (.docx)
//   - application/msword (.doc, OLE2 compound file; zipped .docx content is also accepted)
//   - application/pdf: page content streams via pdfcpu
package extract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
)

var (
	// ErrUnsupportedFileType is matched by every UnsupportedFileTypeError.
	ErrUnsupportedFileType = errors.New("unsupported file type")
	// ErrExtractionFailed wraps any I/O or parse failure.
	ErrExtractionFailed = errors.New("failed to extract text from document")
)

// UnsupportedFileTypeError identifies the media type that was received.
type UnsupportedFileTypeError struct {
	MediaType string
}

func (e *UnsupportedFileTypeError) Error() string {
	return fmt.Sprintf("unsupported file type: %s", e.MediaType)
}

func (e *UnsupportedFileTypeError) Unwrap() error { return ErrUnsupportedFileType }

type Config struct {
	// MaxFileSize caps the bytes read from disk (default: 50 MB).
	MaxFileSize int64
}

// Result is the text pulled out of one file.
type Result struct {
	Text      string
	WordCount int
	Pages     int
	Method    string // "text" | "docx" | "doc" | "pdf"
	Duration  time.Duration
}

// Extractor picks a strategy based on the declared media type.
type Extractor struct {
	cfg    Config
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = 50 << 20
	}
	return &Extractor{cfg: cfg, logger: logger}
}

// Supports reports whether mediaType has an extraction strategy.
func Supports(mediaType string) bool {
	switch constants.NormalizeMediaType(mediaType) {
	case constants.MediaTypeText, constants.MediaTypeDocx, constants.MediaTypeDoc, constants.MediaTypePDF:
		return true
	}
	return false
}

// Extract reads path as mediaType and returns trimmed text and its word count.
// A file whose text trims to empty yields WordCount == 0 and no error; callers reject it.
func (e *Extractor) Extract(ctx context.Context, path, mediaType string) (res Result, err error) {
	start := time.Now()
	mt := constants.NormalizeMediaType(mediaType)
	if !Supports(mt) {
		e.logger.Warn("unsupported media type", "path", path, "media_type", mediaType)
		return Result{}, &UnsupportedFileTypeError{MediaType: mediaType}
	}
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	// Third-party parsers must never take the process down on a malformed file.
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extractor panic recovered", "path", path, "media_type", mt, "panic", r)
			res = Result{}
			err = fmt.Errorf("%w: parser panic: %v", ErrExtractionFailed, r)
		}
	}()

	info, err := os.Stat(path)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}
	if info.Size() > e.cfg.MaxFileSize {
		return Result{}, fmt.Errorf("%w: file too large: %d bytes (max %d)", ErrExtractionFailed, info.Size(), e.cfg.MaxFileSize)
	}

	e.logger.Debug("starting text extraction", "path", path, "media_type", mt, "bytes", info.Size())

	var text string
	var pages int
	switch mt {
	case constants.MediaTypeText:
		res.Method = "text"
		text, err = readPlainText(path)
	case constants.MediaTypeDocx:
		res.Method = "docx"
		text, err = readDocx(path)
	case constants.MediaTypeDoc:
		res.Method = "doc"
		text, err = readWordDoc(path)
	case constants.MediaTypePDF:
		res.Method = "pdf"
		text, pages, err = readPDF(path)
	}
	if err != nil {
		e.logger.Error("text extraction failed", "path", path, "media_type", mt, "error", err)
		return Result{}, fmt.Errorf("%w: %w", ErrExtractionFailed, err)
	}

	res.Text = strings.TrimSpace(text)
	res.WordCount = CountWords(res.Text)
	res.Pages = pages
	res.Duration = time.Since(start)

	e.logger.Info("text extracted",
		"path", path,
		"method", res.Method,
		"words", res.WordCount,
		"pages", res.Pages,
		"duration_ms", res.Duration.Milliseconds(),
	)
	return res, nil
}

// CountWords counts whitespace-delimited tokens after trimming. Empty text counts zero.
func CountWords(text string) int {
	return len(strings.Fields(text))
}
