package export

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/entity"
	"github.com/joseph-ayodele/docrefine/internal/repository"
)

// ErrNotReady is returned when a download is requested before the rewrite completed.
var ErrNotReady = common.NewAppError("NOT_READY", "Document processing not completed", common.ErrValidation)

// Artifact is a rendered file ready to be served.
type Artifact struct {
	Filename    string
	ContentType string
	Body        []byte
}

// Service is a tiny façade over the document repository that produces downloadable artifacts.
type Service struct {
	repo   repository.DocumentRepository
	logger *slog.Logger
}

func NewService(repo repository.DocumentRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, logger: logger}
}

// Download renders the corrected text of a completed document.
func (s *Service) Download(ctx context.Context, id int64) (Artifact, error) {
	doc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Artifact{}, err
	}
	a, err := RenderCorrected(doc)
	if err != nil {
		s.logger.Warn("export.download.not_ready", "document_id", id, "status", doc.Status)
		return Artifact{}, err
	}
	s.logger.Info("export.download.ok", "document_id", id, "bytes", len(a.Body))
	return a, nil
}

// RenderCorrected builds the plain-text download for doc:
//
//	ORIGINAL DOCUMENT: <name>
//
//	CORRECTED VERSION:
//
//	<corrected text>
func RenderCorrected(doc *entity.Document) (Artifact, error) {
	if doc.Status != constants.StatusCompleted || doc.CorrectedContent == nil {
		return Artifact{}, ErrNotReady
	}
	var b strings.Builder
	b.WriteString("ORIGINAL DOCUMENT: ")
	b.WriteString(doc.OriginalName)
	b.WriteString("\n\nCORRECTED VERSION:\n\n")
	b.WriteString(*doc.CorrectedContent)
	return Artifact{
		Filename:    CorrectedFilename(doc.OriginalName),
		ContentType: "text/plain; charset=utf-8",
		Body:        []byte(b.String()),
	}, nil
}

// CorrectedFilename returns corrected_<name without its last extension>.txt.
func CorrectedFilename(originalName string) string {
	base := path.Base(strings.ReplaceAll(originalName, "\\", "/"))
	if base == "." || base == "/" {
		base = ""
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return "corrected_" + stem + ".txt"
}

// DocumentsXLSX returns an XLSX workbook (as bytes) listing every stored document.
func (s *Service) DocumentsXLSX(ctx context.Context) ([]byte, error) {
	start := time.Now()

	docs, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()

	const sheet = "Documents"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Id",
		"Original Name",
		"Style",
		"Status",
		"Words",
		"Grammar",
		"Style Fixes",
		"Clarity",
		"Created",
		"Updated",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, d := range docs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		write(1, d.ID)
		write(2, truncate(d.OriginalName, 120))
		write(3, string(d.WritingStyle))
		write(4, string(d.Status))
		write(5, len(strings.Fields(d.OriginalContent)))
		// counters stay blank until the rewrite completed
		if c := d.Corrections; c != nil {
			write(6, c.Grammar)
			write(7, c.Style)
			write(8, c.Clarity)
		}
		write(9, d.CreatedAt.UTC().Format(time.RFC3339))
		write(10, d.UpdatedAt.UTC().Format(time.RFC3339))
		row++
	}

	// Widen a few columns
	_ = f.SetColWidth(sheet, "A", "A", 8)  // id
	_ = f.SetColWidth(sheet, "B", "B", 40) // name
	_ = f.SetColWidth(sheet, "C", "D", 14) // style, status
	_ = f.SetColWidth(sheet, "E", "H", 12) // counts
	_ = f.SetColWidth(sheet, "I", "J", 22) // timestamps

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(docs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// truncate caps s at n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	if n == 1 {
		return string(r[:1])
	}
	return string(r[:n-1]) + "…"
}
