package entity

import (
	"errors"
	"fmt"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
)

// ErrIllegalTransition is returned when a patch would move a document along an edge
// other than processing -> completed|failed.
var ErrIllegalTransition = errors.New("illegal status transition")

// Corrections counts the edits reported by the rewriter.
type Corrections struct {
	Grammar int `json:"grammar"`
	Style   int `json:"style"`
	Clarity int `json:"clarity"`
}

// Document represents one uploaded file's processing record for data transfer between layers.
type Document struct {
	ID               int64                    `json:"id"`
	OriginalName     string                   `json:"original_name"`
	FileType         string                   `json:"file_type"`
	FileSize         int64                    `json:"file_size"`
	OriginalContent  string                   `json:"original_content"`
	WritingStyle     constants.WritingStyle   `json:"writing_style"`
	CorrectedContent *string                  `json:"corrected_content,omitempty"`
	Corrections      *Corrections             `json:"corrections,omitempty"`
	Status           constants.DocumentStatus `json:"status"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

// Clone returns a deep copy so callers never share mutable state with the store.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	if d.CorrectedContent != nil {
		s := *d.CorrectedContent
		out.CorrectedContent = &s
	}
	if d.Corrections != nil {
		c := *d.Corrections
		out.Corrections = &c
	}
	return &out
}

// NewDocument carries the immutable metadata captured at creation.
// Status is optional; the store defaults it to processing.
type NewDocument struct {
	OriginalName    string
	FileType        string
	FileSize        int64
	OriginalContent string
	WritingStyle    constants.WritingStyle
	Status          constants.DocumentStatus
}

// Build stamps id and timestamps and returns the initial record.
func (n NewDocument) Build(id int64, now time.Time) *Document {
	status := n.Status
	if status == "" {
		status = constants.StatusProcessing
	}
	return &Document{
		ID:              id,
		OriginalName:    n.OriginalName,
		FileType:        n.FileType,
		FileSize:        n.FileSize,
		OriginalContent: n.OriginalContent,
		WritingStyle:    n.WritingStyle,
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// DocumentPatch is a partial update; nil fields are left untouched.
type DocumentPatch struct {
	CorrectedContent *string
	Corrections      *Corrections
	Status           *constants.DocumentStatus
}

// CompletedPatch is the single update written when a rewrite succeeds.
func CompletedPatch(corrected string, c Corrections) DocumentPatch {
	st := constants.StatusCompleted
	return DocumentPatch{CorrectedContent: &corrected, Corrections: &c, Status: &st}
}

// FailedPatch is the single update written when a rewrite fails.
func FailedPatch() DocumentPatch {
	st := constants.StatusFailed
	return DocumentPatch{Status: &st}
}

// Apply validates the patch against d and merges it into a copy, stamping UpdatedAt.
func (p DocumentPatch) Apply(d *Document, now time.Time) (*Document, error) {
	if p.Status != nil && *p.Status != d.Status && !constants.CanTransition(d.Status, *p.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, d.Status, *p.Status)
	}
	if d.Status.IsTerminal() && (p.CorrectedContent != nil || p.Corrections != nil) {
		return nil, fmt.Errorf("%w: document %d is %s", ErrIllegalTransition, d.ID, d.Status)
	}

	out := d.Clone()
	if p.CorrectedContent != nil {
		s := *p.CorrectedContent
		out.CorrectedContent = &s
	}
	if p.Corrections != nil {
		c := *p.Corrections
		out.Corrections = &c
	}
	if p.Status != nil {
		out.Status = *p.Status
	}

	switch out.Status {
	case constants.StatusCompleted:
		if out.CorrectedContent == nil || out.Corrections == nil {
			return nil, fmt.Errorf("%w: completed requires corrected content and corrections", ErrIllegalTransition)
		}
	case constants.StatusFailed:
		if out.CorrectedContent != nil {
			return nil, fmt.Errorf("%w: failed document cannot carry corrected content", ErrIllegalTransition)
		}
	}
	out.UpdatedAt = now
	return out, nil
}
