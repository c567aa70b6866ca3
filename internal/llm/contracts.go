package llm

import (
	"context"
	"errors"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

// ErrRewriteFailed wraps every failure of a rewrite call: transport, auth, quota,
// or a response that cannot be parsed into the expected structure.
var ErrRewriteFailed = errors.New("rewrite failed")

// RewriteFields is the structured body we ask the model to return.
type RewriteFields struct {
	CorrectedContent    string `json:"correctedContent"`
	GrammarCorrections  int    `json:"grammarCorrections"`
	StyleImprovements   int    `json:"styleImprovements"`
	ClarityEnhancements int    `json:"clarityEnhancements"`
}

// Result is the outcome of one successful rewrite.
type Result struct {
	CorrectedText string
	Corrections   entity.Corrections
	// Defaulted lists response fields that were missing or malformed and
	// replaced by the original text or zero.
	Defaulted []string
	ModelName string
}

// Rewriter is the interface the processor depends on. Implementations must not
// mutate their input and must be safe for concurrent use.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, style constants.WritingStyle) (Result, error)
}

// ToResult converts decoded fields into a Result.
func (f RewriteFields) ToResult() Result {
	return Result{
		CorrectedText: f.CorrectedContent,
		Corrections: entity.Corrections{
			Grammar: f.GrammarCorrections,
			Style:   f.StyleImprovements,
			Clarity: f.ClarityEnhancements,
		},
	}
}
