package repository

import (
	"context"

	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

var (
	// ErrNotFound is returned for an unknown document id.
	ErrNotFound = common.NewAppError("NOT_FOUND", "Document not found", common.ErrNotFound)
	// ErrStoreFull is returned by Create when the document cap is reached and
	// every stored document is still processing.
	ErrStoreFull = common.NewAppError("STORE_FULL", "Document store is full, try again later", common.ErrUnavailable)
)

// DocumentRepository owns all document records. Returned documents are copies;
// mutating them never changes stored state.
type DocumentRepository interface {
	// Create assigns the next id (strictly greater than any previously issued)
	// and stores the record with status processing unless one is given.
	Create(ctx context.Context, doc entity.NewDocument) (*entity.Document, error)
	Get(ctx context.Context, id int64) (*entity.Document, error)
	// Update merges patch atomically and returns the stored result.
	Update(ctx context.Context, id int64, patch entity.DocumentPatch) (*entity.Document, error)
	Delete(ctx context.Context, id int64) error
	// List returns every document ordered by id.
	List(ctx context.Context) ([]*entity.Document, error)
	Close() error
}
