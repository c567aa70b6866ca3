package repository

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

type memoryRepository struct {
	mu           sync.RWMutex
	docs         map[int64]*entity.Document
	nextID       int64
	maxDocuments int
	now          func() time.Time
	logger       *slog.Logger
}

// NewMemoryRepository returns a process-local store. maxDocuments <= 0 means unbounded.
func NewMemoryRepository(maxDocuments int, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &memoryRepository{
		docs:         make(map[int64]*entity.Document),
		nextID:       1,
		maxDocuments: maxDocuments,
		now:          time.Now,
		logger:       logger,
	}
}

func (r *memoryRepository) Create(ctx context.Context, n entity.NewDocument) (*entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxDocuments > 0 && len(r.docs) >= r.maxDocuments {
		if err := r.evictOldestTerminalLocked(); err != nil {
			return nil, err
		}
	}

	doc := n.Build(r.nextID, r.now().UTC())
	r.nextID++
	r.docs[doc.ID] = doc
	r.logger.Debug("document created", "document_id", doc.ID, "status", doc.Status)
	return doc.Clone(), nil
}

func (r *memoryRepository) evictOldestTerminalLocked() error {
	var victim int64
	for id, d := range r.docs {
		if d.Status.IsTerminal() && (victim == 0 || id < victim) {
			victim = id
		}
	}
	if victim == 0 {
		r.logger.Warn("document store full", "max_documents", r.maxDocuments)
		return ErrStoreFull
	}
	delete(r.docs, victim)
	r.logger.Info("evicted document", "document_id", victim, "max_documents", r.maxDocuments)
	return nil
}

func (r *memoryRepository) Get(ctx context.Context, id int64) (*entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return d.Clone(), nil
}

func (r *memoryRepository) Update(ctx context.Context, id int64, patch entity.DocumentPatch) (*entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	updated, err := patch.Apply(d, r.now().UTC())
	if err != nil {
		return nil, err
	}
	r.docs[id] = updated
	return updated.Clone(), nil
}

func (r *memoryRepository) Delete(ctx context.Context, id int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return ErrNotFound
	}
	delete(r.docs, id)
	return nil
}

func (r *memoryRepository) List(ctx context.Context) ([]*entity.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	out := make([]*entity.Document, 0, len(r.docs))
	for _, d := range r.docs {
		out = append(out, d.Clone())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryRepository) Close() error { return nil }

// CountByStatus tallies documents per status.
func CountByStatus(docs []*entity.Document) map[constants.DocumentStatus]int {
	out := make(map[constants.DocumentStatus]int, 3)
	for _, d := range docs {
		out[d.Status]++
	}
	return out
}
