package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/docrefine/constants"
	"github.com/joseph-ayodele/docrefine/internal/common"
	"github.com/joseph-ayodele/docrefine/internal/entity"
)

const documentsTable = "documents"

var documentColumns = []string{
	"id", "original_name", "file_type", "file_size", "original_content",
	"corrected_content", "writing_style", "grammar_count", "style_count",
	"clarity_count", "status", "created_at", "updated_at",
}

// SQLRepository stores documents in sqlite or postgres. Queries are built with
// ent's dialect-aware SQL builder and run over database/sql.
type SQLRepository struct {
	drv          *entsql.Driver
	pool         *pgxpool.Pool
	dialect      string
	maxDocuments int
	now          func() time.Time
	logger       *slog.Logger
}

var _ DocumentRepository = (*SQLRepository)(nil)

func (r *SQLRepository) builder() *entsql.DialectBuilder {
	return entsql.Dialect(r.dialect)
}

func (r *SQLRepository) Create(ctx context.Context, n entity.NewDocument) (*entity.Document, error) {
	tx, err := r.drv.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, r.dbErr("begin create", err)
	}
	defer func() { _ = tx.Rollback() }()

	if r.maxDocuments > 0 {
		if err := r.enforceCapTx(ctx, tx); err != nil {
			return nil, err
		}
	}

	doc := n.Build(0, r.now().UTC())
	b := r.builder()
	ins := b.Insert(documentsTable).
		Columns(documentColumns[1:]...).
		Values(
			doc.OriginalName, doc.FileType, doc.FileSize, doc.OriginalContent,
			nil, string(doc.WritingStyle), nil, nil, nil,
			string(doc.Status), doc.CreatedAt.UnixMicro(), doc.UpdatedAt.UnixMicro(),
		)

	if r.dialect == dialectPostgres {
		query, args := ins.Returning("id").Query()
		if err := tx.QueryRowContext(ctx, query, args...).Scan(&doc.ID); err != nil {
			return nil, r.dbErr("insert document", err)
		}
	} else {
		query, args := ins.Query()
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return nil, r.dbErr("insert document", err)
		}
		if doc.ID, err = res.LastInsertId(); err != nil {
			return nil, r.dbErr("insert document id", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, r.dbErr("commit create", err)
	}
	r.logger.Debug("document created", "document_id", doc.ID, "status", doc.Status)
	return doc, nil
}

// enforceCapTx evicts the oldest terminal document when the table is at capacity.
func (r *SQLRepository) enforceCapTx(ctx context.Context, tx *sql.Tx) error {
	b := r.builder()
	query, args := b.Select(entsql.Count("*")).From(b.Table(documentsTable)).Query()
	var count int
	if err := tx.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return r.dbErr("count documents", err)
	}
	if count < r.maxDocuments {
		return nil
	}

	query, args = b.Select("id").
		From(b.Table(documentsTable)).
		Where(entsql.NEQ("status", string(constants.StatusProcessing))).
		OrderBy("id").
		Limit(1).
		Query()
	var victim int64
	switch err := tx.QueryRowContext(ctx, query, args...).Scan(&victim); {
	case errors.Is(err, sql.ErrNoRows):
		r.logger.Warn("document store full", "max_documents", r.maxDocuments)
		return ErrStoreFull
	case err != nil:
		return r.dbErr("select eviction candidate", err)
	}

	query, args = b.Delete(documentsTable).Where(entsql.EQ("id", victim)).Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return r.dbErr("evict document", err)
	}
	r.logger.Info("evicted document", "document_id", victim, "max_documents", r.maxDocuments)
	return nil
}

func (r *SQLRepository) Get(ctx context.Context, id int64) (*entity.Document, error) {
	b := r.builder()
	query, args := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		Where(entsql.EQ("id", id)).
		Query()
	doc, err := scanDocument(r.drv.DB().QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.dbErr("get document", err)
	}
	return doc, nil
}

func (r *SQLRepository) Update(ctx context.Context, id int64, patch entity.DocumentPatch) (*entity.Document, error) {
	tx, err := r.drv.DB().BeginTx(ctx, nil)
	if err != nil {
		return nil, r.dbErr("begin update", err)
	}
	defer func() { _ = tx.Rollback() }()

	b := r.builder()
	sel := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		Where(entsql.EQ("id", id))
	if r.dialect == dialectPostgres {
		sel = sel.ForUpdate()
	}
	query, args := sel.Query()
	current, err := scanDocument(tx.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, r.dbErr("load document", err)
	}

	updated, err := patch.Apply(current, r.now().UTC())
	if err != nil {
		return nil, err
	}

	upd := b.Update(documentsTable).
		Set("status", string(updated.Status)).
		Set("updated_at", updated.UpdatedAt.UnixMicro()).
		Where(entsql.EQ("id", id))
	if updated.CorrectedContent != nil {
		upd = upd.Set("corrected_content", *updated.CorrectedContent)
	}
	if c := updated.Corrections; c != nil {
		upd = upd.Set("grammar_count", c.Grammar).
			Set("style_count", c.Style).
			Set("clarity_count", c.Clarity)
	}
	query, args = upd.Query()
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return nil, r.dbErr("update document", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, r.dbErr("commit update", err)
	}
	return updated, nil
}

func (r *SQLRepository) Delete(ctx context.Context, id int64) error {
	query, args := r.builder().Delete(documentsTable).Where(entsql.EQ("id", id)).Query()
	res, err := r.drv.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return r.dbErr("delete document", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return r.dbErr("delete document", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SQLRepository) List(ctx context.Context) ([]*entity.Document, error) {
	b := r.builder()
	query, args := b.Select(documentColumns...).
		From(b.Table(documentsTable)).
		OrderBy("id").
		Query()
	rows, err := r.drv.DB().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.dbErr("list documents", err)
	}
	defer rows.Close()

	var out []*entity.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, r.dbErr("scan document", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, r.dbErr("list documents", err)
	}
	return out, nil
}

func (r *SQLRepository) dbErr(op string, err error) error {
	r.logger.Error("database operation failed", "op", op, "error", err)
	return fmt.Errorf("%w: %s: %w", common.ErrDatabase, op, err)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		d                      entity.Document
		style, status          string
		corrected              sql.NullString
		grammar, styl, clarity sql.NullInt64
		created, updated       int64
	)
	if err := row.Scan(
		&d.ID, &d.OriginalName, &d.FileType, &d.FileSize, &d.OriginalContent,
		&corrected, &style, &grammar, &styl, &clarity,
		&status, &created, &updated,
	); err != nil {
		return nil, err
	}
	d.WritingStyle = constants.WritingStyle(style)
	d.Status = constants.DocumentStatus(status)
	if corrected.Valid {
		s := corrected.String
		d.CorrectedContent = &s
	}
	if grammar.Valid || styl.Valid || clarity.Valid {
		d.Corrections = &entity.Corrections{
			Grammar: int(grammar.Int64),
			Style:   int(styl.Int64),
			Clarity: int(clarity.Int64),
		}
	}
	d.CreatedAt = time.UnixMicro(created).UTC()
	d.UpdatedAt = time.UnixMicro(updated).UTC()
	return &d, nil
}
