package docstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres persists documents in the documents table created by the
// migrations under migrations/.
type Postgres struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgres sets up a Postgres store using the provided database handle.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// body is the jsonb payload; the lifecycle columns live outside it so they
// can be filtered and constrained.
type body struct {
	Refs     map[string][]string `json:"refs,omitempty"`
	Counters map[string]int64    `json:"counters,omitempty"`
	Attrs    map[string]any      `json:"attrs,omitempty"`
}

const selectColumns = `id, deleted, deleted_at, revision, body, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Get returns a document by id.
func (p *Postgres) Get(ctx context.Context, kind Kind, id string) (*Document, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT `+selectColumns+`
		FROM documents
		WHERE kind = $1 AND id = $2
	`, string(kind), id)

	doc, err := scanDocument(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document: %w", err)
	}
	return doc, nil
}

// Find returns matching documents ordered by creation time.
func (p *Postgres) Find(ctx context.Context, kind Kind, q Query) ([]*Document, error) {
	query, args, err := buildFindQuery(kind, q)
	if err != nil {
		return nil, err
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return docs, nil
}

func buildFindQuery(kind Kind, q Query) (string, []any, error) {
	var (
		conditions = []string{"kind = $1"}
		args       = []any{string(kind)}
	)

	switch q.State {
	case Active:
		conditions = append(conditions, "deleted = FALSE")
	case Trashed:
		conditions = append(conditions, "deleted = TRUE")
	}

	if q.IDs != nil {
		args = append(args, pq.Array(q.IDs))
		conditions = append(conditions, fmt.Sprintf("id = ANY($%d)", len(args)))
	}

	if len(q.Attrs) > 0 {
		attrs, err := json.Marshal(q.Attrs)
		if err != nil {
			return "", nil, fmt.Errorf("marshal attribute filter: %w", err)
		}
		args = append(args, string(attrs))
		conditions = append(conditions, fmt.Sprintf("body->'attrs' @> $%d::jsonb", len(args)))
	}

	query := "SELECT " + selectColumns + " FROM documents WHERE " +
		strings.Join(conditions, " AND ") + " ORDER BY created_at ASC, id ASC"

	if q.Limit > 0 {
		args = append(args, q.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	return query, args, nil
}

// Insert persists a new document with revision 1.
func (p *Postgres) Insert(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}

	payload, err := encodeBody(doc)
	if err != nil {
		return err
	}

	now := p.now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}

	if _, err := p.db.ExecContext(ctx, `
		INSERT INTO documents (kind, id, deleted, deleted_at, revision, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 1, $5::jsonb, $6, $7)
	`, string(doc.Kind), doc.ID, doc.Deleted, nullTime(doc.DeletedAt), payload, doc.CreatedAt, now); err != nil {
		if isUniqueViolation(err) {
			return ErrExists
		}
		return fmt.Errorf("insert document: %w", err)
	}

	doc.Revision = 1
	doc.UpdatedAt = now
	return nil
}

// Save replaces the document when the stored revision still matches.
func (p *Postgres) Save(ctx context.Context, doc *Document) error {
	if doc == nil {
		return errors.New("document is required")
	}

	payload, err := encodeBody(doc)
	if err != nil {
		return err
	}

	now := p.now()
	res, err := p.db.ExecContext(ctx, `
		UPDATE documents
		SET deleted = $1, deleted_at = $2, revision = revision + 1, body = $3::jsonb, updated_at = $4
		WHERE kind = $5 AND id = $6 AND revision = $7
	`, doc.Deleted, nullTime(doc.DeletedAt), payload, now, string(doc.Kind), doc.ID, doc.Revision)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}

	if affected == 0 {
		var exists bool
		if err := p.db.QueryRowContext(ctx, `
			SELECT EXISTS(SELECT 1 FROM documents WHERE kind = $1 AND id = $2)
		`, string(doc.Kind), doc.ID).Scan(&exists); err != nil {
			return fmt.Errorf("check document: %w", err)
		}
		if !exists {
			return ErrNotFound
		}
		return ErrConflict
	}

	doc.Revision++
	doc.UpdatedAt = now
	return nil
}

// Delete physically removes documents.
func (p *Postgres) Delete(ctx context.Context, kind Kind, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	res, err := p.db.ExecContext(ctx, `
		DELETE FROM documents
		WHERE kind = $1 AND id = ANY($2)
	`, string(kind), pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("delete documents: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return affected, nil
}

func scanDocument(row rowScanner, kind Kind) (*Document, error) {
	var (
		doc       = Document{Kind: kind}
		deletedAt sql.NullTime
		raw       []byte
	)
	if err := row.Scan(&doc.ID, &doc.Deleted, &deletedAt, &doc.Revision, &raw, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, err
	}
	if deletedAt.Valid {
		t := deletedAt.Time.UTC()
		doc.DeletedAt = &t
	}

	var b body
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}
	doc.Refs = b.Refs
	doc.Counters = b.Counters
	doc.Attrs = b.Attrs
	return &doc, nil
}

func encodeBody(doc *Document) (string, error) {
	payload, err := json.Marshal(body{Refs: doc.Refs, Counters: doc.Counters, Attrs: doc.Attrs})
	if err != nil {
		return "", fmt.Errorf("marshal document body: %w", err)
	}
	return string(payload), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
