package db

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const repoLogPrefix = "db:repository"

// Repository provides access to stored provider documents.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a Repository on pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const documentColumns = `name, format, body, revision, created, modified`

// GetProviderDocument returns the named document, or nil when there is none.
func (r *Repository) GetProviderDocument(ctx context.Context, name string) (*ProviderDocument, error) {
	slog.Debug(fmt.Sprintf("%s - GetProviderDocument name=%s", repoLogPrefix, name))

	row := r.pool.QueryRow(ctx,
		`SELECT `+documentColumns+`
		 FROM provider_documents
		 WHERE name = $1`, name)
	return scanProviderDocument(row)
}

// UpsertProviderDocument creates a document or replaces its body, bumping
// the revision.
func (r *Repository) UpsertProviderDocument(ctx context.Context, params UpsertProviderDocumentParams) (*ProviderDocument, error) {
	slog.Info(fmt.Sprintf("%s - UpsertProviderDocument name=%s", repoLogPrefix, params.Name))

	format := params.Format
	if format == "" {
		format = "json"
	}
	now := time.Now().UTC()
	row := r.pool.QueryRow(ctx,
		`INSERT INTO provider_documents (name, format, body, created, modified)
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT (name) DO UPDATE SET
		   format = $2,
		   body = $3,
		   revision = provider_documents.revision + 1,
		   modified = $4
		 RETURNING `+documentColumns,
		params.Name, format, params.Body, now)

	doc, err := scanProviderDocument(row)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, fmt.Errorf("%s - upsert %s returned no row", repoLogPrefix, params.Name)
	}
	return doc, nil
}

// ListProviderDocuments returns every document ordered by name.
func (r *Repository) ListProviderDocuments(ctx context.Context) ([]ProviderDocument, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+documentColumns+`
		 FROM provider_documents
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("%s - list provider documents: %w", repoLogPrefix, err)
	}
	defer rows.Close()

	var out []ProviderDocument
	for rows.Next() {
		var d ProviderDocument
		if err := rows.Scan(&d.Name, &d.Format, &d.Body, &d.Revision, &d.Created, &d.Modified); err != nil {
			return nil, fmt.Errorf("%s - scan provider document: %w", repoLogPrefix, err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s - list provider documents: %w", repoLogPrefix, err)
	}
	return out, nil
}

// DeleteProviderDocument removes the named document. It reports whether a
// row was deleted.
func (r *Repository) DeleteProviderDocument(ctx context.Context, name string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM provider_documents WHERE name = $1`, name)
	if err != nil {
		return false, fmt.Errorf("%s - delete provider document %s: %w", repoLogPrefix, name, err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanProviderDocument(row pgx.Row) (*ProviderDocument, error) {
	var d ProviderDocument
	err := row.Scan(&d.Name, &d.Format, &d.Body, &d.Revision, &d.Created, &d.Modified)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s - scan provider document: %w", repoLogPrefix, err)
	}
	return &d, nil
}
