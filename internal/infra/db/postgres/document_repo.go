package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

type DocumentRepository struct{ db *sql.DB }

func NewDocumentRepository(db *sql.DB) *DocumentRepository { return &DocumentRepository{db: db} }

// Save insert/update satu feature record
func (r *DocumentRepository) Save(ctx context.Context, tenant string, d *domain.DocumentFeatures) error {
	const q = `
INSERT INTO bid_documents
(id, tenant_id, project_id, company, doc_text, text_length, page_count,
 fonts, layout, metadata, line_items, total, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id) DO UPDATE SET
 company = EXCLUDED.company,
 doc_text = EXCLUDED.doc_text,
 text_length = EXCLUDED.text_length,
 page_count = EXCLUDED.page_count,
 fonts = EXCLUDED.fonts,
 layout = EXCLUDED.layout,
 metadata = EXCLUDED.metadata,
 line_items = EXCLUDED.line_items,
 total = EXCLUDED.total;`

	fonts, err := toJSON(d.Fonts)
	if err != nil {
		return err
	}
	layout, err := toJSON(d.Layout)
	if err != nil {
		return err
	}
	meta, err := toJSON(d.Metadata)
	if err != nil {
		return err
	}
	items, err := toJSON(d.LineItems)
	if err != nil {
		return err
	}
	var total sql.NullFloat64
	if d.Total != nil {
		total = sql.NullFloat64{Float64: *d.Total, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, q,
		d.ID, stringOrDash(tenant), d.ProjectID, d.Company, d.Text, d.TextLength, d.PageCount,
		fonts, layout, meta, items, total, time.Now().UTC(),
	)
	return err
}

// Get by ID + Tenant
func (r *DocumentRepository) Get(ctx context.Context, tenant string, id domain.DocumentID) (*domain.DocumentFeatures, error) {
	const q = `
SELECT id, project_id, company, doc_text, text_length, page_count,
       fonts, layout, metadata, line_items, total
FROM bid_documents
WHERE tenant_id=$1 AND id=$2
LIMIT 1;`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// ListByProject returns the project's documents ordered by id so the engine
// input is stable across calls.
func (r *DocumentRepository) ListByProject(ctx context.Context, tenant, projectID string) ([]domain.DocumentFeatures, error) {
	const q = `
SELECT id, project_id, company, doc_text, text_length, page_count,
       fonts, layout, metadata, line_items, total
FROM bid_documents
WHERE tenant_id=$1 AND project_id=$2
ORDER BY id;`
	rows, err := r.db.QueryContext(ctx, q, tenant, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.DocumentFeatures
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

// DeleteByProject drops every document of a project (re-ingestion path)
func (r *DocumentRepository) DeleteByProject(ctx context.Context, tenant, projectID string) error {
	const q = `DELETE FROM bid_documents WHERE tenant_id=$1 AND project_id=$2;`
	_, err := r.db.ExecContext(ctx, q, tenant, projectID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.DocumentFeatures, error) {
	var d domain.DocumentFeatures
	var fonts, layout, meta, items []byte
	var total sql.NullFloat64
	if err := row.Scan(
		&d.ID, &d.ProjectID, &d.Company, &d.Text, &d.TextLength, &d.PageCount,
		&fonts, &layout, &meta, &items, &total,
	); err != nil {
		return nil, err
	}
	if err := fromJSON(fonts, &d.Fonts); err != nil {
		return nil, err
	}
	if err := fromJSON(layout, &d.Layout); err != nil {
		return nil, err
	}
	if err := fromJSON(meta, &d.Metadata); err != nil {
		return nil, err
	}
	if err := fromJSON(items, &d.LineItems); err != nil {
		return nil, err
	}
	if total.Valid {
		v := total.Float64
		d.Total = &v
	}
	return &d, nil
}
