package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

type AssessmentRepository struct {
	db *sql.DB
}

func NewAssessmentRepository(db *sql.DB) *AssessmentRepository {
	return &AssessmentRepository{db: db}
}

// Save is insert-only: assessment history is append-only per project.
func (r *AssessmentRepository) Save(ctx context.Context, a *domain.RiskAssessment) error {
	const q = `
INSERT INTO risk_assessments
(id, tenant_id, project_id, score, level, document_count,
 findings, degraded, insufficient_data, report_url, narrative, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);
`
	findings, err := toJSON(a.Findings)
	if err != nil {
		return err
	}
	degraded, err := toJSON(a.Degraded)
	if err != nil {
		return err
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err = r.db.ExecContext(ctx, q,
		a.ID, stringOrDash(a.TenantID), a.ProjectID, a.Score, string(a.Level), a.DocumentCount,
		findings, degraded, a.InsufficientData, a.ReportURL, a.Narrative, created,
	)
	return err
}

const assessmentColumns = `id, tenant_id, project_id, score, level, document_count,
       findings, degraded, insufficient_data, report_url, narrative, created_at`

// Get by run ID + tenant
func (r *AssessmentRepository) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.RiskAssessment, error) {
	q := `
SELECT ` + assessmentColumns + `
FROM risk_assessments
WHERE tenant_id=? AND id=? LIMIT 1;
`
	a, err := scanAssessment(r.db.QueryRowContext(ctx, q, tenant, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// LatestByProject ambil assessment terakhir untuk satu project
func (r *AssessmentRepository) LatestByProject(ctx context.Context, tenant, projectID string) (*domain.RiskAssessment, error) {
	q := `
SELECT ` + assessmentColumns + `
FROM risk_assessments
WHERE tenant_id=? AND project_id=?
ORDER BY created_at DESC, id DESC LIMIT 1;
`
	a, err := scanAssessment(r.db.QueryRowContext(ctx, q, tenant, projectID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return a, err
}

// Paginate with offset + limit (classic pagination), newest first
func (r *AssessmentRepository) Paginate(ctx context.Context, tenant, projectID string, page, pageSize int) (domain.PaginatedAssessments, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	q := `
SELECT ` + assessmentColumns + `
FROM risk_assessments
WHERE tenant_id=? AND project_id=?
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, projectID, pageSize, offset)
	if err != nil {
		return domain.PaginatedAssessments{}, fmt.Errorf("querying assessments: %w", err)
	}
	defer rows.Close()

	var list []*domain.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return domain.PaginatedAssessments{}, fmt.Errorf("scanning row: %w", err)
		}
		list = append(list, a)
	}
	if err = rows.Err(); err != nil {
		return domain.PaginatedAssessments{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	const countQ = `SELECT COUNT(*) FROM risk_assessments WHERE tenant_id=? AND project_id=?;`
	if err := r.db.QueryRowContext(ctx, countQ, tenant, projectID).Scan(&total); err != nil {
		return domain.PaginatedAssessments{}, fmt.Errorf("getting total count: %w", err)
	}

	return domain.PaginatedAssessments{
		Data:       list,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// Cursor-based pagination (after cursorTime, cursorID)
func (r *AssessmentRepository) Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*domain.RiskAssessment, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	q := `
SELECT ` + assessmentColumns + `
FROM risk_assessments
WHERE tenant_id=?
  AND (created_at < ? OR (created_at = ? AND id < ?))
ORDER BY created_at DESC, id DESC
LIMIT ?;
`
	rows, err := r.db.QueryContext(ctx, q, tenant, cursorTime, cursorTime, cursorID, pageSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.RiskAssessment
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Summary rekap jumlah assessment per level sejak N hari terakhir
func (r *AssessmentRepository) Summary(ctx context.Context, tenant string, sinceDays int) (domain.LevelCounts, error) {
	if sinceDays <= 0 {
		sinceDays = 7
	}
	cut := time.Now().AddDate(0, 0, -sinceDays)

	const q = `
SELECT COUNT(*) AS total,
       COALESCE(SUM(level='critical'),0) AS critical,
       COALESCE(SUM(level='high'),0)     AS high,
       COALESCE(SUM(level='medium'),0)   AS medium,
       COALESCE(SUM(level='low'),0)      AS low
FROM risk_assessments
WHERE tenant_id=? AND created_at >= ?;
`
	var c domain.LevelCounts
	if err := r.db.QueryRowContext(ctx, q, tenant, cut).Scan(
		&c.Total, &c.Critical, &c.High, &c.Medium, &c.Low,
	); err != nil {
		return domain.LevelCounts{}, err
	}
	return c, nil
}

// UpdateNarrative hanya update kolom narrative
func (r *AssessmentRepository) UpdateNarrative(ctx context.Context, tenant string, id domain.RunID, narrative string) error {
	const q = `
UPDATE risk_assessments
SET narrative = ?
WHERE tenant_id = ? AND id = ?;`
	_, err := r.db.ExecContext(ctx, q, narrative, tenant, id)
	return err
}

func scanAssessment(row rowScanner) (*domain.RiskAssessment, error) {
	var a domain.RiskAssessment
	var findings, degraded []byte
	var level string
	if err := row.Scan(
		&a.ID, &a.TenantID, &a.ProjectID, &a.Score, &level, &a.DocumentCount,
		&findings, &degraded, &a.InsufficientData, &a.ReportURL, &a.Narrative, &a.CreatedAt,
	); err != nil {
		return nil, err
	}
	a.Level = domain.RiskLevel(level)
	if err := fromJSON(findings, &a.Findings); err != nil {
		return nil, err
	}
	if err := fromJSON(degraded, &a.Degraded); err != nil {
		return nil, err
	}
	return &a, nil
}
