package analysis

import (
	"context"
	"time"
)

// DocumentRepository port (persistence untuk feature records)
type DocumentRepository interface {
	Save(ctx context.Context, tenant string, doc *DocumentFeatures) error
	Get(ctx context.Context, tenant string, id DocumentID) (*DocumentFeatures, error)
	ListByProject(ctx context.Context, tenant, projectID string) ([]DocumentFeatures, error)
	DeleteByProject(ctx context.Context, tenant, projectID string) error
}

// AssessmentRepository port. Saves are inserts only; history per project is
// never rewritten.
type AssessmentRepository interface {
	Save(ctx context.Context, a *RiskAssessment) error
	Get(ctx context.Context, tenant string, id RunID) (*RiskAssessment, error)
	LatestByProject(ctx context.Context, tenant, projectID string) (*RiskAssessment, error)
	Paginate(ctx context.Context, tenant, projectID string, page, pageSize int) (PaginatedAssessments, error)
	Cursor(ctx context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*RiskAssessment, error)
	Summary(ctx context.Context, tenant string, sinceDays int) (LevelCounts, error)
	UpdateNarrative(ctx context.Context, tenant string, id RunID, narrative string) error
}

// Engine port: the pure detection core. Two calls over the same frozen
// document slice produce identical output.
type Engine interface {
	Analyze(ctx context.Context, projectID string, docs []DocumentFeatures) (*RiskAssessment, error)
}

// ArtifactStore port (penyimpanan report artefak)
type ArtifactStore interface {
	UploadJSON(ctx context.Context, key string, payload []byte) (string, error)
}

// Narrator turns an assessment's evidence into a human-readable summary.
type Narrator interface {
	Narrate(ctx context.Context, a *RiskAssessment) (string, error)
}
