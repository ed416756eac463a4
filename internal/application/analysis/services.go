package analysis

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tendersentry/bidwatch/internal/application"
	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// Service implements use-cases untuk analysis runs.
// Service is designed to be used concurrently and is thread-safe.
type Service struct {
	Documents   domain.DocumentRepository
	Assessments domain.AssessmentRepository
	Engine      domain.Engine
	Artifacts   domain.ArtifactStore
	Narrator    domain.Narrator
	Clock       application.Clock
	Log         *logrus.Logger
}

//
// ==== USE CASES ====
//

// RegisterDocument stores one parsed feature record. Re-registering the same
// document ID replaces the previous record.
func (s *Service) RegisterDocument(ctx context.Context, tenant string, doc *domain.DocumentFeatures) error {
	if doc == nil {
		return fmt.Errorf("document is required")
	}
	if strings.TrimSpace(string(doc.ID)) == "" {
		return fmt.Errorf("document id is required")
	}
	if strings.TrimSpace(doc.ProjectID) == "" {
		return fmt.Errorf("project_id is required")
	}
	if strings.TrimSpace(doc.Company) == "" {
		return fmt.Errorf("company is required")
	}
	if doc.TextLength == 0 {
		doc.TextLength = len(doc.Text)
	}
	return s.Documents.Save(ctx, tenant, doc)
}

// ProjectDocuments lists the registered feature records of one project.
func (s *Service) ProjectDocuments(ctx context.Context, tenant, projectID string) ([]domain.DocumentFeatures, error) {
	return s.Documents.ListByProject(ctx, tenant, projectID)
}

// RunAnalysisUntilDone → jalanin analisis dengan context.Background()
// cocok dipanggil dari goroutine di router supaya gak kena context canceled
func (s *Service) RunAnalysisUntilDone(tenant, projectID string) (*domain.RiskAssessment, error) {
	return s.RunAnalysis(context.Background(), tenant, projectID)
}

// RunAnalysis loads the project's frozen document set, runs the engine, and
// persists a new append-only assessment with its evidence report artifact.
func (s *Service) RunAnalysis(ctx context.Context, tenant, projectID string) (*domain.RiskAssessment, error) {
	docs, err := s.Documents.ListByProject(ctx, tenant, projectID)
	if err != nil {
		return nil, fmt.Errorf("loading documents: %w", err)
	}

	assessment, err := s.Engine.Analyze(ctx, projectID, docs)
	if err != nil {
		return nil, err
	}
	assessment.ID = domain.RunID(uuid.New().String())
	assessment.TenantID = tenant
	assessment.CreatedAt = s.Clock.Now()

	if s.Artifacts != nil {
		if url, err := s.uploadReport(ctx, assessment); err != nil {
			// report export is best-effort; the assessment itself is the
			// record of truth
			s.log().WithError(err).WithFields(logrus.Fields{
				"tenant":  tenant,
				"project": projectID,
				"run":     string(assessment.ID),
			}).Warn("report upload failed")
		} else {
			assessment.ReportURL = url
		}
	}

	if err := s.Assessments.Save(ctx, assessment); err != nil {
		return nil, fmt.Errorf("saving assessment: %w", err)
	}
	return assessment, nil
}

func (s *Service) uploadReport(ctx context.Context, a *domain.RiskAssessment) (string, error) {
	payload, err := application.MarshalReport(a)
	if err != nil {
		return "", err
	}
	key := fmt.Sprintf("%s/%s/%s.json", a.TenantID, a.ProjectID, a.ID)
	return s.Artifacts.UploadJSON(ctx, key, payload)
}

// Latest ambil assessment terakhir per project
func (s *Service) Latest(ctx context.Context, tenant, projectID string) (*domain.RiskAssessment, error) {
	return s.Assessments.LatestByProject(ctx, tenant, projectID)
}

// Get ambil 1 assessment by run id
func (s *Service) Get(ctx context.Context, tenant string, id domain.RunID) (*domain.RiskAssessment, error) {
	return s.Assessments.Get(ctx, tenant, id)
}

// History is the paginated assessment trail of one project, newest first.
func (s *Service) History(ctx context.Context, tenant, projectID string, page, pageSize int) (domain.PaginatedAssessments, error) {
	return s.Assessments.Paginate(ctx, tenant, projectID, page, pageSize)
}

// Summary rekap jumlah assessment per level dalam N hari terakhir
func (s *Service) Summary(ctx context.Context, tenant string, sinceDays int) (domain.LevelCounts, error) {
	return s.Assessments.Summary(ctx, tenant, sinceDays)
}

// Narrative generates (and stores) a prose summary of one assessment's
// evidence. Requires a configured narrator backend.
func (s *Service) Narrative(ctx context.Context, tenant string, id domain.RunID) (string, error) {
	if s.Narrator == nil {
		return "", domain.ErrNarrativeUnavailable
	}
	a, err := s.Assessments.Get(ctx, tenant, id)
	if err != nil {
		return "", err
	}
	if a.Narrative != "" {
		return a.Narrative, nil
	}
	text, err := s.Narrator.Narrate(ctx, a)
	if err != nil {
		return "", fmt.Errorf("narrating assessment: %w", err)
	}
	if err := s.Assessments.UpdateNarrative(ctx, tenant, id, text); err != nil {
		return "", err
	}
	return text, nil
}

func (s *Service) log() *logrus.Logger {
	if s.Log != nil {
		return s.Log
	}
	return logrus.StandardLogger()
}
