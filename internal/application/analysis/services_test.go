package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

type memDocs struct {
	docs map[string][]domain.DocumentFeatures
}

func newMemDocs() *memDocs { return &memDocs{docs: map[string][]domain.DocumentFeatures{}} }

func (m *memDocs) key(tenant, project string) string { return tenant + "/" + project }

func (m *memDocs) Save(_ context.Context, tenant string, d *domain.DocumentFeatures) error {
	k := m.key(tenant, d.ProjectID)
	m.docs[k] = append(m.docs[k], *d)
	return nil
}

func (m *memDocs) Get(_ context.Context, tenant string, id domain.DocumentID) (*domain.DocumentFeatures, error) {
	for _, list := range m.docs {
		for _, d := range list {
			if d.ID == id {
				return &d, nil
			}
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memDocs) ListByProject(_ context.Context, tenant, projectID string) ([]domain.DocumentFeatures, error) {
	return m.docs[m.key(tenant, projectID)], nil
}

func (m *memDocs) DeleteByProject(_ context.Context, tenant, projectID string) error {
	delete(m.docs, m.key(tenant, projectID))
	return nil
}

type memAssessments struct {
	saved      []*domain.RiskAssessment
	narratives map[domain.RunID]string
}

func newMemAssessments() *memAssessments {
	return &memAssessments{narratives: map[domain.RunID]string{}}
}

func (m *memAssessments) Save(_ context.Context, a *domain.RiskAssessment) error {
	m.saved = append(m.saved, a)
	return nil
}

func (m *memAssessments) Get(_ context.Context, tenant string, id domain.RunID) (*domain.RiskAssessment, error) {
	for _, a := range m.saved {
		if a.ID == id && a.TenantID == tenant {
			copied := *a
			if n, ok := m.narratives[id]; ok {
				copied.Narrative = n
			}
			return &copied, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAssessments) LatestByProject(_ context.Context, tenant, projectID string) (*domain.RiskAssessment, error) {
	for i := len(m.saved) - 1; i >= 0; i-- {
		if m.saved[i].TenantID == tenant && m.saved[i].ProjectID == projectID {
			return m.saved[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memAssessments) Paginate(_ context.Context, tenant, projectID string, page, pageSize int) (domain.PaginatedAssessments, error) {
	return domain.PaginatedAssessments{Data: m.saved, Page: page, PageSize: pageSize}, nil
}

func (m *memAssessments) Cursor(_ context.Context, tenant string, cursorTime time.Time, cursorID string, pageSize int) ([]*domain.RiskAssessment, error) {
	return m.saved, nil
}

func (m *memAssessments) Summary(_ context.Context, tenant string, sinceDays int) (domain.LevelCounts, error) {
	return domain.LevelCounts{Total: len(m.saved)}, nil
}

func (m *memAssessments) UpdateNarrative(_ context.Context, tenant string, id domain.RunID, narrative string) error {
	m.narratives[id] = narrative
	return nil
}

type stubEngine struct {
	out *domain.RiskAssessment
}

func (s stubEngine) Analyze(_ context.Context, projectID string, docs []domain.DocumentFeatures) (*domain.RiskAssessment, error) {
	a := *s.out
	a.ProjectID = projectID
	a.DocumentCount = len(docs)
	return &a, nil
}

type stubArtifacts struct {
	keys []string
}

func (s *stubArtifacts) UploadJSON(_ context.Context, key string, payload []byte) (string, error) {
	s.keys = append(s.keys, key)
	return "http://minio.local/reports/" + key, nil
}

type stubNarrator struct {
	text  string
	calls int
}

func (s *stubNarrator) Narrate(_ context.Context, a *domain.RiskAssessment) (string, error) {
	s.calls++
	return s.text, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func newTestService() (*Service, *memDocs, *memAssessments, *stubArtifacts) {
	docs := newMemDocs()
	assessments := newMemAssessments()
	artifacts := &stubArtifacts{}
	svc := &Service{
		Documents:   docs,
		Assessments: assessments,
		Engine:      stubEngine{out: &domain.RiskAssessment{Score: 0.6, Level: domain.LevelHigh, Findings: []domain.Finding{}}},
		Artifacts:   artifacts,
		Clock:       fixedClock{t: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)},
	}
	return svc, docs, assessments, artifacts
}

func TestRegisterDocumentValidation(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()

	cases := []struct {
		name string
		doc  domain.DocumentFeatures
	}{
		{"missing id", domain.DocumentFeatures{ProjectID: "p1", Company: "A Corp"}},
		{"missing project", domain.DocumentFeatures{ID: "d1", Company: "A Corp"}},
		{"missing company", domain.DocumentFeatures{ID: "d1", ProjectID: "p1"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			doc := tc.doc
			if err := svc.RegisterDocument(ctx, "acme", &doc); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestRegisterDocumentFillsTextLength(t *testing.T) {
	svc, docs, _, _ := newTestService()
	doc := domain.DocumentFeatures{ID: "d1", ProjectID: "p1", Company: "A Corp", Text: "hello world"}
	if err := svc.RegisterDocument(context.Background(), "acme", &doc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stored := docs.docs["acme/p1"]
	if len(stored) != 1 || stored[0].TextLength != len("hello world") {
		t.Errorf("text length not derived, got %+v", stored)
	}
}

func TestRunAnalysisStampsAndPersists(t *testing.T) {
	svc, _, assessments, artifacts := newTestService()
	ctx := context.Background()

	for _, id := range []string{"d1", "d2"} {
		doc := domain.DocumentFeatures{ID: domain.DocumentID(id), ProjectID: "p1", Company: id + " Corp"}
		if err := svc.RegisterDocument(ctx, "acme", &doc); err != nil {
			t.Fatalf("register: %v", err)
		}
	}

	a, err := svc.RunAnalysis(ctx, "acme", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.ID == "" {
		t.Error("run must get an ID")
	}
	if a.TenantID != "acme" {
		t.Errorf("expected tenant acme, got %q", a.TenantID)
	}
	if !a.CreatedAt.Equal(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)) {
		t.Errorf("timestamp must come from the clock, got %v", a.CreatedAt)
	}
	if a.DocumentCount != 2 {
		t.Errorf("expected 2 documents analyzed, got %d", a.DocumentCount)
	}
	if len(assessments.saved) != 1 {
		t.Fatalf("assessment not persisted")
	}
	if a.ReportURL == "" || len(artifacts.keys) != 1 {
		t.Errorf("report artifact not exported: url=%q keys=%v", a.ReportURL, artifacts.keys)
	}
}

func TestRunAnalysisRunsAreDistinct(t *testing.T) {
	svc, _, assessments, _ := newTestService()
	ctx := context.Background()
	doc := domain.DocumentFeatures{ID: "d1", ProjectID: "p1", Company: "A Corp"}
	if err := svc.RegisterDocument(ctx, "acme", &doc); err != nil {
		t.Fatalf("register: %v", err)
	}

	first, err := svc.RunAnalysis(ctx, "acme", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.RunAnalysis(ctx, "acme", "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.ID == second.ID {
		t.Error("re-analysis must create a new run, not overwrite")
	}
	if len(assessments.saved) != 2 {
		t.Errorf("expected two persisted assessments, got %d", len(assessments.saved))
	}
}

func TestNarrativeUnavailableWithoutBackend(t *testing.T) {
	svc, _, _, _ := newTestService()
	_, err := svc.Narrative(context.Background(), "acme", "some-run")
	if !errors.Is(err, domain.ErrNarrativeUnavailable) {
		t.Fatalf("expected ErrNarrativeUnavailable, got %v", err)
	}
}

func TestNarrativeCached(t *testing.T) {
	svc, _, assessments, _ := newTestService()
	narrator := &stubNarrator{text: "looks coordinated"}
	svc.Narrator = narrator
	ctx := context.Background()

	doc := domain.DocumentFeatures{ID: "d1", ProjectID: "p1", Company: "A Corp"}
	if err := svc.RegisterDocument(ctx, "acme", &doc); err != nil {
		t.Fatalf("register: %v", err)
	}
	a, err := svc.RunAnalysis(ctx, "acme", "p1")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	for i := 0; i < 2; i++ {
		text, err := svc.Narrative(ctx, "acme", a.ID)
		if err != nil {
			t.Fatalf("narrative: %v", err)
		}
		if text != "looks coordinated" {
			t.Errorf("unexpected narrative %q", text)
		}
	}
	if narrator.calls != 1 {
		t.Errorf("stored narrative must be reused, backend called %d times", narrator.calls)
	}
	if assessments.narratives[a.ID] != "looks coordinated" {
		t.Error("narrative not persisted")
	}
}
