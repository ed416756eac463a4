package engine

import (
	"testing"
	"time"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

func metaDoc(id, company string, meta domain.DocumentMetadata) domain.DocumentFeatures {
	return domain.DocumentFeatures{
		ID:        domain.DocumentID(id),
		ProjectID: "p1",
		Company:   company,
		Metadata:  meta,
	}
}

func TestMetadataAbsenceNeverMatches(t *testing.T) {
	docs := []domain.DocumentFeatures{
		metaDoc("d1", "A Corp", domain.DocumentMetadata{}),
		metaDoc("d2", "B Corp", domain.DocumentMetadata{}),
	}
	findings, err := MetadataCorrelator{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("empty metadata must not correlate, got %d findings", len(findings))
	}
}

func TestMetadataAuthorMatch(t *testing.T) {
	docs := []domain.DocumentFeatures{
		metaDoc("d1", "A Corp", domain.DocumentMetadata{Author: "j.smith"}),
		metaDoc("d2", "B Corp", domain.DocumentMetadata{Author: "j.smith"}),
	}
	cfg := DefaultConfig()
	findings, err := MetadataCorrelator{}.Detect(docs, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if findings[0].Score != cfg.AuthorWeight {
		t.Errorf("expected score %v, got %v", cfg.AuthorWeight, findings[0].Score)
	}
}

func TestMetadataTimestampCluster(t *testing.T) {
	base := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	close := base.Add(4 * time.Minute)
	far := base.Add(3 * time.Hour)

	cases := []struct {
		name     string
		companyB string
		tsB      time.Time
		want     int
	}{
		{"different companies close together", "B Corp", close, 1},
		{"same company close together", "A Corp", close, 0},
		{"different companies far apart", "B Corp", far, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			docs := []domain.DocumentFeatures{
				metaDoc("d1", "A Corp", domain.DocumentMetadata{CreatedAt: &base}),
				metaDoc("d2", tc.companyB, domain.DocumentMetadata{CreatedAt: &tc.tsB}),
			}
			findings, err := MetadataCorrelator{}.Detect(docs, DefaultConfig())
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(findings) != tc.want {
				t.Fatalf("expected %d findings, got %d", tc.want, len(findings))
			}
		})
	}
}

func TestMetadataContributionsSumAndClamp(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	soon := now.Add(time.Minute)
	meta := domain.DocumentMetadata{
		Author:          "j.smith",
		LastModifiedBy:  "j.smith",
		Creator:         "OfficeSuite",
		SoftwareVersion: "16.0.1",
		Producer:        "pdfgen 3.1",
	}
	a := meta
	a.CreatedAt = &now
	b := meta
	b.CreatedAt = &soon

	docs := []domain.DocumentFeatures{
		metaDoc("d1", "A Corp", a),
		metaDoc("d2", "B Corp", b),
	}
	findings, err := MetadataCorrelator{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one finding, got %d", len(findings))
	}
	if findings[0].Score != 1.0 {
		t.Errorf("all rules matching should clamp to 1.0, got %v", findings[0].Score)
	}
}
