package engine

import (
	"testing"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

func TestEntityCrossSharedPhone(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", "For queries contact our office at +1 555-123-4567 during business hours"),
		textDoc("d2", "B Corp", "Project coordinator reachable on +1 555 123 4567 or via post"),
	}
	cfg := DefaultConfig()
	findings, err := EntityCrossReferencer{}.Detect(docs, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected exactly one finding, got %d", len(findings))
	}
	f := findings[0]
	if len(f.Documents) != 2 || f.Documents[0] != "d1" || f.Documents[1] != "d2" {
		t.Errorf("finding must reference both documents, got %v", f.Documents)
	}
	if f.Score != cfg.Entities.Phone {
		t.Errorf("expected phone specificity score %v, got %v", cfg.Entities.Phone, f.Score)
	}
}

func TestEntityCrossSameCompanyIgnored(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", "Contact +1 555-123-4567 for details"),
		textDoc("d2", "A Corp", "Second envelope, same bidder, call +1 555-123-4567"),
	}
	findings, err := EntityCrossReferencer{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("same-company repetition must not fire, got %d findings", len(findings))
	}
}

func TestEntityCrossEmailNormalization(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", "Send tenders to Bids@Example.com before noon"),
		textDoc("d2", "B Corp", "All correspondence via bids@example.com please"),
	}
	cfg := DefaultConfig()
	findings, err := EntityCrossReferencer{}.Detect(docs, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("case-insensitive email match expected, got %d findings", len(findings))
	}
	if findings[0].Score != cfg.Entities.Email {
		t.Errorf("expected email specificity score %v, got %v", cfg.Entities.Email, findings[0].Score)
	}
}

func TestEntityCrossOwnCompanyExcluded(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "Alpha Construction Ltd", "Alpha Construction Ltd submits this offer"),
		textDoc("d2", "Beta Builders Inc", "Beta Builders Inc is pleased to quote"),
	}
	findings, err := EntityCrossReferencer{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("own company names are self-matches, got %d findings", len(findings))
	}
}

func TestEntityCrossForeignCompanyMention(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "Alpha Construction Ltd", "Our subcontracting plan names Gamma Logistics GmbH explicitly"),
		textDoc("d2", "Beta Builders Inc", "Partnering with Gamma Logistics GmbH for haulage"),
	}
	cfg := DefaultConfig()
	findings, err := EntityCrossReferencer{}.Detect(docs, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("expected one shared company-name finding, got %d", len(findings))
	}
	if findings[0].Score != cfg.Entities.Company {
		t.Errorf("expected company specificity score %v, got %v", cfg.Entities.Company, findings[0].Score)
	}
}
