package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestAnalyzeInsufficientDocuments(t *testing.T) {
	eng := New(DefaultConfig(), quietLogger())
	a, err := eng.Analyze(context.Background(), "p1", []domain.DocumentFeatures{
		textDoc("d1", "A Corp", sampleText),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.InsufficientData {
		t.Error("a single document cannot be compared, expected insufficient_data")
	}
	if a.Score != 0 || a.Level != domain.LevelLow {
		t.Errorf("expected zero score at level low, got %v / %v", a.Score, a.Level)
	}
	if len(a.Findings) != 0 {
		t.Errorf("expected no findings, got %d", len(a.Findings))
	}
}

func TestAnalyzeNoSignals(t *testing.T) {
	// two documents with nothing comparable and nothing in common
	eng := New(DefaultConfig(), quietLogger())
	a, err := eng.Analyze(context.Background(), "p1", []domain.DocumentFeatures{
		{ID: "d1", ProjectID: "p1", Company: "A Corp"},
		{ID: "d2", ProjectID: "p1", Company: "B Corp"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.InsufficientData {
		t.Error("no detector fired, expected insufficient_data")
	}
	if len(a.Degraded) != 0 {
		t.Errorf("no detector should degrade on empty features, got %v", a.Degraded)
	}
}

func TestAnalyzeContextCancelled(t *testing.T) {
	eng := New(DefaultConfig(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Analyze(ctx, "p1", []domain.DocumentFeatures{
		textDoc("d1", "A Corp", sampleText),
		textDoc("d2", "B Corp", sampleText),
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

type explodingDetector struct{ panics bool }

func (explodingDetector) Kind() domain.DetectorKind { return domain.DetectorKind("exploding") }

func (d explodingDetector) Detect([]domain.DocumentFeatures, Config) ([]domain.Finding, error) {
	if d.panics {
		panic("boom")
	}
	return nil, errors.New("backend unavailable")
}

func TestAnalyzeDegradedDetectorIsolation(t *testing.T) {
	eng := &Engine{
		cfg: DefaultConfig(),
		detectors: []Detector{
			explodingDetector{},
			explodingDetector{panics: true},
			MetadataCorrelator{},
		},
		log: quietLogger(),
	}
	docs := []domain.DocumentFeatures{
		metaDoc("d1", "A Corp", domain.DocumentMetadata{Author: "j.smith"}),
		metaDoc("d2", "B Corp", domain.DocumentMetadata{Author: "j.smith"}),
	}
	a, err := eng.Analyze(context.Background(), "p1", docs)
	if err != nil {
		t.Fatalf("detector failures must not abort the run: %v", err)
	}
	if len(a.Degraded) != 2 {
		t.Fatalf("expected two degraded markers, got %v", a.Degraded)
	}
	if a.InsufficientData {
		t.Error("surviving detector fired, run is not insufficient")
	}
	if len(a.Findings) != 1 {
		t.Fatalf("expected the surviving detector's finding, got %d", len(a.Findings))
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	soon := now.Add(2 * time.Minute)
	docs := []domain.DocumentFeatures{
		{
			ID: "d1", ProjectID: "p1", Company: "A Corp",
			Text: sampleText, TextLength: len(sampleText),
			Fonts:    []string{"Arial"},
			Metadata: domain.DocumentMetadata{Author: "j.smith", CreatedAt: &now},
			Total:    floatPtr(1000000),
		},
		{
			ID: "d2", ProjectID: "p1", Company: "B Corp",
			Text:     sampleText + " together with a short appendix on site safety",
			Fonts:    []string{"Arial"},
			Metadata: domain.DocumentMetadata{Author: "j.smith", CreatedAt: &soon},
			Total:    floatPtr(1050000),
		},
		{
			ID: "d3", ProjectID: "p1", Company: "C Corp",
			Text:  "Catering services for the staff canteen including beverages menus and daily cleaning rotas",
			Total: floatPtr(2500000),
		},
	}
	reversed := []domain.DocumentFeatures{docs[2], docs[1], docs[0]}

	eng := New(DefaultConfig(), quietLogger())
	first, err := eng.Analyze(context.Background(), "p1", docs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := eng.Analyze(context.Background(), "p1", reversed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	a, err := json.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	b, err := json.Marshal(second)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Errorf("same input must produce byte-identical output:\n%s\n%s", a, b)
	}
	if first.Score <= 0 {
		t.Errorf("correlated documents must score above zero, got %v", first.Score)
	}
}

func TestFuseContributionOrdering(t *testing.T) {
	eng := New(DefaultConfig(), quietLogger())
	findings := []domain.Finding{
		{Detector: domain.DetectorErrorPattern, ProjectID: "p1", Documents: []domain.DocumentID{"d1", "d2"}, Score: 0.95},
		{Detector: domain.DetectorSimilarity, ProjectID: "p1", Documents: []domain.DocumentID{"d1", "d2"}, Score: 0.9},
	}
	score, ordered := eng.fuse(findings)

	// weighted over the two fired detectors only
	cfg := DefaultConfig()
	wSim := cfg.Weights[domain.DetectorSimilarity]
	wErr := cfg.Weights[domain.DetectorErrorPattern]
	want := (wSim*0.9 + wErr*0.95) / (wSim + wErr)
	if diff := score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("expected pair score %v, got %v", want, score)
	}

	// similarity contributes more despite its lower raw score
	if ordered[0].Detector != domain.DetectorSimilarity {
		t.Errorf("expected similarity ordered first, got %v", ordered[0].Detector)
	}
	if ordered[0].ID != "similarity-d1|d2-000" {
		t.Errorf("unexpected finding id %q", ordered[0].ID)
	}
}

func floatPtr(v float64) *float64 { return &v }
