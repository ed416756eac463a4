package engine

import (
	"fmt"
	"sort"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// Detector is implemented by every signal axis: a frozen document set in,
// zero or more findings out. Detectors are pure functions of their inputs and
// never depend on each other.
type Detector interface {
	Kind() domain.DetectorKind
	Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error)
}

// defaultDetectors returns the built-in detectors in priority order.
func defaultDetectors() []Detector {
	return []Detector{
		SimilarityEngine{},
		PriceGradientAnalyzer{},
		EntityCrossReferencer{},
		MetadataCorrelator{},
		FormatFingerprinter{},
		ErrorPatternMatcher{},
	}
}

// sortedByID returns a copy of docs ordered by document ID so every pair
// iteration and every output ordering is deterministic.
func sortedByID(docs []domain.DocumentFeatures) []domain.DocumentFeatures {
	out := make([]domain.DocumentFeatures, len(docs))
	copy(out, docs)
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// clamp bounds a score to [0,1].
func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// newFinding builds a finding with the shared threshold table applied.
func newFinding(cfg Config, kind domain.DetectorKind, projectID string, docs []domain.DocumentID, score float64, summary string, evidence map[string]any) domain.Finding {
	score = clamp(score)
	sorted := make([]domain.DocumentID, len(docs))
	copy(sorted, docs)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	return domain.Finding{
		Detector:  kind,
		ProjectID: projectID,
		Documents: sorted,
		Score:     score,
		Level:     cfg.Thresholds.Level(score),
		Summary:   summary,
		Evidence:  evidence,
	}
}

// runDetector isolates one detector: an error or panic becomes a degraded
// marker, never a run abort.
func runDetector(d Detector, docs []domain.DocumentFeatures, cfg Config) (findings []domain.Finding, err error) {
	defer func() {
		if r := recover(); r != nil {
			findings = nil
			err = fmt.Errorf("detector %s panic: %v", d.Kind(), r)
		}
	}()
	return d.Detect(docs, cfg)
}
