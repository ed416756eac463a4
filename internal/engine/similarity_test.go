package engine

import (
	"math"
	"testing"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

func textDoc(id, company, text string) domain.DocumentFeatures {
	return domain.DocumentFeatures{
		ID:         domain.DocumentID(id),
		ProjectID:  "p1",
		Company:    company,
		Text:       text,
		TextLength: len(text),
	}
}

const sampleText = "The contractor shall provide reinforced concrete foundations " +
	"and asphalt paving for the access road including drainage works and site " +
	"supervision during the full construction period"

func TestSimilarityIdenticalTexts(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", sampleText),
		textDoc("d2", "B Corp", sampleText),
	}

	findings, err := SimilarityEngine{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 2 {
		t.Fatalf("expected fingerprint and tfidf findings, got %d", len(findings))
	}
	for _, f := range findings {
		if f.Score < 0.999 {
			t.Errorf("identical texts should score 1.0, got %v (%v)", f.Score, f.Evidence["method"])
		}
	}
}

func TestSimilarityWhitespaceInvariance(t *testing.T) {
	mangled := "The  contractor   shall\tprovide reinforced\n\nconcrete foundations " +
		"and asphalt paving for the access road including drainage works and site " +
		"supervision during the full construction  period"

	a := tokenize(sampleText)
	b := tokenize(mangled)
	simA := simhash(shingles(a, 2))
	simB := simhash(shingles(b, 2))
	if got := fingerprintSimilarity(simA, simB); got < 0.99 {
		t.Fatalf("whitespace-only edits should keep fingerprint similarity >= 0.99, got %v", got)
	}
}

func TestTFIDFCosineBounds(t *testing.T) {
	tokens := tokenize(sampleText)
	tf := termFrequencies(tokens)
	other := termFrequencies(tokenize("completely unrelated vocabulary about catering services menus beverages"))

	idf := inverseDocFrequencies([]map[string]float64{tf, other}, func(m map[string]float64) map[string]float64 { return m })

	if got := tfidfCosine(tf, tf, idf); math.Abs(got-1.0) > 1e-9 {
		t.Errorf("self similarity must be 1.0, got %v", got)
	}
	if got := tfidfCosine(tf, other, idf); got != 0 {
		t.Errorf("disjoint vocabularies must score 0.0, got %v", got)
	}
}

func TestSimilaritySymmetric(t *testing.T) {
	a := textDoc("d1", "A Corp", sampleText)
	b := textDoc("d2", "B Corp", sampleText+" with a few extra closing remarks appended here")

	forward, err := SimilarityEngine{}.Detect([]domain.DocumentFeatures{a, b}, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	reverse, err := SimilarityEngine{}.Detect([]domain.DocumentFeatures{b, a}, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(forward) != len(reverse) {
		t.Fatalf("order changed finding count: %d vs %d", len(forward), len(reverse))
	}
	for i := range forward {
		if forward[i].Score != reverse[i].Score {
			t.Errorf("finding %d not symmetric: %v vs %v", i, forward[i].Score, reverse[i].Score)
		}
	}
}

func TestSimilarityUnrelatedTextsNotFlagged(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", sampleText),
		textDoc("d2", "B Corp", "Catering services for the staff canteen including beverages "+
			"seasonal menus daily cleaning rotas and event buffets managed by trained "+
			"hospitality personnel under a separate framework agreement"),
	}
	cfg := DefaultConfig()
	findings, err := SimilarityEngine{}.Detect(docs, cfg)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, f := range findings {
		if f.Score >= cfg.Thresholds.High {
			t.Errorf("independent texts must not reach high risk, got %v score %v (%v)",
				f.Level, f.Score, f.Evidence["method"])
		}
	}
}

func TestSimilaritySkipsEmptyText(t *testing.T) {
	docs := []domain.DocumentFeatures{
		textDoc("d1", "A Corp", ""),
		textDoc("d2", "B Corp", sampleText),
	}
	findings, err := SimilarityEngine{}.Detect(docs, DefaultConfig())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(findings) != 0 {
		t.Fatalf("empty text must yield no findings, got %d", len(findings))
	}
}
