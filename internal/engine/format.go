package engine

import (
	"fmt"

	mapset "github.com/deckarep/golang-set/v2"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// FormatFingerprinter compares layout and typography pairwise: Jaccard of
// font sets plus exact agreement over bucketed structural attributes. A pair
// with nothing comparable yields no finding instead of a false zero.
type FormatFingerprinter struct{}

func (FormatFingerprinter) Kind() domain.DetectorKind { return domain.DetectorFormat }

func (FormatFingerprinter) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)
	var findings []domain.Finding
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if f, ok := compareFormat(ordered[i], ordered[j], cfg); ok {
				findings = append(findings, f)
			}
		}
	}
	return findings, nil
}

func compareFormat(a, b domain.DocumentFeatures, cfg Config) (domain.Finding, bool) {
	fontScore, fontsComparable := fontSimilarity(a.Fonts, b.Fonts)
	layoutScore, layoutComparable := layoutAgreement(a, b)

	fontW, layoutW := cfg.FontWeight, cfg.LayoutWeight
	if !fontsComparable {
		fontW = 0
	}
	if !layoutComparable {
		layoutW = 0
	}
	if fontW+layoutW == 0 {
		// undefined comparison, not a zero-similarity one
		return domain.Finding{}, false
	}
	score := (fontScore*fontW + layoutScore*layoutW) / (fontW + layoutW)
	if score <= 0 {
		return domain.Finding{}, false
	}

	return newFinding(cfg, domain.DetectorFormat, a.ProjectID,
		[]domain.DocumentID{a.ID, b.ID}, score,
		fmt.Sprintf("format fingerprint overlap %.2f between %s and %s", score, a.Company, b.Company),
		map[string]any{
			"font_jaccard":      round4(fontScore),
			"fonts_comparable":  fontsComparable,
			"layout_agreement":  round4(layoutScore),
			"layout_comparable": layoutComparable,
		}), true
}

func fontSimilarity(a, b []string) (float64, bool) {
	if len(a) == 0 || len(b) == 0 {
		return 0, false
	}
	setA := mapset.NewThreadUnsafeSet(a...)
	setB := mapset.NewThreadUnsafeSet(b...)
	union := setA.Union(setB).Cardinality()
	if union == 0 {
		return 0, false
	}
	return float64(setA.Intersect(setB).Cardinality()) / float64(union), true
}

// layoutAgreement is the fraction of comparable bucketed attributes that
// match exactly: margin bucket, spacing bucket, page count.
func layoutAgreement(a, b domain.DocumentFeatures) (float64, bool) {
	var comparable, matched int

	if a.Layout.MarginBucket != "" && b.Layout.MarginBucket != "" {
		comparable++
		if a.Layout.MarginBucket == b.Layout.MarginBucket {
			matched++
		}
	}
	if a.Layout.SpacingBucket != "" && b.Layout.SpacingBucket != "" {
		comparable++
		if a.Layout.SpacingBucket == b.Layout.SpacingBucket {
			matched++
		}
	}
	if a.PageCount > 0 && b.PageCount > 0 {
		comparable++
		if a.PageCount == b.PageCount {
			matched++
		}
	}
	if comparable == 0 {
		return 0, false
	}
	return float64(matched) / float64(comparable), true
}
