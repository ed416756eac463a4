package engine

import (
	"fmt"
	"strings"
	"time"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// MetadataCorrelator compares file metadata pairwise. Each rule contributes
// an independent weight; the sum is clamped to [0,1]. Missing fields never
// match: absence is not evidence.
type MetadataCorrelator struct{}

func (MetadataCorrelator) Kind() domain.DetectorKind { return domain.DetectorMetadata }

func (MetadataCorrelator) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)
	var findings []domain.Finding
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if f, ok := correlateMetadata(ordered[i], ordered[j], cfg); ok {
				findings = append(findings, f)
			}
		}
	}
	return findings, nil
}

type metadataMatch struct {
	Field  string `json:"field"`
	ValueA string `json:"value_a"`
	ValueB string `json:"value_b"`
}

func correlateMetadata(a, b domain.DocumentFeatures, cfg Config) (domain.Finding, bool) {
	ma, mb := a.Metadata, b.Metadata
	var score float64
	var matches []metadataMatch

	if eqNonEmpty(ma.Author, mb.Author) {
		score += cfg.AuthorWeight
		matches = append(matches, metadataMatch{"author", ma.Author, mb.Author})
	}
	if eqNonEmpty(ma.LastModifiedBy, mb.LastModifiedBy) {
		score += cfg.AuthorWeight
		matches = append(matches, metadataMatch{"last_modified_by", ma.LastModifiedBy, mb.LastModifiedBy})
	}
	if eqNonEmpty(ma.Creator, mb.Creator) && eqNonEmpty(ma.SoftwareVersion, mb.SoftwareVersion) {
		score += cfg.SoftwareWeight
		matches = append(matches, metadataMatch{"creator_software", ma.Creator + " " + ma.SoftwareVersion, mb.Creator + " " + mb.SoftwareVersion})
	}
	if eqNonEmpty(ma.Producer, mb.Producer) && a.Company != "" && b.Company != "" && a.Company != b.Company {
		score += cfg.ProducerWeight
		matches = append(matches, metadataMatch{"producer", ma.Producer, mb.Producer})
	}
	if field, ta, tb, ok := timestampsClustered(ma, mb, time.Duration(cfg.TimestampWindow)); ok && a.Company != b.Company {
		score += cfg.TimestampWeight
		matches = append(matches, metadataMatch{field, ta.Format(time.RFC3339), tb.Format(time.RFC3339)})
	}

	if len(matches) == 0 {
		return domain.Finding{}, false
	}
	score = clamp(score)
	return newFinding(cfg, domain.DetectorMetadata, a.ProjectID,
		[]domain.DocumentID{a.ID, b.ID}, score,
		fmt.Sprintf("%d correlated metadata fields between %s and %s", len(matches), a.Company, b.Company),
		map[string]any{
			"matches":        matches,
			"window_minutes": time.Duration(cfg.TimestampWindow).Minutes(),
		}), true
}

func eqNonEmpty(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	return a != "" && b != "" && a == b
}

// timestampsClustered buckets creation/modification instants into
// window-sized bins and treats same-or-adjacent bins as clustered, which
// tolerates clock skew without exact matching.
func timestampsClustered(a, b domain.DocumentMetadata, window time.Duration) (string, time.Time, time.Time, bool) {
	if window <= 0 {
		return "", time.Time{}, time.Time{}, false
	}
	check := func(ta, tb *time.Time) bool {
		if ta == nil || tb == nil {
			return false
		}
		bucketA := ta.Unix() / int64(window.Seconds())
		bucketB := tb.Unix() / int64(window.Seconds())
		diff := bucketA - bucketB
		return diff >= -1 && diff <= 1
	}
	if check(a.CreatedAt, b.CreatedAt) {
		return "created_at", *a.CreatedAt, *b.CreatedAt, true
	}
	if check(a.ModifiedAt, b.ModifiedAt) {
		return "modified_at", *a.ModifiedAt, *b.ModifiedAt, true
	}
	return "", time.Time{}, time.Time{}, false
}
