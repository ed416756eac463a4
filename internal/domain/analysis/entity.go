package analysis

import (
	"sort"
	"time"
)

// RunID tipe untuk analysis run
type RunID string

// DetectorKind enum
type DetectorKind string

const (
	DetectorSimilarity   DetectorKind = "similarity"
	DetectorPricing      DetectorKind = "pricing"
	DetectorEntityCross  DetectorKind = "entitycross"
	DetectorMetadata     DetectorKind = "metadata"
	DetectorFormat       DetectorKind = "format"
	DetectorErrorPattern DetectorKind = "errorpattern"
)

// DetectorPriority is the fixed tie-break order for evidence sorting.
// Lower index wins when contributions are equal.
var DetectorPriority = []DetectorKind{
	DetectorSimilarity,
	DetectorPricing,
	DetectorEntityCross,
	DetectorMetadata,
	DetectorFormat,
	DetectorErrorPattern,
}

// PriorityIndex returns the rank of a detector kind in DetectorPriority.
func PriorityIndex(k DetectorKind) int {
	for i, p := range DetectorPriority {
		if p == k {
			return i
		}
	}
	return len(DetectorPriority)
}

// RiskLevel enum
type RiskLevel string

const (
	LevelLow      RiskLevel = "low"
	LevelMedium   RiskLevel = "medium"
	LevelHigh     RiskLevel = "high"
	LevelCritical RiskLevel = "critical"
)

var levelRank = map[RiskLevel]int{
	LevelLow:      0,
	LevelMedium:   1,
	LevelHigh:     2,
	LevelCritical: 3,
}

// Rank returns the ordering of a level, low=0 .. critical=3.
func (l RiskLevel) Rank() int { return levelRank[l] }

// Thresholds is the single shared score→level table used by every detector
// and by the aggregator. Boundaries must be monotonic non-decreasing.
type Thresholds struct {
	Medium   float64 `yaml:"medium" json:"medium"`
	High     float64 `yaml:"high" json:"high"`
	Critical float64 `yaml:"critical" json:"critical"`
}

// Level maps a score in [0,1] to a discrete risk level.
func (t Thresholds) Level(score float64) RiskLevel {
	switch {
	case score >= t.Critical:
		return LevelCritical
	case score >= t.High:
		return LevelHigh
	case score >= t.Medium:
		return LevelMedium
	default:
		return LevelLow
	}
}

// Finding is one detector's output for one comparison. Immutable once
// produced; pairwise findings always reference two distinct documents of the
// same project, set-wise findings reference every involved document.
type Finding struct {
	ID        string         `json:"id,omitempty"`
	Detector  DetectorKind   `json:"detector"`
	ProjectID string         `json:"project_id"`
	Documents []DocumentID   `json:"documents"`
	Score     float64        `json:"score"`
	Level     RiskLevel      `json:"level"`
	Summary   string         `json:"summary"`
	Evidence  map[string]any `json:"evidence,omitempty"`
}

// PairKey returns a stable key for the finding's document set.
func (f Finding) PairKey() string {
	ids := make([]string, len(f.Documents))
	for i, d := range f.Documents {
		ids[i] = string(d)
	}
	sort.Strings(ids)
	key := ""
	for i, id := range ids {
		if i > 0 {
			key += "|"
		}
		key += id
	}
	return key
}

// DegradedDetector marks a detector that failed internally during a run.
// The run proceeds on the remaining detectors; the failure is data, not a
// process fault.
type DegradedDetector struct {
	Detector DetectorKind `json:"detector"`
	Reason   string       `json:"reason"`
}

// RiskAssessment is the aggregate output of one analysis run for one project.
// Runs are append-only: a re-analysis creates a new assessment and never
// mutates prior ones.
type RiskAssessment struct {
	ID               RunID              `json:"id"`
	TenantID         string             `json:"tenant_id"`
	ProjectID        string             `json:"project_id"`
	Score            float64            `json:"score"`
	Level            RiskLevel          `json:"level"`
	DocumentCount    int                `json:"document_count"`
	Findings         []Finding          `json:"findings"`
	Degraded         []DegradedDetector `json:"degraded,omitempty"`
	InsufficientData bool               `json:"insufficient_data,omitempty"`
	ReportURL        string             `json:"report_url,omitempty"`
	Narrative        string             `json:"narrative,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// LevelCounts rekap jumlah assessment per level
type LevelCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}
