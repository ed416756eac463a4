package engine

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// Duration lets YAML configs carry values like "10m".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := time.ParseDuration(node.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", node.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Combiner modes for the project-level score.
const (
	CombinerMax  = "max"
	CombinerTopK = "topk"
)

// EntityWeights scores an entity hit by its specificity. Exact contact
// matches carry more weight than fuzzy company-name mentions.
type EntityWeights struct {
	Phone   float64 `yaml:"phone"`
	Email   float64 `yaml:"email"`
	Person  float64 `yaml:"person"`
	Company float64 `yaml:"company"`
}

// Config carries every tunable of the detection engine. It is immutable for
// the duration of a run and passed explicitly, so concurrent runs can use
// different configurations.
type Config struct {
	// Per-detector weights for pair aggregation. Renormalized over the
	// detectors that actually fired for a pair.
	Weights map[domain.DetectorKind]float64 `yaml:"weights"`

	// Shared score→level table for detectors and aggregator alike.
	Thresholds domain.Thresholds `yaml:"thresholds"`

	// Project score combiner: max surfaces the single worst pair, topk
	// averages the K worst.
	Combiner string `yaml:"combiner"`
	TopK     int    `yaml:"top_k"`

	// Text similarity.
	SimilarityFloor float64 `yaml:"similarity_floor"`
	ShingleSize     int     `yaml:"shingle_size"`
	MinTokens       int     `yaml:"min_tokens"`

	// Metadata correlation.
	TimestampWindow Duration `yaml:"timestamp_window"`
	AuthorWeight    float64  `yaml:"author_weight"`
	SoftwareWeight  float64  `yaml:"software_weight"`
	TimestampWeight float64  `yaml:"timestamp_weight"`
	ProducerWeight  float64  `yaml:"producer_weight"`

	// Format fingerprint combiner.
	FontWeight   float64 `yaml:"font_weight"`
	LayoutWeight float64 `yaml:"layout_weight"`

	// Error patterns: per-signature weight of the saturating score and the
	// corpus share above which a signature counts as common noise.
	SignatureWeight      float64 `yaml:"signature_weight"`
	CommonSignatureShare float64 `yaml:"common_signature_share"`

	// Entity cross-reference.
	Entities EntityWeights `yaml:"entities"`

	// Price analysis.
	ProgressionTolerance float64   `yaml:"progression_tolerance"`
	CoefficientTolerance float64   `yaml:"coefficient_tolerance"`
	Coefficients         []float64 `yaml:"coefficients"`
	ClusterTolerance     float64   `yaml:"cluster_tolerance"`
	BreakdownTolerance   float64   `yaml:"breakdown_tolerance"`
}

// DefaultConfig returns the tuned defaults. Values are starting points for
// configuration, not calibrated truth.
func DefaultConfig() Config {
	return Config{
		Weights: map[domain.DetectorKind]float64{
			domain.DetectorSimilarity:   0.22,
			domain.DetectorPricing:      0.20,
			domain.DetectorEntityCross:  0.20,
			domain.DetectorMetadata:     0.14,
			domain.DetectorFormat:       0.12,
			domain.DetectorErrorPattern: 0.12,
		},
		Thresholds: domain.Thresholds{Medium: 0.3, High: 0.5, Critical: 0.75},
		Combiner:   CombinerMax,
		TopK:       3,

		SimilarityFloor: 0.15,
		ShingleSize:     2,
		MinTokens:       5,

		TimestampWindow: Duration(10 * time.Minute),
		AuthorWeight:    0.35,
		SoftwareWeight:  0.20,
		TimestampWeight: 0.35,
		ProducerWeight:  0.20,

		FontWeight:   0.5,
		LayoutWeight: 0.5,

		SignatureWeight:      0.35,
		CommonSignatureShare: 0.5,

		Entities: EntityWeights{Phone: 0.9, Email: 0.9, Person: 0.75, Company: 0.6},

		ProgressionTolerance: 0.02,
		CoefficientTolerance: 0.005,
		Coefficients: []float64{
			1.01, 1.02, 1.03, 1.05, 1.08, 1.10,
			1.11, 1.15, 1.20, 1.25, 1.50,
		},
		ClusterTolerance:   0.03,
		BreakdownTolerance: 0.01,
	}
}

// weight returns the configured weight for a detector, 0 when unset.
func (c Config) weight(k domain.DetectorKind) float64 {
	return c.Weights[k]
}
