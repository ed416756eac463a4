package engine

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// Engine runs every detector over a frozen document set and fuses their
// findings into one assessment. It holds no mutable state: all intermediate
// state is local to a run, so concurrent Analyze calls are independent.
type Engine struct {
	cfg       Config
	detectors []Detector
	log       *logrus.Logger
}

// New builds an engine with the built-in detectors.
func New(cfg Config, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.New()
	}
	return &Engine{cfg: cfg, detectors: defaultDetectors(), log: log}
}

// Analyze implements the analysis.Engine port. The only error it returns is
// context cancellation; every detector failure is represented as data on the
// assessment.
func (e *Engine) Analyze(ctx context.Context, projectID string, docs []domain.DocumentFeatures) (*domain.RiskAssessment, error) {
	assessment := &domain.RiskAssessment{
		ProjectID:     projectID,
		Level:         domain.LevelLow,
		DocumentCount: len(docs),
		Findings:      []domain.Finding{},
	}
	if len(docs) < 2 {
		assessment.InsufficientData = true
		return assessment, nil
	}

	frozen := sortedByID(docs)

	var findings []domain.Finding
	for _, d := range e.detectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out, err := runDetector(d, frozen, e.cfg)
		if err != nil {
			e.log.WithFields(logrus.Fields{
				"detector": string(d.Kind()),
				"project":  projectID,
			}).WithError(err).Warn("detector degraded, continuing without it")
			assessment.Degraded = append(assessment.Degraded, domain.DegradedDetector{
				Detector: d.Kind(),
				Reason:   err.Error(),
			})
			continue
		}
		findings = append(findings, out...)
	}

	if len(findings) == 0 {
		assessment.InsufficientData = true
		return assessment, nil
	}

	score, ordered := e.fuse(findings)
	assessment.Score = score
	assessment.Level = e.cfg.Thresholds.Level(score)
	assessment.Findings = ordered
	return assessment, nil
}

// fuse computes the per-pair weighted scores, combines them into the project
// score, and orders findings by their contribution.
func (e *Engine) fuse(findings []domain.Finding) (float64, []domain.Finding) {
	type group struct {
		best  map[domain.DetectorKind]float64
		score float64
	}
	groups := make(map[string]*group)
	for _, f := range findings {
		key := f.PairKey()
		g, ok := groups[key]
		if !ok {
			g = &group{best: make(map[domain.DetectorKind]float64)}
			groups[key] = g
		}
		if f.Score > g.best[f.Detector] {
			g.best[f.Detector] = f.Score
		}
	}

	// per comparison: weighted sum renormalized over the detectors that
	// fired, so a pair with fewer signal axes is not penalized
	for _, g := range groups {
		var weighted, weightSum float64
		for kind, best := range g.best {
			w := e.cfg.weight(kind)
			weighted += w * best
			weightSum += w
		}
		if weightSum > 0 {
			g.score = clamp(weighted / weightSum)
		}
	}

	groupScores := make([]float64, 0, len(groups))
	for _, g := range groups {
		groupScores = append(groupScores, g.score)
	}
	sort.Sort(sort.Reverse(sort.Float64Slice(groupScores)))

	projectScore := groupScores[0]
	if e.cfg.Combiner == CombinerTopK && e.cfg.TopK > 0 {
		k := e.cfg.TopK
		if k > len(groupScores) {
			k = len(groupScores)
		}
		var sum float64
		for _, s := range groupScores[:k] {
			sum += s
		}
		projectScore = sum / float64(k)
	}

	// contribution of a finding = its score times its detector's share of
	// the fired weight within its comparison group
	contribution := func(f domain.Finding) float64 {
		g := groups[f.PairKey()]
		var weightSum float64
		for kind := range g.best {
			weightSum += e.cfg.weight(kind)
		}
		if weightSum == 0 {
			return 0
		}
		return f.Score * e.cfg.weight(f.Detector) / weightSum
	}

	ordered := make([]domain.Finding, len(findings))
	copy(ordered, findings)
	sort.SliceStable(ordered, func(i, j int) bool {
		ci, cj := contribution(ordered[i]), contribution(ordered[j])
		if ci != cj {
			return ci > cj
		}
		pi, pj := domain.PriorityIndex(ordered[i].Detector), domain.PriorityIndex(ordered[j].Detector)
		if pi != pj {
			return pi < pj
		}
		return ordered[i].PairKey() < ordered[j].PairKey()
	})
	for i := range ordered {
		ordered[i].ID = fmt.Sprintf("%s-%s-%03d", ordered[i].Detector, ordered[i].PairKey(), i)
	}
	return clamp(projectScore), ordered
}
