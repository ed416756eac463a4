package engine

import (
	"fmt"
	"math"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// Base scores per pricing signal, scaled by the shared weight/threshold
// machinery downstream.
const (
	progressionScore = 0.9
	clusterScore     = 0.8
	coefficientScore = 0.7
)

// PriceGradientAnalyzer inspects the set of bid totals for mathematical
// structure (laddering, fixed coefficients, steering) and compares line-item
// cost composition pairwise.
type PriceGradientAnalyzer struct{}

func (PriceGradientAnalyzer) Kind() domain.DetectorKind { return domain.DetectorPricing }

type pricedDoc struct {
	doc   domain.DocumentFeatures
	total float64
}

func (PriceGradientAnalyzer) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)

	var priced []pricedDoc
	for _, d := range ordered {
		if t, ok := bidTotal(d); ok {
			priced = append(priced, pricedDoc{doc: d, total: t})
		}
	}

	var findings []domain.Finding
	if f, ok := progressionFinding(priced, cfg); ok {
		findings = append(findings, f)
	}
	findings = append(findings, coefficientFindings(priced, cfg)...)
	if f, ok := clusterFinding(priced, cfg); ok {
		findings = append(findings, f)
	}
	findings = append(findings, breakdownFindings(ordered, cfg)...)
	return findings, nil
}

// bidTotal uses the declared total, falling back to the line-item sum.
func bidTotal(d domain.DocumentFeatures) (float64, bool) {
	if d.Total != nil && *d.Total > 0 {
		return *d.Total, true
	}
	if len(d.LineItems) == 0 {
		return 0, false
	}
	var sum float64
	for _, v := range d.LineItems {
		sum += v
	}
	if sum <= 0 {
		return 0, false
	}
	return sum, true
}

func distinctBidders(priced []pricedDoc) int {
	seen := map[string]struct{}{}
	for _, p := range priced {
		seen[p.doc.Company] = struct{}{}
	}
	return len(seen)
}

func allDocIDs(priced []pricedDoc) []domain.DocumentID {
	ids := make([]domain.DocumentID, len(priced))
	for i, p := range priced {
		ids[i] = p.doc.ID
	}
	return ids
}

// progressionFinding tests whether the sorted totals form an arithmetic or
// geometric sequence within tolerance. Either across three or more distinct
// bidders is a strong laddering signal.
func progressionFinding(priced []pricedDoc, cfg Config) (domain.Finding, bool) {
	if len(priced) < 3 || distinctBidders(priced) < 3 {
		return domain.Finding{}, false
	}
	totals := make([]float64, len(priced))
	for i, p := range priced {
		totals[i] = p.total
	}
	sort.Float64s(totals)

	kind, param, maxDev := "", 0.0, 0.0
	if dev, step, ok := arithmeticDeviation(totals); ok && dev <= cfg.ProgressionTolerance {
		kind, param, maxDev = "arithmetic", step, dev
	} else if dev, ratio, ok := geometricDeviation(totals); ok && dev <= cfg.ProgressionTolerance {
		kind, param, maxDev = "geometric", ratio, dev
	} else {
		return domain.Finding{}, false
	}

	projectID := priced[0].doc.ProjectID
	return newFinding(cfg, domain.DetectorPricing, projectID, allDocIDs(priced),
		progressionScore,
		fmt.Sprintf("bid totals form an %s progression across %d bidders", kind, len(priced)),
		map[string]any{
			"test":          "progression",
			"progression":   kind,
			"parameter":     round4(param),
			"max_deviation": round4(maxDev),
			"totals":        totals,
		}), true
}

// arithmeticDeviation returns the worst relative deviation of consecutive
// differences from their mean. A zero mean difference means all totals are
// equal, which is a perfect (degenerate) progression.
func arithmeticDeviation(sorted []float64) (dev, step float64, ok bool) {
	diffs := consecutive(sorted, func(a, b float64) float64 { return b - a })
	mean := meanOf(diffs)
	if mean == 0 {
		return 0, 0, true
	}
	return maxRelDeviation(diffs, mean), mean, true
}

func geometricDeviation(sorted []float64) (dev, ratio float64, ok bool) {
	for _, v := range sorted {
		if v <= 0 {
			return 0, 0, false
		}
	}
	ratios := consecutive(sorted, func(a, b float64) float64 { return b / a })
	mean := meanOf(ratios)
	if mean == 0 {
		return 0, 0, false
	}
	return maxRelDeviation(ratios, mean), mean, true
}

func consecutive(sorted []float64, f func(a, b float64) float64) []float64 {
	out := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		out = append(out, f(sorted[i-1], sorted[i]))
	}
	return out
}

func meanOf(vs []float64) float64 {
	var sum float64
	for _, v := range vs {
		sum += v
	}
	return sum / float64(len(vs))
}

func maxRelDeviation(vs []float64, mean float64) float64 {
	var max float64
	for _, v := range vs {
		if dev := math.Abs(v-mean) / math.Abs(mean); dev > max {
			max = dev
		}
	}
	return max
}

// coefficientFindings flags pairs whose totals relate by a small agreed
// multiplier, e.g. 1.05, within tolerance.
func coefficientFindings(priced []pricedDoc, cfg Config) []domain.Finding {
	var findings []domain.Finding
	for i := 0; i < len(priced); i++ {
		for j := i + 1; j < len(priced); j++ {
			a, b := priced[i], priced[j]
			if a.total <= 0 || b.total <= 0 {
				continue
			}
			ratio := math.Max(a.total, b.total) / math.Min(a.total, b.total)
			coeff, dev, ok := nearestCoefficient(ratio, cfg.Coefficients, cfg.CoefficientTolerance)
			if !ok {
				continue
			}
			findings = append(findings, newFinding(cfg,
				domain.DetectorPricing, a.doc.ProjectID,
				[]domain.DocumentID{a.doc.ID, b.doc.ID},
				coefficientScore,
				fmt.Sprintf("bid totals of %s and %s relate by fixed coefficient %.2f", a.doc.Company, b.doc.Company, coeff),
				map[string]any{
					"test":        "fixed_coefficient",
					"ratio":       round4(ratio),
					"coefficient": coeff,
					"deviation":   round4(dev),
					"total_a":     a.total,
					"total_b":     b.total,
				}))
		}
	}
	return findings
}

func nearestCoefficient(ratio float64, coefficients []float64, tolerance float64) (coeff, dev float64, ok bool) {
	best := math.Inf(1)
	for _, c := range coefficients {
		if d := math.Abs(ratio - c); d < best {
			best, coeff = d, c
		}
	}
	if best <= tolerance {
		return coeff, best, true
	}
	return 0, 0, false
}

// clusterFinding detects totals packed unusually tightly around their mean
// (price steering).
func clusterFinding(priced []pricedDoc, cfg Config) (domain.Finding, bool) {
	if len(priced) < 3 {
		return domain.Finding{}, false
	}
	var sum float64
	for _, p := range priced {
		sum += p.total
	}
	mean := sum / float64(len(priced))
	if mean == 0 {
		return domain.Finding{}, false
	}

	var maxDev float64
	within := 0
	for _, p := range priced {
		dev := math.Abs(p.total-mean) / mean
		if dev <= cfg.ClusterTolerance {
			within++
		}
		if dev > maxDev {
			maxDev = dev
		}
	}
	allWithin := within == len(priced)
	mostWithin := float64(within)/float64(len(priced)) >= 0.8 && maxDev < cfg.ClusterTolerance*2
	if !allWithin && !mostWithin {
		return domain.Finding{}, false
	}

	return newFinding(cfg, domain.DetectorPricing, priced[0].doc.ProjectID,
		allDocIDs(priced), clusterScore,
		fmt.Sprintf("%d of %d bid totals cluster within %.1f%% of the mean", within, len(priced), cfg.ClusterTolerance*100),
		map[string]any{
			"test":              "cluster",
			"mean_total":        round4(mean),
			"max_deviation":     round4(maxDev),
			"totals_within":     within,
			"totals_considered": len(priced),
		}), true
}

// breakdownFindings compares proportional line-item cost structure pairwise:
// near-identical internal ratios despite different totals point at a shared
// pricing sheet.
func breakdownFindings(ordered []domain.DocumentFeatures, cfg Config) []domain.Finding {
	type breakdown struct {
		doc    domain.DocumentFeatures
		ratios map[string]float64
		labels mapset.Set[string]
	}
	var bds []breakdown
	for _, d := range ordered {
		if len(d.LineItems) < 2 {
			continue
		}
		var total float64
		for _, v := range d.LineItems {
			total += v
		}
		if total <= 0 {
			continue
		}
		ratios := make(map[string]float64, len(d.LineItems))
		labels := mapset.NewThreadUnsafeSet[string]()
		for label, v := range d.LineItems {
			norm := strings.ToLower(strings.TrimSpace(label))
			ratios[norm] = v / total
			labels.Add(norm)
		}
		bds = append(bds, breakdown{doc: d, ratios: ratios, labels: labels})
	}

	var findings []domain.Finding
	for i := 0; i < len(bds); i++ {
		for j := i + 1; j < len(bds); j++ {
			a, b := bds[i], bds[j]
			shared := a.labels.Intersect(b.labels)
			if shared.Cardinality() < 2 {
				continue
			}
			union := a.labels.Union(b.labels).Cardinality()
			jaccard := float64(shared.Cardinality()) / float64(union)

			var sumDiff, maxDiff float64
			for label := range shared.Iter() {
				diff := math.Abs(a.ratios[label] - b.ratios[label])
				sumDiff += diff
				if diff > maxDiff {
					maxDiff = diff
				}
			}
			avgDiff := sumDiff / float64(shared.Cardinality())
			if avgDiff >= cfg.BreakdownTolerance || maxDiff >= cfg.BreakdownTolerance*2 {
				continue
			}

			score := clamp(1 - avgDiff*50)
			findings = append(findings, newFinding(cfg,
				domain.DetectorPricing, a.doc.ProjectID,
				[]domain.DocumentID{a.doc.ID, b.doc.ID}, score,
				fmt.Sprintf("line-item cost composition of %s and %s differs by only %.2f%% on average", a.doc.Company, b.doc.Company, avgDiff*100),
				map[string]any{
					"test":           "breakdown",
					"label_jaccard":  round4(jaccard),
					"avg_ratio_diff": round4(avgDiff),
					"max_ratio_diff": round4(maxDiff),
					"shared_labels":  sortedSlice(shared),
				}))
		}
	}
	return findings
}

func sortedSlice(s mapset.Set[string]) []string {
	out := s.ToSlice()
	sort.Strings(out)
	return out
}
