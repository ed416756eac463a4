package engine

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

// knownTypos maps misspellings seen in tender documents to their dictionary
// form. A shared misspelling is a strong same-source hint.
var knownTypos = map[string]string{
	"recieve":      "receive",
	"recieved":     "received",
	"seperate":     "separate",
	"seperately":   "separately",
	"concret":      "concrete",
	"asphlat":      "asphalt",
	"guarentee":    "guarantee",
	"guarenteed":   "guaranteed",
	"maintainance": "maintenance",
	"occurence":    "occurrence",
	"comissioning": "commissioning",
	"enviroment":   "environment",
	"enviromental": "environmental",
	"reinforcment": "reinforcement",
	"excavtion":    "excavation",
	"galvanised":   "galvanized",
	"waranty":      "warranty",
	"supercede":    "supersede",
	"accomodate":   "accommodate",
	"liasion":      "liaison",
}

// supersededStandards maps retracted standard identifiers to their
// replacement. Citing a long-replaced edition is an anomaly worth matching
// across bidders.
var supersededStandards = map[string]string{
	"ISO 9001:2008":      "ISO 9001:2015",
	"ISO 14001:2004":     "ISO 14001:2015",
	"OHSAS 18001:2007":   "ISO 45001:2018",
	"ISO/IEC 27001:2013": "ISO/IEC 27001:2022",
	"ISO 19011:2011":     "ISO 19011:2018",
	"ISO 31000:2009":     "ISO 31000:2018",
	"EN 1990:2002":       "EN 1990:2023",
	"ASTM C39-04":        "ASTM C39-21",
}

var standardRefPattern = regexp.MustCompile(`(?:ISO(?:/IEC)?|OHSAS|EN|ASTM)\s?[A-Z]?\d{2,5}(?:[-:]\d{2,4})?(?::\d{4})?`)

var punctuationAnomalies = []struct {
	name    string
	pattern *regexp.Regexp
}{
	{"repeated_punctuation", regexp.MustCompile(`[,.;:!?]{2,}`)},
	{"space_before_punctuation", regexp.MustCompile(`\w [,.;:]`)},
	{"double_space", regexp.MustCompile(`\S {2,}\S`)},
	{"missing_space_after_comma", regexp.MustCompile(`\w,\w`)},
}

// fullwidth digits mixed with ASCII digits in one document point to fragments
// pasted from a different editor locale
var (
	asciiDigitPattern     = regexp.MustCompile(`[0-9]`)
	fullwidthDigitPattern = regexp.MustCompile(`[０-９]`)
)

// ErrorPatternMatcher extracts normalized anomaly signatures per document and
// flags pairs sharing signatures that are rare across the project corpus.
// The pair score saturates with the number of distinct shared signatures.
type ErrorPatternMatcher struct{}

func (ErrorPatternMatcher) Kind() domain.DetectorKind { return domain.DetectorErrorPattern }

func (ErrorPatternMatcher) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)

	signatures := make([]mapset.Set[string], len(ordered))
	occurrences := make(map[string]int)
	for i, d := range ordered {
		sigs := anomalySignatures(d.Text)
		signatures[i] = sigs
		for sig := range sigs.Iter() {
			occurrences[sig]++
		}
	}

	var findings []domain.Finding
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			shared := signatures[i].Intersect(signatures[j])
			var rare []string
			for sig := range shared.Iter() {
				if !commonAcrossCorpus(occurrences[sig], len(ordered), cfg.CommonSignatureShare) {
					rare = append(rare, sig)
				}
			}
			if len(rare) == 0 {
				continue
			}
			sort.Strings(rare)

			// diminishing returns: each extra shared signature adds less
			score := 1 - math.Pow(1-cfg.SignatureWeight, float64(len(rare)))
			a, b := ordered[i], ordered[j]
			findings = append(findings, newFinding(cfg,
				domain.DetectorErrorPattern, a.ProjectID,
				[]domain.DocumentID{a.ID, b.ID}, score,
				fmt.Sprintf("%d shared rare anomaly signatures between %s and %s", len(rare), a.Company, b.Company),
				map[string]any{
					"shared_signatures": rare,
					"shared_count":      len(rare),
				}))
		}
	}
	return findings, nil
}

// commonAcrossCorpus treats a signature as background noise once it shows up
// in a large share of a non-trivial corpus.
func commonAcrossCorpus(occurrences, corpusSize int, maxShare float64) bool {
	if corpusSize < 4 {
		return false
	}
	return occurrences >= 3 && float64(occurrences)/float64(corpusSize) > maxShare
}

// anomalySignatures returns (kind:value) signatures for typos, superseded
// standard references and punctuation irregularities.
func anomalySignatures(text string) mapset.Set[string] {
	sigs := mapset.NewThreadUnsafeSet[string]()

	for _, token := range tokenize(text) {
		if _, bad := knownTypos[token]; bad {
			sigs.Add("typo:" + token)
		}
	}

	for _, ref := range standardRefPattern.FindAllString(text, -1) {
		normalized := normalizeStandardRef(ref)
		if _, stale := supersededStandards[normalized]; stale {
			sigs.Add("stale_standard:" + normalized)
		}
	}

	for _, anomaly := range punctuationAnomalies {
		if anomaly.pattern.MatchString(text) {
			sigs.Add("punctuation:" + anomaly.name)
		}
	}

	if asciiDigitPattern.MatchString(text) && fullwidthDigitPattern.MatchString(text) {
		sigs.Add("punctuation:mixed_width_digits")
	}
	return sigs
}

func normalizeStandardRef(ref string) string {
	ref = strings.Join(strings.Fields(ref), " ")
	// "ISO 9001-2008" and "ISO 9001:2008" cite the same edition
	if idx := strings.LastIndex(ref, "-"); idx > 0 && len(ref)-idx == 5 {
		ref = ref[:idx] + ":" + ref[idx+1:]
	}
	return ref
}
