package engine

import (
	"fmt"
	"hash/fnv"
	"math"
	"math/bits"
	"strings"
	"unicode"

	mapset "github.com/deckarep/golang-set/v2"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

const fingerprintBits = 64

// stopwords dropped before similarity hashing; high-frequency filler that
// every tender contains regardless of authorship.
var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "of": {}, "to": {}, "in": {}, "a": {}, "an": {},
	"for": {}, "is": {}, "are": {}, "on": {}, "with": {}, "by": {}, "as": {},
	"at": {}, "or": {}, "be": {}, "this": {}, "that": {}, "from": {},
	"shall": {}, "will": {}, "must": {}, "any": {}, "all": {}, "per": {},
}

// SimilarityEngine flags near-duplicate and statistically similar text pairs
// using a weighted 64-bit fingerprint and TF-IDF cosine over a shared
// project vocabulary.
type SimilarityEngine struct{}

func (SimilarityEngine) Kind() domain.DetectorKind { return domain.DetectorSimilarity }

func (SimilarityEngine) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)

	type docText struct {
		doc    domain.DocumentFeatures
		tokens []string
		tf     map[string]float64
		print  uint64
	}

	var prepared []docText
	for _, d := range ordered {
		tokens := tokenize(d.Text)
		if len(tokens) < cfg.MinTokens {
			// empty or near-empty text: similarity is undefined, skip
			// rather than reporting a false zero
			continue
		}
		prepared = append(prepared, docText{
			doc:    d,
			tokens: tokens,
			tf:     termFrequencies(tokens),
			print:  simhash(shingles(tokens, cfg.ShingleSize)),
		})
	}
	if len(prepared) < 2 {
		return nil, nil
	}

	idf := inverseDocFrequencies(prepared, func(dt docText) map[string]float64 { return dt.tf })

	var findings []domain.Finding
	for i := 0; i < len(prepared); i++ {
		for j := i + 1; j < len(prepared); j++ {
			a, b := prepared[i], prepared[j]

			// two unrelated fingerprints agree on about half their bits,
			// so the raw similarity of independent texts sits near 0.5;
			// only the excess over that baseline is signal
			hashSim := fingerprintSimilarity(a.print, b.print)
			hashScore := clamp((hashSim - 0.5) / 0.5)
			cosine := tfidfCosine(a.tf, b.tf, idf)
			jac := tokenJaccard(a.tokens, b.tokens)

			emit := func(method string, score, other float64) {
				findings = append(findings, newFinding(cfg,
					domain.DetectorSimilarity, a.doc.ProjectID,
					[]domain.DocumentID{a.doc.ID, b.doc.ID},
					score,
					fmt.Sprintf("%s similarity %.2f between %s and %s", method, score, a.doc.Company, b.doc.Company),
					map[string]any{
						"method":            method,
						"fingerprint_score": round4(hashScore),
						"cosine_score":      round4(cosine),
						"jaccard_score":     round4(jac),
						"weaker_score":      round4(math.Min(score, other)),
						"text_length_a":     a.doc.TextLength,
						"text_length_b":     b.doc.TextLength,
					}))
			}

			if hashScore >= cfg.SimilarityFloor {
				emit("fingerprint", hashScore, cosine)
			}
			if cosine >= cfg.SimilarityFloor {
				emit("tfidf", cosine, hashScore)
			}
		}
	}
	return findings, nil
}

// tokenize lowercases and splits on anything that is not a letter or digit.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) < 2 {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// shingles builds overlapping word n-grams with their occurrence counts.
func shingles(tokens []string, size int) map[string]int {
	if size < 1 {
		size = 1
	}
	out := make(map[string]int)
	if len(tokens) < size {
		return out
	}
	for i := 0; i+size <= len(tokens); i++ {
		out[strings.Join(tokens[i:i+size], " ")]++
	}
	return out
}

// simhash folds weighted feature hashes into one fingerprint: each feature
// votes +weight on bits set in its hash and -weight on bits unset; the final
// bit is the sign of the accumulator.
func simhash(features map[string]int) uint64 {
	if len(features) == 0 {
		return 0
	}
	var acc [fingerprintBits]int
	for feature, weight := range features {
		h := fnv.New64a()
		h.Write([]byte(feature))
		sum := h.Sum64()
		for bit := 0; bit < fingerprintBits; bit++ {
			if sum&(1<<uint(bit)) != 0 {
				acc[bit] += weight
			} else {
				acc[bit] -= weight
			}
		}
	}
	var print uint64
	for bit := 0; bit < fingerprintBits; bit++ {
		if acc[bit] > 0 {
			print |= 1 << uint(bit)
		}
	}
	return print
}

// fingerprintSimilarity converts Hamming distance into [0,1].
func fingerprintSimilarity(a, b uint64) float64 {
	return 1.0 - float64(bits.OnesCount64(a^b))/float64(fingerprintBits)
}

func termFrequencies(tokens []string) map[string]float64 {
	tf := make(map[string]float64, len(tokens))
	for _, t := range tokens {
		tf[t]++
	}
	return tf
}

// inverseDocFrequencies computes smoothed IDF over the whole project corpus.
// The +1 in the denominator keeps terms that appear in every document (or in
// a single-document corpus) finite and positive.
func inverseDocFrequencies[T any](docs []T, tf func(T) map[string]float64) map[string]float64 {
	df := make(map[string]float64)
	for _, d := range docs {
		for term := range tf(d) {
			df[term]++
		}
	}
	n := float64(len(docs))
	idf := make(map[string]float64, len(df))
	for term, count := range df {
		idf[term] = math.Log(n/(count+1)) + 1
	}
	return idf
}

// tfidfCosine computes cosine similarity of the two TF-IDF weight vectors.
// Terms present in only one document contribute zero to the dot product but
// still count toward that document's magnitude.
func tfidfCosine(tfA, tfB, idf map[string]float64) float64 {
	var dot, magA, magB float64
	for term, fa := range tfA {
		wa := fa * idf[term]
		magA += wa * wa
		if fb, ok := tfB[term]; ok {
			dot += wa * fb * idf[term]
		}
	}
	for term, fb := range tfB {
		wb := fb * idf[term]
		magB += wb * wb
	}
	if magA == 0 || magB == 0 {
		return 0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}

func tokenJaccard(a, b []string) float64 {
	setA := mapset.NewThreadUnsafeSet(a...)
	setB := mapset.NewThreadUnsafeSet(b...)
	union := setA.Union(setB).Cardinality()
	if union == 0 {
		return 0
	}
	return float64(setA.Intersect(setB).Cardinality()) / float64(union)
}

func round4(v float64) float64 { return math.Round(v*10000) / 10000 }
