package engine

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"

	domain "github.com/tendersentry/bidwatch/internal/domain/analysis"
)

type entityKind string

const (
	entityPhone   entityKind = "phone"
	entityEmail   entityKind = "email"
	entityPerson  entityKind = "person"
	entityCompany entityKind = "company"
)

var (
	phonePattern = regexp.MustCompile(`\+?\d[\d\s().\-]{5,18}\d`)
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	// capitalized word run ending in a legal-form suffix
	companyPattern = regexp.MustCompile(`(?:[A-Z][\w&'\-]*\s+){1,5}(?:Corporation|Corp|Company|Inc|LLC|Ltd|GmbH|Group|Holdings|Partners)\b\.?`)
	digitsOnly     = regexp.MustCompile(`\D`)
)

// EntityCrossReferencer finds identity entities (phones, emails, people,
// company names) that recur across documents submitted by different
// companies. A shared contact between nominally independent bidders is the
// key collusion signal.
type EntityCrossReferencer struct{}

func (EntityCrossReferencer) Kind() domain.DetectorKind { return domain.DetectorEntityCross }

type entityOccurrence struct {
	display   string
	kind      entityKind
	docs      map[int]struct{}
	companies map[string]struct{}
}

func (EntityCrossReferencer) Detect(docs []domain.DocumentFeatures, cfg Config) ([]domain.Finding, error) {
	ordered := sortedByID(docs)

	index := make(map[string]*entityOccurrence)
	record := func(docIdx int, kind entityKind, normalized, display string) {
		if normalized == "" {
			return
		}
		key := string(kind) + ":" + normalized
		occ, ok := index[key]
		if !ok {
			occ = &entityOccurrence{
				display:   display,
				kind:      kind,
				docs:      make(map[int]struct{}),
				companies: make(map[string]struct{}),
			}
			index[key] = occ
		}
		occ.docs[docIdx] = struct{}{}
		occ.companies[ordered[docIdx].Company] = struct{}{}
	}

	for i, d := range ordered {
		for _, e := range extractEntities(d) {
			record(i, e.kind, e.normalized, e.display)
		}
	}

	keys := make([]string, 0, len(index))
	for k := range index {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var findings []domain.Finding
	for _, key := range keys {
		occ := index[key]
		if len(occ.docs) < 2 || len(occ.companies) < 2 {
			// repeats inside one bidder's own paperwork are expected
			continue
		}
		docIDs := make([]domain.DocumentID, 0, len(occ.docs))
		for idx := range occ.docs {
			docIDs = append(docIDs, ordered[idx].ID)
		}
		companies := make([]string, 0, len(occ.companies))
		for c := range occ.companies {
			companies = append(companies, c)
		}
		sort.Strings(companies)

		score := entityScore(occ.kind, cfg.Entities)
		findings = append(findings, newFinding(cfg,
			domain.DetectorEntityCross, ordered[0].ProjectID, docIDs, score,
			fmt.Sprintf("%s %q shared across %s", occ.kind, occ.display, strings.Join(companies, ", ")),
			map[string]any{
				"entity_kind":  string(occ.kind),
				"entity_value": occ.display,
				"companies":    companies,
			}))
	}
	return findings, nil
}

func entityScore(kind entityKind, w EntityWeights) float64 {
	switch kind {
	case entityPhone:
		return w.Phone
	case entityEmail:
		return w.Email
	case entityPerson:
		return w.Person
	default:
		return w.Company
	}
}

type extractedEntity struct {
	kind       entityKind
	normalized string
	display    string
}

// extractEntities pulls typed entities from one document. Entities that
// belong to the document's own declared company are dropped as self-matches.
func extractEntities(d domain.DocumentFeatures) []extractedEntity {
	var out []extractedEntity

	for _, m := range phonePattern.FindAllString(d.Text, -1) {
		digits := digitsOnly.ReplaceAllString(m, "")
		if len(digits) < 7 || len(digits) > 15 {
			continue
		}
		out = append(out, extractedEntity{entityPhone, digits, strings.TrimSpace(m)})
	}
	for _, m := range emailPattern.FindAllString(d.Text, -1) {
		out = append(out, extractedEntity{entityEmail, strings.ToLower(m), m})
	}
	for _, m := range companyPattern.FindAllString(d.Text, -1) {
		name := strings.TrimSpace(m)
		if isOwnCompany(name, d) {
			continue
		}
		out = append(out, extractedEntity{entityCompany, normalizeCompany(name), name})
	}
	for _, name := range personNames(d.Text) {
		out = append(out, extractedEntity{entityPerson, strings.ToLower(name), name})
	}
	return out
}

var orgSuffixTokens = map[string]struct{}{
	"inc": {}, "llc": {}, "ltd": {}, "corp": {}, "corporation": {},
	"company": {}, "gmbh": {}, "group": {}, "holdings": {}, "partners": {},
}

// personNames runs lexical NER and keeps multi-token person entities; single
// tokens produce too many false positives on section headings, and anything
// carrying a legal-form token is an organization, not a person.
func personNames(text string) []string {
	doc, err := prose.NewDocument(text)
	if err != nil {
		return nil
	}
	var names []string
	for _, ent := range doc.Entities() {
		if ent.Label != "PERSON" {
			continue
		}
		fields := strings.Fields(ent.Text)
		if len(fields) < 2 {
			continue
		}
		org := false
		for _, f := range fields {
			if _, ok := orgSuffixTokens[strings.ToLower(strings.Trim(f, ".,"))]; ok {
				org = true
				break
			}
		}
		if org {
			continue
		}
		names = append(names, strings.TrimSpace(ent.Text))
	}
	return names
}

func isOwnCompany(name string, d domain.DocumentFeatures) bool {
	n := normalizeCompany(name)
	for _, own := range []string{d.Company, d.Metadata.Company} {
		if own == "" {
			continue
		}
		o := normalizeCompany(own)
		if strings.Contains(n, o) || strings.Contains(o, n) {
			return true
		}
	}
	return false
}

var companyNoise = strings.NewReplacer(".", "", ",", "", "  ", " ")

func normalizeCompany(name string) string {
	return strings.TrimSpace(strings.ToLower(companyNoise.Replace(name)))
}
