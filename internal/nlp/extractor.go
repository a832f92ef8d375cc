// Package nlp implements the Tier-1 Clinical NLP Extractor (C3): a
// deterministic, catalog-driven matcher standing in for a real clinical
// language model. Per spec §9 Design Notes, the engine is kept behind
// domain.EntityExtractor so a host can swap in an actual NLP backend
// without touching C4/C5.
package nlp

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
)

const (
	confidenceExactLexicon = 0.95
	confidenceFuzzy        = 0.7
)

var temporalKeywords = []string{"today", "tonight", "now", "this morning", "this evening"}

// Extractor is the C3 implementation.
type Extractor struct {
	catalog    *catalog.Catalog
	logger     *logrus.Logger
	drugRx     map[string]*regexp.Regexp
	condRx     map[string]*regexp.Regexp
	labRx      map[string]*regexp.Regexp
	temporalRx map[string]*regexp.Regexp
}

// New builds an Extractor, precompiling one word-boundary regex per
// lexicon entry so Extract itself does no regex compilation.
func New(cat *catalog.Catalog, logger *logrus.Logger) *Extractor {
	e := &Extractor{
		catalog:    cat,
		logger:     logger,
		drugRx:     make(map[string]*regexp.Regexp),
		condRx:     make(map[string]*regexp.Regexp),
		labRx:      make(map[string]*regexp.Regexp),
		temporalRx: make(map[string]*regexp.Regexp),
	}
	for name := range cat.Drugs {
		e.drugRx[name] = wordBoundary(name)
	}
	for name := range cat.Conditions {
		e.condRx[name] = wordBoundary(name)
	}
	for name := range cat.LabTests {
		e.labRx[name] = wordBoundary(name)
	}
	for _, phrase := range temporalKeywords {
		e.temporalRx[phrase] = wordBoundary(phrase)
	}
	return e
}

func wordBoundary(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(phrase) + `\b`)
}

var _ domain.EntityExtractor = (*Extractor)(nil)

// Extract runs one left-to-right pass over text, per spec §4.2.
//
// Failure semantics: this deterministic matcher has no load-time
// dependency that can fail at request time, but the contract (spec §4.2
// "If the NLP engine fails to load or errors on input, C3 returns an
// empty list") is preserved for a host that swaps in a real model behind
// this same interface.
func (e *Extractor) Extract(ctx context.Context, text string) ([]domain.Entity, error) {
	if e.catalog == nil {
		e.logger.Warn("tier-1 catalog unavailable, returning no entities")
		return nil, nil
	}

	var spans []domain.Entity
	spans = append(spans, e.matchLexicon(text, domain.CategoryMedication, e.drugRx, func(name string) map[string]string {
		info := e.catalog.Drugs[name]
		return map[string]string{"normalized": name, "code_system": "RxNorm", "code": info.RxNorm, "display": info.Display}
	})...)
	spans = append(spans, e.matchLexicon(text, domain.CategoryCondition, e.condRx, func(name string) map[string]string {
		info := e.catalog.Conditions[name]
		return map[string]string{"normalized": name, "code_system": "SNOMED", "code": info.SNOMED, "display": info.Display}
	})...)
	for name, rx := range e.labRx {
		info := e.catalog.LabTests[name]
		cat := domain.CategoryLabTest
		if !info.IsLab {
			cat = domain.CategoryProcedure
		}
		spans = append(spans, matchAll(text, rx, cat, confidenceExactLexicon, map[string]string{
			"normalized": name, "code_system": "LOINC", "code": info.LOINC, "display": info.Display,
		})...)
	}
	spans = append(spans, e.matchDosage(text)...)
	spans = append(spans, e.matchFrequency(text)...)
	spans = append(spans, e.matchRoute(text)...)
	spans = append(spans, e.matchTemporal(text)...)

	resolved := resolveSameSpanTies(spans)
	resolved = resolveOverlaps(resolved)
	sort.SliceStable(resolved, func(i, j int) bool { return resolved[i].Start < resolved[j].Start })
	return resolved, nil
}

func (e *Extractor) matchLexicon(text string, category domain.EntityCategory, table map[string]*regexp.Regexp, attrs func(string) map[string]string) []domain.Entity {
	var out []domain.Entity
	for name, rx := range table {
		out = append(out, matchAll(text, rx, category, confidenceExactLexicon, attrs(name))...)
	}
	return out
}

func matchAll(text string, rx *regexp.Regexp, category domain.EntityCategory, confidence float64, attrs map[string]string) []domain.Entity {
	var out []domain.Entity
	for _, loc := range rx.FindAllStringIndex(text, -1) {
		out = append(out, domain.Entity{
			Category:   category,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: confidence,
			SourceTier: domain.TierOne,
			Attributes: attrs,
		})
	}
	return out
}

func (e *Extractor) matchDosage(text string) []domain.Entity {
	var out []domain.Entity
	for _, loc := range catalog.DosageValuePattern.FindAllStringSubmatchIndex(text, -1) {
		value := text[loc[2]:loc[3]]
		unitRaw := strings.ToLower(text[loc[4]:loc[5]])
		unit := e.catalog.DoseUnits[unitRaw]
		if unit == "" {
			unit = unitRaw
		}
		out = append(out, domain.Entity{
			Category:   domain.CategoryDosage,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: confidenceExactLexicon,
			SourceTier: domain.TierOne,
			Attributes: map[string]string{"value": value, "normalized_unit": unit},
		})
	}
	return out
}

func (e *Extractor) matchFrequency(text string) []domain.Entity {
	var out []domain.Entity
	for phrase := range e.catalog.FrequencyMap {
		rx := wordBoundary(phrase)
		for _, loc := range rx.FindAllStringIndex(text, -1) {
			out = append(out, domain.Entity{
				Category:   domain.CategoryFrequency,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: confidenceExactLexicon,
				SourceTier: domain.TierOne,
				Attributes: map[string]string{"normalized": phrase},
			})
		}
	}
	for _, loc := range catalog.QNHoursPattern.FindAllStringIndex(text, -1) {
		out = append(out, domain.Entity{
			Category:   domain.CategoryFrequency,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: confidenceFuzzy,
			SourceTier: domain.TierOne,
			Attributes: map[string]string{"normalized": strings.ToLower(text[loc[0]:loc[1]])},
		})
	}
	return out
}

func (e *Extractor) matchRoute(text string) []domain.Entity {
	var out []domain.Entity
	for _, loc := range catalog.RouteTokenPattern.FindAllStringIndex(text, -1) {
		raw := strings.ToLower(text[loc[0]:loc[1]])
		normalized := e.catalog.Abbreviations[raw]
		if normalized == "" {
			normalized = raw
		}
		out = append(out, domain.Entity{
			Category:   domain.CategoryRoute,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: confidenceExactLexicon,
			SourceTier: domain.TierOne,
			Attributes: map[string]string{"normalized": normalized},
		})
	}
	return out
}

func (e *Extractor) matchTemporal(text string) []domain.Entity {
	var out []domain.Entity
	for phrase, rx := range e.temporalRx {
		for _, loc := range rx.FindAllStringIndex(text, -1) {
			out = append(out, domain.Entity{
				Category:   domain.CategoryTemporal,
				Text:       text[loc[0]:loc[1]],
				Start:      loc[0],
				End:        loc[1],
				Confidence: confidenceFuzzy,
				SourceTier: domain.TierOne,
				Attributes: map[string]string{"normalized": phrase},
			})
		}
	}
	return out
}

// resolveSameSpanTies applies spec §4.2's tie-break: when two patterns
// match the identical [start,end) span, the longer match wins (moot here
// since spans are identical length by construction), then the
// higher-priority category wins.
func resolveSameSpanTies(spans []domain.Entity) []domain.Entity {
	type key struct{ start, end int }
	bySpan := make(map[key]domain.Entity)
	var order []key
	for _, s := range spans {
		k := key{s.Start, s.End}
		existing, seen := bySpan[k]
		if !seen {
			bySpan[k] = s
			order = append(order, k)
			continue
		}
		if s.Category.Priority() < existing.Category.Priority() {
			bySpan[k] = s
		}
	}
	out := make([]domain.Entity, 0, len(order))
	for _, k := range order {
		out = append(out, bySpan[k])
	}
	return out
}

// resolveOverlaps collapses overlapping spans of the same category down
// to one survivor per cluster (spec §3, §8: no two final entities of the
// same category overlap). Lexicon entries routinely nest this way, e.g.
// the frequency phrases "once daily" and "daily" both matching inside
// "once daily for hypertension". Within a cluster the longer span wins;
// equal-length spans are broken by higher confidence, per spec §4.2.
func resolveOverlaps(spans []domain.Entity) []domain.Entity {
	byCategory := make(map[domain.EntityCategory][]domain.Entity)
	var order []domain.EntityCategory
	for _, s := range spans {
		if _, ok := byCategory[s.Category]; !ok {
			order = append(order, s.Category)
		}
		byCategory[s.Category] = append(byCategory[s.Category], s)
	}

	var out []domain.Entity
	for _, category := range order {
		entities := byCategory[category]
		sort.SliceStable(entities, func(i, j int) bool { return entities[i].Start < entities[j].Start })
		kept := make([]bool, len(entities))
		for i := range kept {
			kept[i] = true
		}
		for i := range entities {
			if !kept[i] {
				continue
			}
			for j := i + 1; j < len(entities); j++ {
				if !kept[j] || !entities[i].Overlaps(entities[j]) {
					continue
				}
				if spanWins(entities[j], entities[i]) {
					kept[i] = false
					break
				}
				kept[j] = false
			}
		}
		for i, e := range entities {
			if kept[i] {
				out = append(out, e)
			}
		}
	}
	return out
}

// spanWins reports whether candidate beats existing for the same
// overlapping cluster: the longer span wins, then the higher-confidence
// one.
func spanWins(candidate, existing domain.Entity) bool {
	candLen := candidate.End - candidate.Start
	existLen := existing.End - existing.Start
	if candLen != existLen {
		return candLen > existLen
	}
	return candidate.Confidence > existing.Confidence
}
