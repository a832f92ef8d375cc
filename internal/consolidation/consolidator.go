// Package consolidation implements Tier-2 Consolidation (C4): a regex gap
// filler that adds entities Tier-1 missed, resolves abbreviations, and
// attaches dosing attributes to the nearest medication.
package consolidation

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

const (
	tierTwoConfidence  = 0.75
	attachmentWindow   = 80
)

// Consolidator is the C4 implementation.
type Consolidator struct {
	catalog *catalog.Catalog
	dosing  *dosing.Parser
	logger  *logrus.Logger
}

// New constructs a Consolidator with explicit collaborators.
func New(cat *catalog.Catalog, dosingParser *dosing.Parser, logger *logrus.Logger) *Consolidator {
	return &Consolidator{catalog: cat, dosing: dosingParser, logger: logger}
}

var _ domain.Consolidator = (*Consolidator)(nil)

// Consolidate implements spec §4.3's four-step algorithm.
func (c *Consolidator) Consolidate(ctx context.Context, text string, tierOne []domain.Entity) (*domain.MergedExtraction, error) {
	merged := domain.NewMergedExtraction()
	for _, e := range tierOne {
		merged.Add(e)
	}

	lower := strings.ToLower(text)

	if c.underRepresented(merged, domain.CategoryDosage, "dosage_marker", catalog.DosageMarkerPattern, lower) {
		c.addTier2Dosage(merged, text)
	}
	if c.underRepresented(merged, domain.CategoryFrequency, "frequency_marker", catalog.FrequencyMarkerPattern, lower) {
		c.addTier2Frequency(merged, text)
	}
	if c.underRepresented(merged, domain.CategoryRoute, "route_marker", catalog.RouteMarkerPattern, lower) {
		c.addTier2Route(merged, text)
	}

	attachDosingAttributes(merged, text)

	merged.OverallConfidence = averageConfidence(merged)
	if merged.HasCategory(domain.CategoryDosage) || merged.HasCategory(domain.CategoryFrequency) || merged.HasCategory(domain.CategoryRoute) {
		if tierTwoContributed(merged) {
			merged.ProcessingTierUsed = domain.TierTwo
		}
	}

	c.logger.WithFields(logrus.Fields{
		"entity_count": len(merged.All()),
	}).Debug("tier-2 consolidation complete")

	return merged, nil
}

// underRepresented implements spec §4.3 step 1's heuristic: a category
// marker keyword is present in the full text but zero tier-1 entities of
// that category were extracted. The marker scan is routed through C1's
// ScanCache so C2, C4, and C5 memoize the same (class, text) lookup
// instead of each re-running the regex.
func (c *Consolidator) underRepresented(merged *domain.MergedExtraction, category domain.EntityCategory, class string, marker *regexp.Regexp, lower string) bool {
	return c.catalog.Matches(class, marker, lower) && !merged.HasCategory(category)
}

func (c *Consolidator) addTier2Dosage(merged *domain.MergedExtraction, text string) {
	for _, loc := range catalog.DosageValuePattern.FindAllStringSubmatchIndex(text, -1) {
		candidate := domain.Entity{
			Category:   domain.CategoryDosage,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: tierTwoConfidence,
			SourceTier: domain.TierTwo,
			Attributes: map[string]string{"value": text[loc[2]:loc[3]], "normalized_unit": strings.ToLower(text[loc[4]:loc[5]])},
		}
		c.resolveAndAdd(merged, candidate)
	}
}

func (c *Consolidator) addTier2Frequency(merged *domain.MergedExtraction, text string) {
	for phrase := range c.catalog.FrequencyMap {
		lowerText := strings.ToLower(text)
		idx := strings.Index(lowerText, phrase)
		for idx != -1 {
			start := idx
			end := idx + len(phrase)
			candidate := domain.Entity{
				Category:   domain.CategoryFrequency,
				Text:       text[start:end],
				Start:      start,
				End:        end,
				Confidence: tierTwoConfidence,
				SourceTier: domain.TierTwo,
				Attributes: map[string]string{"normalized": phrase},
			}
			c.resolveAndAdd(merged, candidate)
			next := strings.Index(lowerText[end:], phrase)
			if next == -1 {
				break
			}
			idx = end + next
		}
	}
}

func (c *Consolidator) addTier2Route(merged *domain.MergedExtraction, text string) {
	for _, loc := range catalog.RouteTokenPattern.FindAllStringIndex(text, -1) {
		raw := strings.ToLower(text[loc[0]:loc[1]])
		normalized, _ := c.dosing.ParseRoute(raw)
		if normalized == "" {
			normalized = raw
		}
		candidate := domain.Entity{
			Category:   domain.CategoryRoute,
			Text:       text[loc[0]:loc[1]],
			Start:      loc[0],
			End:        loc[1],
			Confidence: tierTwoConfidence,
			SourceTier: domain.TierTwo,
			Attributes: map[string]string{"normalized": normalized},
		}
		c.resolveAndAdd(merged, candidate)
	}
}

// resolveAndAdd implements spec §4.3 step 4's overlap resolution: discard
// a tier-2 span that overlaps an existing same-category entity; for a
// different-category overlap, keep both unless one fully nests inside the
// other, in which case the candidate is discarded unless it has the higher
// confidence. An existing entity is never removed.
func (c *Consolidator) resolveAndAdd(merged *domain.MergedExtraction, candidate domain.Entity) {
	for _, existing := range merged.All() {
		if !existing.Overlaps(candidate) {
			continue
		}
		if existing.Category == candidate.Category {
			return // discard tier-2 candidate
		}
		if nests(existing, candidate) || nests(candidate, existing) {
			if existing.Confidence >= candidate.Confidence {
				return
			}
			// existing is subsumed by the higher-confidence candidate; fall
			// through and add the candidate alongside it since the final set
			// only forbids same-category overlap.
		}
	}
	merged.Add(candidate)
}

func nests(outer, inner domain.Entity) bool {
	return outer.Start <= inner.Start && outer.End >= inner.End
}

// attachDosingAttributes links each dosage/frequency/route entity to the
// nearest preceding medication entity within an 80-character,
// same-sentence window (spec §4.3 step 3). Unattached entities are left
// as-is; they still contribute to the bundle as free-standing dosing
// elements (spec §4.3, §4.7 error path).
func attachDosingAttributes(merged *domain.MergedExtraction, text string) {
	meds := merged.ByCategory(domain.CategoryMedication)
	if len(meds) == 0 {
		return
	}
	for _, category := range []domain.EntityCategory{domain.CategoryDosage, domain.CategoryFrequency, domain.CategoryRoute} {
		entities := merged.Entities[category]
		for i := range entities {
			e := &entities[i]
			best, ok := nearestMedication(meds, text, *e)
			if !ok {
				continue
			}
			if e.Attributes == nil {
				e.Attributes = map[string]string{}
			}
			e.Attributes["linked_medication"] = best.AttributeOr("normalized", best.Text)
			e.Attributes["linked_medication_start"] = strconv.Itoa(best.Start)
		}
		merged.Entities[category] = entities
	}
}

func nearestMedication(meds []domain.Entity, text string, e domain.Entity) (domain.Entity, bool) {
	var best domain.Entity
	found := false
	for _, med := range meds {
		if med.End > e.Start {
			continue
		}
		gap := e.Start - med.End
		if gap > attachmentWindow {
			continue
		}
		if strings.ContainsRune(text[med.End:e.Start], '.') {
			continue // crosses a sentence boundary
		}
		if !found || med.End > best.End {
			best = med
			found = true
		}
	}
	return best, found
}

func tierTwoContributed(merged *domain.MergedExtraction) bool {
	for _, e := range merged.All() {
		if e.SourceTier == domain.TierTwo {
			return true
		}
	}
	return false
}

func averageConfidence(merged *domain.MergedExtraction) float64 {
	entities := merged.All()
	if len(entities) == 0 {
		return 0
	}
	var sum float64
	for _, e := range entities {
		sum += e.Confidence
	}
	return sum / float64(len(entities))
}
