package fhirfactory

import (
	"strconv"
	"strings"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// linkedAttributes collects the dosage/frequency/route entities C4 linked
// to one medication entity via linked_medication_start (spec §4.3's
// attachment pass), keyed by category.
type linkedAttributes struct {
	dosage, frequency, route *domain.Entity
}

func collectLinkedAttributes(merged *domain.MergedExtraction, med domain.Entity) linkedAttributes {
	medStart := strconv.Itoa(med.Start)
	var links linkedAttributes
	for i, e := range merged.Entities[domain.CategoryDosage] {
		if e.AttributeOr("linked_medication_start", "") == medStart {
			links.dosage = &merged.Entities[domain.CategoryDosage][i]
			break
		}
	}
	for i, e := range merged.Entities[domain.CategoryFrequency] {
		if e.AttributeOr("linked_medication_start", "") == medStart {
			links.frequency = &merged.Entities[domain.CategoryFrequency][i]
			break
		}
	}
	for i, e := range merged.Entities[domain.CategoryRoute] {
		if e.AttributeOr("linked_medication_start", "") == medStart {
			links.route = &merged.Entities[domain.CategoryRoute][i]
			break
		}
	}
	return links
}

// buildMedicationRequests implements spec §4.6's MedicationRequest
// construction: one resource per medication entity, RxNorm coding when
// the catalog recognizes the drug (text-only otherwise), dosage
// instruction assembled from the dosage/frequency/route entities C4
// linked to it, and asNeededBoolean for PRN frequency.
func (f *Factory) buildMedicationRequests(merged *domain.MergedExtraction, patientRef string) []domain.FHIRResource {
	meds := merged.ByCategory(domain.CategoryMedication)
	out := make([]domain.FHIRResource, 0, len(meds))

	for _, med := range meds {
		id := newID("medicationrequest")
		resource := domain.FHIRResource{
			"resourceType": "MedicationRequest",
			"status":       "active",
			"intent":       "order",
		}
		resource.SetID(id)
		resource["medicationCodeableConcept"] = f.medicationConcept(med.Text)
		resource["subject"] = map[string]any{"reference": patientRef}
		f.arena.LinkReference(id, patientRef)

		links := collectLinkedAttributes(merged, med)

		instruction := map[string]any{"text": dosageText(med, links)}

		if links.dosage != nil {
			value := links.dosage.AttributeOr("value", "")
			unit := links.dosage.AttributeOr("normalized_unit", "")
			if value != "" && unit != "" {
				if v, err := strconv.ParseFloat(value, 64); err == nil {
					instruction["doseAndRate"] = []any{map[string]any{
						"doseQuantity": map[string]any{
							"value": v,
							"unit":  f.dosing.NormalizeUnit(unit),
						},
					}}
				}
			}
		}

		if links.frequency != nil {
			phrase := links.frequency.AttributeOr("normalized", links.frequency.Text)
			timing := f.dosing.ParseFrequency(phrase)
			if timing.AsNeeded {
				instruction["asNeededBoolean"] = true
			} else if timing.Recognized {
				instruction["timing"] = map[string]any{
					"repeat": map[string]any{
						"frequency":  timing.Frequency,
						"period":     timing.Period,
						"periodUnit": timing.PeriodUnit,
					},
				}
			}
		}

		if links.route != nil {
			// route.text populated verbatim, per spec §4.6, regardless of
			// whether the token normalized to a known canonical phrase.
			instruction["route"] = map[string]any{"text": links.route.Text}
		}

		resource["dosageInstruction"] = []any{instruction}
		out = append(out, resource)
	}
	return out
}

// medicationConcept returns a RxNorm-coded CodeableConcept when the
// catalog recognizes the surface form, otherwise a text-only concept
// (spec §4.6: "RxNorm coding when known, else text-only").
func (f *Factory) medicationConcept(surface string) map[string]any {
	key := strings.ToLower(strings.TrimSpace(surface))
	if info, ok := f.catalog.Drugs[key]; ok {
		return map[string]any{
			"coding": []any{map[string]any{
				"system":  f.catalog.Code.RxNorm,
				"code":    info.RxNorm,
				"display": info.Display,
			}},
			"text": info.Display,
		}
	}
	return map[string]any{"text": surface}
}

// dosageText renders a human-readable dosageInstruction.text the way a
// clinician reads the order back: "lisinopril 10mg oral twice daily".
func dosageText(med domain.Entity, links linkedAttributes) string {
	parts := []string{med.Text}
	if links.dosage != nil {
		parts = append(parts, links.dosage.Text)
	}
	if links.route != nil {
		parts = append(parts, links.route.Text)
	}
	if links.frequency != nil {
		parts = append(parts, links.frequency.Text)
	}
	return strings.Join(parts, " ")
}
