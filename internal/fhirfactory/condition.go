package fhirfactory

import (
	"strings"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// buildConditions implements spec §4.6's Condition construction:
// clinicalStatus=active, verificationStatus=confirmed, SNOMED coding when
// the catalog recognizes the surface form.
func (f *Factory) buildConditions(merged *domain.MergedExtraction, patientRef string) []domain.FHIRResource {
	conditions := merged.ByCategory(domain.CategoryCondition)
	out := make([]domain.FHIRResource, 0, len(conditions))

	for _, cond := range conditions {
		id := newID("condition")
		resource := domain.FHIRResource{
			"resourceType": "Condition",
			"clinicalStatus": map[string]any{
				"coding": []any{map[string]any{
					"system": f.catalog.Code.ConditionClinical,
					"code":   "active",
				}},
			},
			"verificationStatus": map[string]any{
				"coding": []any{map[string]any{
					"system": f.catalog.Code.ConditionVerStatus,
					"code":   "confirmed",
				}},
			},
			"code":    f.conditionConcept(cond.Text),
			"subject": map[string]any{"reference": patientRef},
		}
		resource.SetID(id)
		f.arena.LinkReference(id, patientRef)
		out = append(out, resource)
	}
	return out
}

func (f *Factory) conditionConcept(surface string) map[string]any {
	key := strings.ToLower(strings.TrimSpace(surface))
	if info, ok := f.catalog.Conditions[key]; ok {
		return map[string]any{
			"coding": []any{map[string]any{
				"system":  f.catalog.Code.SNOMED,
				"code":    info.SNOMED,
				"display": info.Display,
			}},
			"text": surface,
		}
	}
	return map[string]any{"text": surface}
}
