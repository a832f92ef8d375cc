package fhirfactory

import (
	"strings"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// buildServiceRequests implements spec §4.6's ServiceRequest construction
// for lab_test and procedure entities: category distinguishes laboratory
// work from other procedures, LOINC coding when the catalog recognizes
// the test.
func (f *Factory) buildServiceRequests(merged *domain.MergedExtraction, patientRef string) []domain.FHIRResource {
	var candidates []domain.Entity
	candidates = append(candidates, merged.ByCategory(domain.CategoryLabTest)...)
	candidates = append(candidates, merged.ByCategory(domain.CategoryProcedure)...)

	out := make([]domain.FHIRResource, 0, len(candidates))
	for _, entity := range candidates {
		id := newID("servicerequest")
		resource := domain.FHIRResource{
			"resourceType": "ServiceRequest",
			"status":       "active",
			"intent":       "order",
			"code":         f.serviceConcept(entity.Text),
			"category":     []any{f.serviceCategory(entity.Text)},
			"subject":      map[string]any{"reference": patientRef},
		}
		resource.SetID(id)
		f.arena.LinkReference(id, patientRef)
		out = append(out, resource)
	}
	return out
}

func (f *Factory) serviceConcept(surface string) map[string]any {
	key := strings.ToLower(strings.TrimSpace(surface))
	if info, ok := f.catalog.LabTests[key]; ok {
		return map[string]any{
			"coding": []any{map[string]any{
				"system":  f.catalog.Code.LOINC,
				"code":    info.LOINC,
				"display": info.Display,
			}},
			"text": info.Display,
		}
	}
	return map[string]any{"text": surface}
}

// serviceCategory reports whether the catalog classifies the surface form
// as a laboratory test (spec §4.6: "category laboratory vs other").
func (f *Factory) serviceCategory(surface string) map[string]any {
	key := strings.ToLower(strings.TrimSpace(surface))
	isLab := false
	if info, ok := f.catalog.LabTests[key]; ok {
		isLab = info.IsLab
	}
	if isLab {
		return map[string]any{
			"coding": []any{map[string]any{
				"system":  f.catalog.Code.ActCode,
				"code":    "108252007",
				"display": "Laboratory procedure",
			}},
		}
	}
	return map[string]any{
		"coding": []any{map[string]any{
			"system":  f.catalog.Code.ActCode,
			"code":    "386053000",
			"display": "Evaluation procedure",
		}},
	}
}
