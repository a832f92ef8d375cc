package fhirfactory

import (
	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
)

// buildDiagnosticReport implements spec §4.6's DiagnosticReport
// construction, gated on catalog.ResultsReportedPattern: a report is only
// emitted when the order text itself signals that results are being
// reported, not merely that a test was ordered. basedOn links to every
// ServiceRequest this factory built; result links to every Observation.
func (f *Factory) buildDiagnosticReport(text string, patientRef string, serviceRequests, observations []domain.FHIRResource) *domain.FHIRResource {
	if !catalog.ResultsReportedPattern.MatchString(text) {
		return nil
	}

	id := newID("diagnosticreport")
	resource := domain.FHIRResource{
		"resourceType": "DiagnosticReport",
		"status":       diagnosticStatus(text),
		"category":     []any{diagnosticCategory(text)},
		"code":         map[string]any{"text": "Diagnostic report"},
		"subject":      map[string]any{"reference": patientRef},
	}
	resource.SetID(id)
	f.arena.LinkReference(id, patientRef)

	if len(serviceRequests) > 0 {
		var basedOn []any
		for _, sr := range serviceRequests {
			ref := reference("ServiceRequest", sr.ID())
			basedOn = append(basedOn, map[string]any{"reference": ref})
			f.arena.LinkReference(id, ref)
		}
		resource["basedOn"] = basedOn
	}
	if len(observations) > 0 {
		var result []any
		for _, obs := range observations {
			ref := reference("Observation", obs.ID())
			result = append(result, map[string]any{"reference": ref})
			f.arena.LinkReference(id, ref)
		}
		resource["result"] = result
	}

	return &resource
}

func diagnosticStatus(text string) string {
	for _, status := range []string{"preliminary", "amended", "final"} {
		if catalog.DiagnosticReportStatusPatterns[status].MatchString(text) {
			return status
		}
	}
	return "final"
}

func diagnosticCategory(text string) map[string]any {
	for _, code := range []string{"RAD", "PAT", "CARDIO", "CUS", "LAB"} {
		if catalog.DiagnosticReportCategoryPatterns[code].MatchString(text) {
			return map[string]any{
				"coding": []any{map[string]any{
					"system": "http://terminology.hl7.org/CodeSystem/v2-0074",
					"code":   code,
				}},
			}
		}
	}
	return map[string]any{
		"coding": []any{map[string]any{
			"system": "http://terminology.hl7.org/CodeSystem/v2-0074",
			"code":   "LAB",
		}},
	}
}
