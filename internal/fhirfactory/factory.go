package fhirfactory

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

// Factory is the C7 implementation: maps a MergedExtraction (plus the raw
// order text, for patient-id and diagnostic-report detection) into a
// ResourceArena of referentially linked FHIR resources, one resource
// family per file the way the teacher's domain package splits
// variant/evidence/classification concerns.
type Factory struct {
	catalog *catalog.Catalog
	dosing  *dosing.Parser
	logger  *logrus.Logger

	// arena is request-local: Build works on a per-call copy of the Factory
	// holding a fresh arena, so a Factory instance can be shared across
	// concurrent requests (spec §5
	// "Resource lifetime": only the arena is per-request, the factory
	// itself is stateless).
	arena *domain.ResourceArena
}

// New constructs a Factory. cat and dosingParser are shared, read-only
// collaborators; a Factory holds no per-request state between Build calls.
func New(cat *catalog.Catalog, dosingParser *dosing.Parser, logger *logrus.Logger) *Factory {
	return &Factory{catalog: cat, dosing: dosingParser, logger: logger}
}

var _ domain.ResourceFactory = (*Factory)(nil)

// Build implements spec §4.6: constructs Patient, then every
// MedicationRequest/Condition/ServiceRequest, then a gated
// DiagnosticReport, wiring subject/basedOn/result references as it goes.
func (f *Factory) Build(ctx context.Context, text string, merged *domain.MergedExtraction) (*domain.ResourceArena, error) {
	f = &Factory{catalog: f.catalog, dosing: f.dosing, logger: f.logger, arena: domain.NewResourceArena()}

	patient, err := f.buildPatient(merged)
	if err != nil {
		return nil, err
	}
	f.arena.Put(patient)
	patientRef := reference("Patient", patient.ID())

	medicationRequests := f.buildMedicationRequests(merged, patientRef)
	for _, mr := range medicationRequests {
		f.arena.Put(mr)
	}

	conditions := f.buildConditions(merged, patientRef)
	for _, c := range conditions {
		f.arena.Put(c)
	}

	serviceRequests := f.buildServiceRequests(merged, patientRef)
	for _, sr := range serviceRequests {
		f.arena.Put(sr)
	}

	// No Observation-worthy entities are produced by any extraction tier
	// (spec §3's entity categories carry no result-value concept), so the
	// observations list a DiagnosticReport could reference is always empty
	// in the current pipeline; the wiring exists for a future tier that
	// extracts reported values.
	var observations []domain.FHIRResource

	if report := f.buildDiagnosticReport(text, patientRef, serviceRequests, observations); report != nil {
		f.arena.Put(*report)
	}

	f.logger.WithFields(logrus.Fields{
		"resource_count": len(f.arena.All()),
	}).Debug("fhir resource factory complete")

	return f.arena, nil
}
