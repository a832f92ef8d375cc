package fhirfactory

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/consolidation"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func buildMerged(t *testing.T, text string, tierOne []domain.Entity) *domain.MergedExtraction {
	t.Helper()
	c := consolidation.New(catalog.New(), dosing.NewParser(), newTestLogger())
	merged, err := c.Consolidate(context.Background(), text, tierOne)
	require.NoError(t, err)
	return merged
}

func TestBuild_PatientGetsGeneratedIDWhenNoIdentifyingEntity(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Start aspirin 81mg oral daily for cardiovascular protection"
	tierOne := []domain.Entity{
		{Category: domain.CategoryMedication, Text: "aspirin", Start: 6, End: 13, Confidence: 0.95, SourceTier: domain.TierOne},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	var patient domain.FHIRResource
	for _, r := range arena.All() {
		if r.ResourceType() == "Patient" {
			patient = r
		}
	}
	require.NotNil(t, patient)
	assert.Contains(t, patient.ID(), "patient-")
}

func TestBuild_PatientUsesMRNWhenProvided(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Start aspirin 81mg oral daily"
	tierOne := []domain.Entity{
		{Category: domain.CategoryMedication, Text: "aspirin", Start: 6, End: 13, Confidence: 0.95, SourceTier: domain.TierOne},
		{Category: domain.CategoryPatient, Text: "MRN 12345", Start: 0, End: 0, Confidence: 1,
			SourceTier: domain.TierOne, Attributes: map[string]string{"mrn": "12345"}},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	var patient domain.FHIRResource
	for _, r := range arena.All() {
		if r.ResourceType() == "Patient" {
			patient = r
		}
	}
	require.NotNil(t, patient)
	assert.Equal(t, "patient-mrn-12345", patient.ID())
}

func TestBuild_MedicationRequestGetsRxNormCodingWhenKnown(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Continue lisinopril 10mg oral once daily for hypertension"
	tierOne := []domain.Entity{
		{Category: domain.CategoryMedication, Text: "lisinopril", Start: 9, End: 19, Confidence: 0.95, SourceTier: domain.TierOne, Attributes: map[string]string{"normalized": "lisinopril"}},
		{Category: domain.CategoryCondition, Text: "hypertension", Start: 45, End: 57, Confidence: 0.9, SourceTier: domain.TierOne},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	var mr domain.FHIRResource
	for _, r := range arena.All() {
		if r.ResourceType() == "MedicationRequest" {
			mr = r
		}
	}
	require.NotNil(t, mr)
	concept := mr["medicationCodeableConcept"].(map[string]any)
	codings := concept["coding"].([]any)
	require.Len(t, codings, 1)
	assert.Equal(t, "29046", codings[0].(map[string]any)["code"])
	assert.Equal(t, "active", mr["status"])
	assert.Equal(t, "order", mr["intent"])

	timing, ok := mr["dosageInstruction"].([]any)[0].(map[string]any)["timing"]
	require.True(t, ok)
	repeat := timing.(map[string]any)["repeat"].(map[string]any)
	assert.Equal(t, 1, repeat["frequency"])
	assert.Equal(t, "d", repeat["periodUnit"])
}

func TestBuild_ConditionTextOnlyWhenNotInCatalog(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Continue amoxicillin 500mg oral TID for an unusual post-viral syndrome"
	tierOne := []domain.Entity{
		{Category: domain.CategoryMedication, Text: "amoxicillin", Start: 9, End: 20, Confidence: 0.95, SourceTier: domain.TierOne},
		{Category: domain.CategoryCondition, Text: "an unusual post-viral syndrome", Start: 40, End: 70, Confidence: 0.6, SourceTier: domain.TierOne},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	var cond domain.FHIRResource
	for _, r := range arena.All() {
		if r.ResourceType() == "Condition" {
			cond = r
		}
	}
	require.NotNil(t, cond)
	code := cond["code"].(map[string]any)
	assert.Nil(t, code["coding"])
	assert.Equal(t, "an unusual post-viral syndrome", code["text"])
}

func TestBuild_DiagnosticReportOnlyWhenResultsSignaled(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Order CBC; results pending for anemia workup"
	tierOne := []domain.Entity{
		{Category: domain.CategoryLabTest, Text: "CBC", Start: 6, End: 9, Confidence: 0.9, SourceTier: domain.TierOne},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	found := false
	for _, r := range arena.All() {
		if r.ResourceType() == "DiagnosticReport" {
			found = true
		}
	}
	assert.True(t, found, "results pending should trigger a DiagnosticReport")
}

func TestBuild_NoDiagnosticReportWhenOnlyOrdering(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Order CBC for anemia workup"
	tierOne := []domain.Entity{
		{Category: domain.CategoryLabTest, Text: "CBC", Start: 6, End: 9, Confidence: 0.9, SourceTier: domain.TierOne},
	}
	merged := buildMerged(t, text, tierOne)

	arena, err := f.Build(context.Background(), text, merged)
	require.NoError(t, err)

	for _, r := range arena.All() {
		assert.NotEqual(t, "DiagnosticReport", r.ResourceType())
	}
}

func TestBuild_FailsOnUnparseableBirthDate(t *testing.T) {
	f := New(catalog.New(), dosing.NewParser(), newTestLogger())
	text := "Start aspirin 81mg oral daily"
	tierOne := []domain.Entity{
		{Category: domain.CategoryMedication, Text: "aspirin", Start: 6, End: 13, Confidence: 0.95, SourceTier: domain.TierOne},
		{Category: domain.CategoryPatient, Text: "patient info", Start: 0, End: 0, Confidence: 1,
			SourceTier: domain.TierOne, Attributes: map[string]string{"birth_date": "not-a-date"}},
	}
	merged := buildMerged(t, text, tierOne)

	_, err := f.Build(context.Background(), text, merged)
	assert.Error(t, err)
}
