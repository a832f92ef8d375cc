package llmextract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

type fakeLLMClient struct {
	result map[string][]string
	err    error
}

func (f *fakeLLMClient) Extract(ctx context.Context, text string, schema map[string]any) (map[string][]string, error) {
	return f.result, f.err
}

func (f *fakeLLMClient) Summarize(ctx context.Context, bundle *domain.Bundle, role string) (string, error) {
	return "", nil
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func TestExtract_NilClientDegradesImmediately(t *testing.T) {
	extractor := New(nil, time.Second, newTestLogger())
	merged := domain.NewMergedExtraction()

	err := extractor.Extract(context.Background(), "Start lisinopril 10mg daily", merged, domain.NewEscalationDecision())
	require.NoError(t, err)
	assert.Contains(t, merged.SafetyFlags, "tier3_unavailable")
}

func TestExtract_ErrorDegradesGracefully(t *testing.T) {
	client := &fakeLLMClient{err: errors.New("timeout")}
	extractor := New(client, time.Second, newTestLogger())
	merged := domain.NewMergedExtraction()

	err := extractor.Extract(context.Background(), "Start lisinopril 10mg daily", merged, domain.NewEscalationDecision())
	require.NoError(t, err)
	assert.Contains(t, merged.SafetyFlags, "tier3_unavailable")
	assert.Empty(t, merged.All())
}

func TestExtract_MergesOnlyGapsVerbatim(t *testing.T) {
	text := "Continue warfarin 2mg daily, add aspirin 81mg daily for cardioprotection"
	client := &fakeLLMClient{result: map[string][]string{
		"medication": {"aspirin"},                    // overlaps existing tier-1 entity, should be dropped
		"condition":  {"cardioprotection"},            // verbatim gap, should be added
		"lab_test":   {"not present in text anywhere"}, // not verbatim, should be dropped
	}}
	extractor := New(client, time.Second, newTestLogger())
	merged := domain.NewMergedExtraction()
	merged.Add(domain.Entity{
		Category: domain.CategoryMedication, Text: "aspirin", Start: 33, End: 40,
		Confidence: 0.95, SourceTier: domain.TierOne,
	})

	err := extractor.Extract(context.Background(), text, merged, domain.NewEscalationDecision())
	require.NoError(t, err)

	meds := merged.ByCategory(domain.CategoryMedication)
	assert.Len(t, meds, 1, "tier-3 must not duplicate an existing span")

	conditions := merged.ByCategory(domain.CategoryCondition)
	require.Len(t, conditions, 1)
	assert.Equal(t, domain.TierThree, conditions[0].SourceTier)
	assert.Equal(t, "cardioprotection", conditions[0].Text)

	assert.Empty(t, merged.ByCategory(domain.CategoryLabTest))
}

func TestExtract_InheritsEscalationTriggerAsSafetyFlag(t *testing.T) {
	client := &fakeLLMClient{result: map[string][]string{}}
	extractor := New(client, time.Second, newTestLogger())
	merged := domain.NewMergedExtraction()
	decision := domain.NewEscalationDecision()
	decision.RecordTrigger(domain.TriggerDrugInteraction, domain.PriorityHigh, "drug_interaction:warfarin:aspirin", "interaction")

	err := extractor.Extract(context.Background(), "text", merged, decision)
	require.NoError(t, err)
	assert.Contains(t, merged.SafetyFlags, string(domain.TriggerDrugInteraction))
}
