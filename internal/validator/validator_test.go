package validator

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
)

func newTestValidator() *ClinicalOrderValidator {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return New(catalog.New(), logger)
}

func TestValidate_CleanOrderYieldsNoIssues(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "Start lisinopril 10mg once daily for hypertension")
	require.NoError(t, err)
	assert.Empty(t, outcome.Issues)
	assert.Equal(t, 1.0, outcome.Confidence)
	assert.True(t, outcome.CanProcess)
	assert.Equal(t, domain.RecommendationProcess, outcome.Recommendation)
}

func TestValidate_ConditionalLogicIsFatal(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "if BP remains high, start metoprolol")
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Issues)
	assert.Equal(t, domain.CodeConditionalLogic, outcome.Issues[0].Code)
	assert.Equal(t, domain.SeverityFatal, outcome.Issues[0].Severity)
	assert.False(t, outcome.CanProcess)
	assert.Equal(t, domain.RecommendationReject, outcome.Recommendation)
}

func TestValidate_MedicationAmbiguityMaybeOr(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "start beta blocker if BP remains high, maybe metoprolol or atenolol")
	require.NoError(t, err)

	var codes []domain.ValidationCode
	for _, iss := range outcome.Issues {
		codes = append(codes, iss.Code)
	}
	assert.Contains(t, codes, domain.CodeConditionalLogic)
	assert.Contains(t, codes, domain.CodeMedicationAmbiguity)
	assert.False(t, outcome.CanProcess)
	assert.True(t, outcome.EscalationRequired)
}

func TestValidate_DrugClassWithoutSpecificDrugIsErrorNotFatal(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "start a beta blocker for blood pressure control")
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Issues)
	assert.Equal(t, domain.SeverityError, outcome.Issues[0].Severity)
}

func TestValidate_MissingDosagePermissive(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "Start aspirin daily for cardiovascular protection")
	require.NoError(t, err)
	require.NotEmpty(t, outcome.Issues)
	assert.LessOrEqual(t, outcome.Confidence, 0.7)
}

func TestValidate_OnlyOneIssuePerClass(t *testing.T) {
	v := newTestValidator()
	outcome, err := v.Validate(context.Background(), "if BP remains high, start metoprolol; unless contraindicated, give atenolol")
	require.NoError(t, err)

	count := 0
	for _, iss := range outcome.Issues {
		if iss.Code == domain.CodeConditionalLogic {
			count++
		}
	}
	assert.Equal(t, 1, count, "expected at most one CONDITIONAL_LOGIC issue per request")
}
