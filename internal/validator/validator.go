// Package validator implements the Clinical Validator (C2): a pattern
// scan over raw order text that rejects or flags constructs unfit for
// FHIR encoding before any extraction is attempted.
package validator

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
)

// truncateLen bounds how much raw clinical text the validator will ever
// write to a log line, echoing the original's clinical_text[:100]
// hygiene (SPEC_FULL.md Supplemented features) without pulling in its
// HTTP-middleware HIPAA machinery.
const truncateLen = 100

// ClinicalOrderValidator is the C2 implementation, grounded line-for-line
// on original_source/src/nl_fhir/services/clinical_validator.py.
type ClinicalOrderValidator struct {
	catalog *catalog.Catalog
	logger  *logrus.Logger
}

// New constructs a ClinicalOrderValidator with its collaborators injected
// explicitly, per spec §9 Design Notes (no package singleton).
func New(cat *catalog.Catalog, logger *logrus.Logger) *ClinicalOrderValidator {
	return &ClinicalOrderValidator{catalog: cat, logger: logger}
}

var _ domain.Validator = (*ClinicalOrderValidator)(nil)

// Validate runs the nine issue-class scans in the fixed order spec §4.1
// specifies and derives the outcome via domain.DeriveValidationOutcome.
func (v *ClinicalOrderValidator) Validate(ctx context.Context, text string) (domain.ValidationOutcome, error) {
	preview := text
	if len(preview) > truncateLen {
		preview = preview[:truncateLen]
	}
	v.logger.WithField("clinical_text", preview).Debug("validating clinical order")

	var issues []domain.ValidationIssue
	lower := strings.ToLower(text)

	if iss, ok := v.detectConditionalLogic(lower); ok {
		issues = append(issues, iss)
	}
	if iss, ok := v.detectMedicationAmbiguity(lower); ok {
		issues = append(issues, iss)
	}
	if iss, ok := v.detectMissingFields(lower); ok {
		issues = append(issues, iss)
	}
	if iss, ok := v.detectProtocolDependency(lower); ok {
		issues = append(issues, iss)
	}
	if iss, ok := v.detectVagueIntent(lower); ok {
		issues = append(issues, iss)
	}
	if iss, ok := v.detectContraindicationLogic(lower); ok {
		issues = append(issues, iss)
	}

	outcome := domain.DeriveValidationOutcome(issues)
	if outcome.EscalationRequired {
		v.logger.WithFields(logrus.Fields{
			"recommendation": outcome.Recommendation,
			"issue_count":    len(issues),
		}).Warn("clinical order requires escalation")
	}
	return outcome, nil
}

func (v *ClinicalOrderValidator) detectConditionalLogic(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindFirst("conditional_logic", catalog.ConditionalLogicPatterns, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityFatal,
			Code:       domain.CodeConditionalLogic,
			Message:    "order contains conditional logic that cannot be encoded as a discrete FHIR request",
			Guidance:   "rewrite the order as an unconditional, single-path instruction",
			FHIRImpact: "MedicationRequest/ServiceRequest cannot express branching conditions",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	return domain.ValidationIssue{}, false
}

func (v *ClinicalOrderValidator) detectMedicationAmbiguity(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindFirst("medication_ambiguity", catalog.MedicationAmbiguityPatterns, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityFatal,
			Code:       domain.CodeMedicationAmbiguity,
			Message:    "order leaves medication choice ambiguous",
			Guidance:   "specify a single, unambiguous medication",
			FHIRImpact: "MedicationRequest.medicationCodeableConcept requires one specific medication",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m, RequiresClarification: true},
		}, true
	}
	if m := v.catalog.FindString("drug_class", catalog.DrugClassPattern, lower); m != "" && !v.hasSpecificMedication(lower) {
		return domain.ValidationIssue{
			Severity:   domain.SeverityError,
			Code:       domain.CodeMedicationAmbiguity,
			Message:    "order names a drug class without a specific medication",
			Guidance:   "name the specific drug within the class",
			FHIRImpact: "MedicationRequest.medicationCodeableConcept cannot resolve a class to a single RxNorm code",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m, SuggestedFix: "replace the class term with a specific drug"},
		}, true
	}
	return domain.ValidationIssue{}, false
}

func (v *ClinicalOrderValidator) hasSpecificMedication(lower string) bool {
	for name := range v.catalog.Drugs {
		if strings.Contains(lower, name) {
			return true
		}
	}
	return false
}

func (v *ClinicalOrderValidator) detectMissingFields(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindString("missing_medication", catalog.MissingMedicationPattern, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityFatal,
			Code:       domain.CodeMissingMedication,
			Message:    "order does not identify a medication",
			Guidance:   "name the medication to be ordered",
			FHIRImpact: "MedicationRequest requires medicationCodeableConcept or medicationReference",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	if m := v.catalog.FindString("missing_dosage", catalog.MissingDosagePattern, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityError,
			Code:       domain.CodeMissingDosage,
			Message:    "order does not specify a dosage",
			Guidance:   "specify dose amount and unit",
			FHIRImpact: "dosageInstruction.doseAndRate will be omitted",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	if m := v.catalog.FindString("missing_frequency", catalog.MissingFrequencyPattern, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityError,
			Code:       domain.CodeMissingFrequency,
			Message:    "order does not specify a dosing frequency",
			Guidance:   "specify how often the medication should be taken",
			FHIRImpact: "dosageInstruction.timing will be omitted",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}

	// The three checks above only fire on an explicit "TBD"/"unclear"
	// admission. A medication can just as easily be ordered with no
	// dosage/frequency value present at all (neither stated nor flagged as
	// unclear), so catch that directly when a specific drug is named but
	// the corresponding marker never appears anywhere in the text.
	if v.hasSpecificMedication(lower) {
		if !v.catalog.Matches("dosage_marker", catalog.DosageMarkerPattern, lower) {
			return domain.ValidationIssue{
				Severity:   domain.SeverityError,
				Code:       domain.CodeMissingDosage,
				Message:    "order does not specify a dosage",
				Guidance:   "specify dose amount and unit",
				FHIRImpact: "dosageInstruction.doseAndRate will be omitted",
			}, true
		}
		if !v.catalog.Matches("frequency_marker", catalog.FrequencyMarkerPattern, lower) {
			return domain.ValidationIssue{
				Severity:   domain.SeverityError,
				Code:       domain.CodeMissingFrequency,
				Message:    "order does not specify a dosing frequency",
				Guidance:   "specify how often the medication should be taken",
				FHIRImpact: "dosageInstruction.timing will be omitted",
			}, true
		}
		// Route is left out of this semantic fallback deliberately: route of
		// administration is routinely implied (oral by default) and spec
		// §8's clean-order law requires zero issues for an order that omits
		// it, unlike dosage/frequency which are never safely assumed.
	}
	return domain.ValidationIssue{}, false
}

func (v *ClinicalOrderValidator) detectProtocolDependency(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindFirst("protocol_dependency", catalog.ProtocolDependencyPatterns, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityError,
			Code:       domain.CodeProtocolReference,
			Message:    "order defers to an external protocol rather than stating discrete instructions",
			Guidance:   "inline the protocol's specific instructions",
			FHIRImpact: "no FHIR resource can represent a reference to an external protocol document",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	return domain.ValidationIssue{}, false
}

func (v *ClinicalOrderValidator) detectVagueIntent(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindFirst("vague_intent", catalog.VagueIntentPhrases, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityWarning,
			Code:       domain.CodeVagueIntent,
			Message:    "order states an intent without naming the means to achieve it",
			Guidance:   "name the specific medication or intervention",
			FHIRImpact: "resources will carry only a free-text description of intent",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	return domain.ValidationIssue{}, false
}

func (v *ClinicalOrderValidator) detectContraindicationLogic(lower string) (domain.ValidationIssue, bool) {
	if m := v.catalog.FindFirst("contraindication_logic", catalog.ContraindicationLogicPatterns, lower); m != "" {
		return domain.ValidationIssue{
			Severity:   domain.SeverityWarning,
			Code:       domain.CodeContraindicationLogic,
			Message:    "order embeds a contraindication check rather than a discrete instruction",
			Guidance:   "resolve the contraindication before submitting the order",
			FHIRImpact: "no FHIR element expresses conditional contraindication logic",
			Clinical:   &domain.ClinicalDetail{DetectedPattern: m},
		}, true
	}
	return domain.ValidationIssue{}, false
}
