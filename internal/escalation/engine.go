// Package escalation implements the Escalation Engine (C5): six ordered
// assessments deciding whether Tier-3 should run, grounded line-for-line
// on the original's simplified escalation engine.
package escalation

import (
	"context"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/catalog"
	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/pkg/dosing"
)

// complexityCap is the maximum value the complexity score can reach,
// per spec §4.4.
const complexityCap = 10.0

// EscalationEngine is the C5 implementation. It performs only table
// lookups and small regex scans, honoring spec §4.4's ≤100ms budget with
// no I/O of its own.
type EscalationEngine struct {
	catalog   *catalog.Catalog
	logger    *logrus.Logger
	threshold float64
}

// New constructs an EscalationEngine. threshold<=0 falls back to the
// spec-default 7.0 complexity-score cutoff.
func New(cat *catalog.Catalog, logger *logrus.Logger, threshold float64) *EscalationEngine {
	if threshold <= 0 {
		threshold = 7.0
	}
	return &EscalationEngine{catalog: cat, logger: logger, threshold: threshold}
}

var _ domain.EscalationEngine = (*EscalationEngine)(nil)

// Evaluate runs the six assessments in the fixed order spec §4.4
// specifies.
func (e *EscalationEngine) Evaluate(ctx context.Context, text string, merged *domain.MergedExtraction) (*domain.EscalationDecision, error) {
	decision := domain.NewEscalationDecision()
	lower := strings.ToLower(text)
	meds := merged.ByCategory(domain.CategoryMedication)

	e.assessHighRiskMedication(decision, meds)
	e.assessCriticalCondition(decision, lower)
	e.assessDrugInteraction(decision, meds)
	e.assessDosageCeiling(decision, merged)
	e.assessIncompleteExtraction(decision, merged, lower)
	e.assessComplexity(decision, text, merged)

	decision.Confidence = e.decisionConfidence(decision, merged)

	if decision.ShouldEscalate {
		e.logger.WithFields(logrus.Fields{
			"trigger":  decision.Trigger,
			"priority": decision.Priority,
		}).Info("escalation triggered")
	}
	return decision, nil
}

func medName(e domain.Entity) string {
	name := e.AttributeOr("normalized", "")
	if name == "" {
		name = strings.ToLower(e.Text)
	}
	return name
}

// assessHighRiskMedication is trigger 1: priority=immediate.
func (e *EscalationEngine) assessHighRiskMedication(decision *domain.EscalationDecision, meds []domain.Entity) {
	for _, med := range meds {
		name := medName(med)
		if _, ok := e.catalog.HighRiskMedications[name]; ok {
			decision.RecordTrigger(domain.TriggerHighRiskMedication, domain.PriorityImmediate,
				"high_risk_medication:"+name, "high-risk medication "+name+" present")
			continue
		}
		if info, ok := e.catalog.Drugs[name]; ok {
			if _, highRiskClass := e.catalog.HighRiskClasses[info.Class]; highRiskClass {
				decision.RecordTrigger(domain.TriggerHighRiskMedication, domain.PriorityImmediate,
					"high_risk_class:"+info.Class, "high-risk drug class "+info.Class+" present")
			}
		}
	}
}

// assessCriticalCondition is trigger 2: priority=immediate.
func (e *EscalationEngine) assessCriticalCondition(decision *domain.EscalationDecision, lower string) {
	for condition, keywords := range e.catalog.CriticalConditions {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				decision.RecordTrigger(domain.TriggerCriticalCondition, domain.PriorityImmediate,
					"critical_condition:"+condition, "critical condition keyword "+kw+" present")
				break
			}
		}
	}
}

// assessDrugInteraction is trigger 3: priority=high.
func (e *EscalationEngine) assessDrugInteraction(decision *domain.EscalationDecision, meds []domain.Entity) {
	names := make([]string, 0, len(meds))
	for _, m := range meds {
		names = append(names, medName(m))
	}
	for i := 0; i < len(names); i++ {
		partners := e.catalog.InteractionPairs[names[i]]
		for j := 0; j < len(names); j++ {
			if i == j {
				continue
			}
			if contains(partners, names[j]) {
				flag := "drug_interaction:" + names[i] + ":" + names[j]
				decision.RecordTrigger(domain.TriggerDrugInteraction, domain.PriorityHigh,
					flag, "potential interaction between "+names[i]+" and "+names[j])
			}
		}
	}
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

// assessDosageCeiling is trigger 4: priority=high.
func (e *EscalationEngine) assessDosageCeiling(decision *domain.EscalationDecision, merged *domain.MergedExtraction) {
	for _, dose := range merged.ByCategory(domain.CategoryDosage) {
		linked := dose.AttributeOr("linked_medication", "")
		if linked == "" {
			continue
		}
		ceiling, ok := e.catalog.DoseCeilings[linked]
		if !ok {
			continue
		}
		value, ok := dosing.ExtractNumber(dose.AttributeOr("value", dose.Text))
		if !ok {
			continue
		}
		if value > ceiling.MaxSingleMG {
			decision.RecordTrigger(domain.TriggerDosageCeilingBreach, domain.PriorityHigh,
				"dosage_ceiling:"+linked, linked+" dose exceeds maximum single dose")
		}
	}
}

// assessIncompleteExtraction is trigger 5: priority=standard. Uses the
// same under-representation predicate as C4 (marker keyword present,
// category still empty after consolidation).
func (e *EscalationEngine) assessIncompleteExtraction(decision *domain.EscalationDecision, merged *domain.MergedExtraction, lower string) {
	markers := []struct {
		category domain.EntityCategory
		class    string
		pattern  *regexp.Regexp
	}{
		{domain.CategoryDosage, "dosage_marker", catalog.DosageMarkerPattern},
		{domain.CategoryFrequency, "frequency_marker", catalog.FrequencyMarkerPattern},
		{domain.CategoryRoute, "route_marker", catalog.RouteMarkerPattern},
	}
	for _, m := range markers {
		if e.catalog.Matches(m.class, m.pattern, lower) && !merged.HasCategory(m.category) {
			decision.RecordTrigger(domain.TriggerIncompleteExtraction, domain.PriorityStandard,
				"incomplete_extraction:"+string(m.category), string(m.category)+" marker present but not extracted")
		}
	}
}

// assessComplexity is trigger 6: priority=standard. Implements spec
// §4.4's formula exactly.
func (e *EscalationEngine) assessComplexity(decision *domain.EscalationDecision, text string, merged *domain.MergedExtraction) {
	score := e.complexityScore(text, merged)
	if score > e.threshold {
		decision.RecordTrigger(domain.TriggerHighComplexity, domain.PriorityStandard,
			"high_complexity", "medical complexity score exceeds threshold")
	}
}

func (e *EscalationEngine) complexityScore(text string, merged *domain.MergedExtraction) float64 {
	medCount := float64(merged.MedicationCount())
	condCount := float64(merged.ConditionCount())
	termCount := float64(e.catalog.CountAll("medical_term", catalog.MedicalTermPattern, text))
	numbers := float64(e.catalog.CountAll("number", catalog.NumberPattern, text))

	score := minF(float64(len(text))/500, 2) +
		minF(medCount/3, 2) +
		minF(condCount/2, 2) +
		minF(termCount, 2) +
		minF(numbers/5, 2)

	if score > complexityCap {
		score = complexityCap
	}
	return score
}

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// decisionConfidence implements spec §4.4's confidence formula.
func (e *EscalationEngine) decisionConfidence(decision *domain.EscalationDecision, merged *domain.MergedExtraction) float64 {
	if !decision.ShouldEscalate {
		conf := 0.5 + 0.1*float64(len(merged.All()))
		return minF(conf, 0.9)
	}
	conf := 0.5
	if decision.Priority == domain.PriorityImmediate {
		conf += 0.3
	}
	conf += minF(float64(len(decision.SafetyFlags))*0.1, 0.2)
	return minF(conf, 0.95)
}
