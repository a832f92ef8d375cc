// Package domain holds the types shared by every pipeline component: the
// extracted-entity model, validation and escalation outcomes, the FHIR
// resource/bundle shapes, configuration, and the collaborator interfaces
// that let the pipeline be wired together without package-level singletons.
package domain

import "fmt"

// EntityCategory is the tagged-variant replacement for the source's loose
// "category" string key.
type EntityCategory string

const (
	CategoryMedication EntityCategory = "medication"
	CategoryDosage     EntityCategory = "dosage"
	CategoryFrequency  EntityCategory = "frequency"
	CategoryRoute      EntityCategory = "route"
	CategoryCondition  EntityCategory = "condition"
	CategoryPatient    EntityCategory = "patient"
	CategoryLabTest    EntityCategory = "lab_test"
	CategoryProcedure  EntityCategory = "procedure"
	CategoryTemporal   EntityCategory = "temporal"
)

// IsValid reports whether c is one of the nine recognized categories.
func (c EntityCategory) IsValid() bool {
	switch c {
	case CategoryMedication, CategoryDosage, CategoryFrequency, CategoryRoute,
		CategoryCondition, CategoryPatient, CategoryLabTest, CategoryProcedure, CategoryTemporal:
		return true
	}
	return false
}

// categoryPriority implements the tie-break order from spec §4.2: when two
// patterns match the same span, the higher-priority category wins.
var categoryPriority = map[EntityCategory]int{
	CategoryMedication: 0,
	CategoryDosage:     1,
	CategoryFrequency:  2,
	CategoryRoute:      3,
	CategoryCondition:  4,
	CategoryLabTest:    5,
	CategoryProcedure:  6,
	CategoryTemporal:   7,
	CategoryPatient:    8,
}

// Priority returns c's position in the medication > dosage > ... > patient
// tie-break order. Lower values win.
func (c EntityCategory) Priority() int {
	if p, ok := categoryPriority[c]; ok {
		return p
	}
	return len(categoryPriority)
}

// SourceTier identifies which extraction stage produced an Entity.
type SourceTier string

const (
	TierOne   SourceTier = "tier1"
	TierTwo   SourceTier = "tier2"
	TierThree SourceTier = "tier3"
)

// Entity is a typed span over the source text, per spec §3.
type Entity struct {
	Category   EntityCategory
	Text       string
	Start      int
	End        int
	Confidence float64
	SourceTier SourceTier
	Attributes map[string]string
}

// Validate checks the structural invariants every Entity must hold
// regardless of which tier produced it: input[start:end] == text, offsets
// are well-formed, and confidence is in [0,1].
func (e Entity) Validate(input string) error {
	if !e.Category.IsValid() {
		return fmt.Errorf("entity validation: unknown category %q", e.Category)
	}
	if e.Start < 0 || e.End < e.Start || e.End > len(input) {
		return fmt.Errorf("entity validation: offsets [%d:%d] out of range for input of length %d", e.Start, e.End, len(input))
	}
	if input[e.Start:e.End] != e.Text {
		return fmt.Errorf("entity validation: text %q does not match input[%d:%d] %q", e.Text, e.Start, e.End, input[e.Start:e.End])
	}
	if e.Confidence < 0 || e.Confidence > 1 {
		return fmt.Errorf("entity validation: confidence %f out of [0,1]", e.Confidence)
	}
	return nil
}

// Overlaps reports whether e and other occupy any common character offset.
func (e Entity) Overlaps(other Entity) bool {
	return e.Start < other.End && other.Start < e.End
}

// AttributeOr returns the named attribute, or def when absent.
func (e Entity) AttributeOr(key, def string) string {
	if e.Attributes == nil {
		return def
	}
	if v, ok := e.Attributes[key]; ok {
		return v
	}
	return def
}
