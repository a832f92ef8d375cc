package domain

// MergedExtraction is the immutable, per-request result of running C3-C6:
// a mapping category -> ordered entities, plus aggregate bookkeeping.
type MergedExtraction struct {
	Entities           map[EntityCategory][]Entity
	OverallConfidence  float64
	ProcessingTierUsed SourceTier
	SafetyFlags        []string
}

// NewMergedExtraction returns an empty extraction ready for tier-1 entities
// to be added.
func NewMergedExtraction() *MergedExtraction {
	return &MergedExtraction{
		Entities:           make(map[EntityCategory][]Entity),
		ProcessingTierUsed: TierOne,
	}
}

// All returns every entity across every category, in category-priority
// order and, within a category, in the order the entities were added.
// Stable for repeated calls on the same extraction.
func (m *MergedExtraction) All() []Entity {
	var out []Entity
	cats := make([]EntityCategory, 0, len(m.Entities))
	for cat := range m.Entities {
		cats = append(cats, cat)
	}
	for i := 0; i < len(cats); i++ {
		for j := i + 1; j < len(cats); j++ {
			if cats[j].Priority() < cats[i].Priority() {
				cats[i], cats[j] = cats[j], cats[i]
			}
		}
	}
	for _, cat := range cats {
		out = append(out, m.Entities[cat]...)
	}
	return out
}

// ByCategory returns the entities of one category, or nil if none were
// extracted.
func (m *MergedExtraction) ByCategory(cat EntityCategory) []Entity {
	return m.Entities[cat]
}

// Add appends an entity under its category. Keeping the final-set
// non-overlap invariant is the caller's responsibility (C4's overlap
// resolution, C6's gap-only merge); Add itself performs no conflict
// resolution.
func (m *MergedExtraction) Add(e Entity) {
	m.Entities[e.Category] = append(m.Entities[e.Category], e)
}

// HasCategory reports whether at least one entity of cat has been recorded.
func (m *MergedExtraction) HasCategory(cat EntityCategory) bool {
	return len(m.Entities[cat]) > 0
}

// AddSafetyFlag appends flag if not already present.
func (m *MergedExtraction) AddSafetyFlag(flag string) {
	for _, f := range m.SafetyFlags {
		if f == flag {
			return
		}
	}
	m.SafetyFlags = append(m.SafetyFlags, flag)
}

// MedicationCount, ConditionCount support the escalation complexity score.
func (m *MergedExtraction) MedicationCount() int { return len(m.Entities[CategoryMedication]) }
func (m *MergedExtraction) ConditionCount() int  { return len(m.Entities[CategoryCondition]) }
