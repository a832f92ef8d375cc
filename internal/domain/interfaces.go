package domain

import "context"

// ValidationMode selects how strictly C2's outcome gates bundle production,
// per spec §6.
type ValidationMode string

const (
	ValidationStrict     ValidationMode = "strict"
	ValidationPermissive  ValidationMode = "permissive"
	ValidationDisabled    ValidationMode = "disabled"
)

// Validator is the C2 collaborator interface. Explicit constructor
// injection (never a package singleton) per spec §9 Design Notes.
type Validator interface {
	Validate(ctx context.Context, text string) (ValidationOutcome, error)
}

// EntityExtractor is the C3 collaborator interface: the "clinical
// language model" swap point named in spec §9 Design Notes ("Keep the
// Pattern Catalog as plain data... swappable... without touching C4/C5").
type EntityExtractor interface {
	Extract(ctx context.Context, text string) ([]Entity, error)
}

// Consolidator is the C4 collaborator interface.
type Consolidator interface {
	Consolidate(ctx context.Context, text string, tierOne []Entity) (*MergedExtraction, error)
}

// EscalationEngine is the C5 collaborator interface.
type EscalationEngine interface {
	Evaluate(ctx context.Context, text string, merged *MergedExtraction) (*EscalationDecision, error)
}

// LLMClient is the abstract external collaborator consumed by C6, per
// spec §6. The core never constructs one; a host supplies an
// implementation that talks to whatever provider it chooses.
type LLMClient interface {
	// Extract asks the model to fill the schema's categories from text.
	// The returned map is category -> proposed surface strings.
	Extract(ctx context.Context, text string, schema map[string]any) (map[string][]string, error)
	// Summarize is used by the external summarization stage, not by the
	// core's conversion path; it is part of the interface only because
	// spec §6 documents it as part of the LLMClient contract.
	Summarize(ctx context.Context, bundle *Bundle, role string) (string, error)
}

// TierThreeExtractor is the C6 collaborator interface: wraps an LLMClient
// call with resilience and the gap-only merge rule.
type TierThreeExtractor interface {
	Extract(ctx context.Context, text string, merged *MergedExtraction, decision *EscalationDecision) error
}

// ResourceFactory is the C7 collaborator interface. text is carried
// alongside merged because patient-id extraction (MRN mentions) and
// diagnostic-report detection scan the raw order text directly.
type ResourceFactory interface {
	Build(ctx context.Context, text string, merged *MergedExtraction) (*ResourceArena, error)
}

// BundleAssembler is the C8 collaborator interface. The bundle id,
// timestamp and entry requests are always synthesized; repair selects
// whether unresolved references are returned without an error (true) or
// with one (false) (spec §4.7).
type BundleAssembler interface {
	Assemble(ctx context.Context, arena *ResourceArena, repair bool) (*Bundle, []string, error)
}
