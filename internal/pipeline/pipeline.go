// Package pipeline wires C2 through C8 into the single entry point a host
// calls: Convert. Every collaborator is an explicit constructor argument,
// per spec §9 Design Notes ("the core's public API should accept these as
// explicit collaborators... singletons become a convenience of the host,
// not a requirement of the core").
package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/domain"
	"github.com/nlfhir/orderpipeline/internal/metrics"
)

// Status is the tagged-variant replacement for ConvertResult's loose
// status string, per spec §6.
type Status string

const (
	StatusCompleted        Status = "completed"
	StatusValidationFailed Status = "validation_failed"
	StatusProcessingFailed Status = "processing_failed"
)

// Quality is ConvertResult.quality, per spec §6.
type Quality struct {
	OverallConfidence float64
	FHIRCompliance    bool
	TierUsed          domain.SourceTier
}

// ConvertResult is the pipeline's single return shape, per spec §6.
type ConvertResult struct {
	Status           Status
	Bundle           *domain.Bundle
	Validation       domain.ValidationOutcome
	MergedExtraction *domain.MergedExtraction
	ProcessingTimeMS int64
	Quality          Quality
	FailureField     string // set only when Status == StatusProcessingFailed
}

// tierTimings is the internal (non-API) per-tier timing map named in the
// Supplemented features section: logged for operational visibility, never
// returned to the caller.
type tierTimings map[string]time.Duration

// Pipeline orchestrates C2-C8. All collaborators are supplied by the
// host; Pipeline holds no package-level state.
type Pipeline struct {
	validator    domain.Validator
	extractor    domain.EntityExtractor
	consolidator domain.Consolidator
	escalation   domain.EscalationEngine
	tierThree    domain.TierThreeExtractor
	factory      domain.ResourceFactory
	assembler    domain.BundleAssembler
	recorder     metrics.Recorder
	logger       *logrus.Logger
}

// New constructs a Pipeline from its eight collaborators plus the
// process-wide metrics recorder (spec §5's "optional metrics counters").
// recorder may be nil, in which case Convert simply skips recording.
func New(
	validator domain.Validator,
	extractor domain.EntityExtractor,
	consolidator domain.Consolidator,
	escalation domain.EscalationEngine,
	tierThree domain.TierThreeExtractor,
	factory domain.ResourceFactory,
	assembler domain.BundleAssembler,
	recorder metrics.Recorder,
	logger *logrus.Logger,
) *Pipeline {
	return &Pipeline{
		validator:    validator,
		extractor:    extractor,
		consolidator: consolidator,
		escalation:   escalation,
		tierThree:    tierThree,
		factory:      factory,
		assembler:    assembler,
		recorder:     recorder,
		logger:       logger,
	}
}

// recordRequest reports the final status of one Convert call, per spec
// §5's process-wide request counter. A nil recorder (the host opted out
// of metrics) is a no-op.
func (p *Pipeline) recordRequest(ctx context.Context, status Status) {
	if p.recorder != nil {
		p.recorder.RecordRequest(ctx, string(status))
	}
}

// recordTierUsage reports which tier ultimately produced the merged
// extraction, per spec §5's tier-usage histogram.
func (p *Pipeline) recordTierUsage(ctx context.Context, tier domain.SourceTier) {
	if p.recorder != nil {
		p.recorder.RecordTierUsage(ctx, tier)
	}
}

// Convert implements spec §2's control flow and spec §6's Convert
// contract: text -> C2 (gate) -> C3 -> C4 -> C5 -> [C6] -> merge -> C7 ->
// C8 -> bundle. requestID is carried through logging only; an empty
// string is valid (spec §6: request_id is optional).
func (p *Pipeline) Convert(ctx context.Context, text string, requestID string, mode domain.ValidationMode) (*ConvertResult, error) {
	started := time.Now()
	timings := make(tierTimings)
	log := p.logger.WithField("request_id", requestID)

	validation, err := p.runValidation(ctx, text, mode, timings)
	if err != nil {
		return nil, err
	}

	if mode == domain.ValidationStrict && !validation.CanProcess {
		p.recordRequest(ctx, StatusValidationFailed)
		return &ConvertResult{
			Status:           StatusValidationFailed,
			Validation:       validation,
			MergedExtraction: domain.NewMergedExtraction(),
			ProcessingTimeMS: elapsedMS(started),
		}, nil
	}

	tierOneStart := time.Now()
	tierOne, err := p.extractor.Extract(ctx, text)
	timings["tier1"] = time.Since(tierOneStart)
	tierOneFailed := err != nil
	if tierOneFailed {
		log.WithError(err).Warn("tier-1 extraction failed, continuing with empty entity set")
		tierOne = nil
	}

	tierTwoStart := time.Now()
	merged, err := p.consolidator.Consolidate(ctx, text, tierOne)
	timings["tier2"] = time.Since(tierTwoStart)
	if err != nil {
		return nil, err
	}
	if tierOneFailed {
		merged.AddSafetyFlag("tier1_failed")
	}

	escalationStart := time.Now()
	decision, err := p.escalation.Evaluate(ctx, text, merged)
	timings["escalation"] = time.Since(escalationStart)
	if err != nil {
		return nil, err
	}
	for _, flag := range decision.SafetyFlags {
		merged.AddSafetyFlag(flag)
	}

	if decision.ShouldEscalate && p.tierThree != nil {
		tierThreeStart := time.Now()
		if err := p.tierThree.Extract(ctx, text, merged, decision); err != nil {
			log.WithError(err).Warn("tier-3 extraction failed, proceeding with lower-tier results")
		}
		timings["tier3"] = time.Since(tierThreeStart)
	}

	factoryStart := time.Now()
	arena, err := p.factory.Build(ctx, text, merged)
	timings["factory"] = time.Since(factoryStart)
	if err != nil {
		p.recordRequest(ctx, StatusProcessingFailed)
		return &ConvertResult{
			Status:           StatusProcessingFailed,
			Validation:       validation,
			MergedExtraction: merged,
			ProcessingTimeMS: elapsedMS(started),
			FailureField:     err.Error(),
		}, nil
	}

	assemblerStart := time.Now()
	bundle, brokenRefs, err := p.assembler.Assemble(ctx, arena, false)
	timings["assembler"] = time.Since(assemblerStart)
	if err != nil {
		p.recordRequest(ctx, StatusProcessingFailed)
		return &ConvertResult{
			Status:           StatusProcessingFailed,
			Validation:       validation,
			MergedExtraction: merged,
			ProcessingTimeMS: elapsedMS(started),
			FailureField:     "bundle_integrity",
		}, nil
	}

	log.WithFields(logrus.Fields{
		"tier1_ms":     timings["tier1"].Milliseconds(),
		"tier2_ms":     timings["tier2"].Milliseconds(),
		"tier3_ms":     timings["tier3"].Milliseconds(),
		"factory_ms":   timings["factory"].Milliseconds(),
		"assembler_ms": timings["assembler"].Milliseconds(),
	}).Info("conversion complete")

	p.recordRequest(ctx, StatusCompleted)
	p.recordTierUsage(ctx, merged.ProcessingTierUsed)

	return &ConvertResult{
		Status:           StatusCompleted,
		Bundle:           bundle,
		Validation:       validation,
		MergedExtraction: merged,
		ProcessingTimeMS: elapsedMS(started),
		Quality: Quality{
			OverallConfidence: blendConfidence(validation, merged),
			FHIRCompliance:    len(brokenRefs) == 0,
			TierUsed:          merged.ProcessingTierUsed,
		},
	}, nil
}

// runValidation implements spec §6's three validation modes: disabled
// skips C2 entirely and reports a trivially-passing outcome; the other
// two modes always run full validation, differing only in whether the
// pipeline halts on validation.can_process=false.
func (p *Pipeline) runValidation(ctx context.Context, text string, mode domain.ValidationMode, timings tierTimings) (domain.ValidationOutcome, error) {
	if mode == domain.ValidationDisabled {
		return domain.ValidationOutcome{CanProcess: true, Confidence: 1.0, Recommendation: domain.RecommendationProcess}, nil
	}
	start := time.Now()
	outcome, err := p.validator.Validate(ctx, text)
	timings["validation"] = time.Since(start)
	return outcome, err
}

// blendConfidence implements spec §9's preserved 60/40 formula:
// validation.confidence weighted 60%, merged_extraction.overall_confidence
// weighted 40%.
func blendConfidence(validation domain.ValidationOutcome, merged *domain.MergedExtraction) float64 {
	return 0.6*validation.Confidence + 0.4*merged.OverallConfidence
}

func elapsedMS(started time.Time) int64 {
	return time.Since(started).Milliseconds()
}
