// Package llmextract implements the Tier-3 LLM Extractor (C6): a
// circuit-breaker-wrapped call to the abstract domain.LLMClient, merging
// its proposals into gaps the earlier tiers left open.
package llmextract

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

const (
	tierThreeConfidence = 0.9
	defaultTimeout      = 5 * time.Second
)

// TierThreeExtractor is the C6 implementation, grounded on
// pkg/external.ResilientExternalClient's per-dependency circuit breaker
// pattern: the same Settings shape, applied to the single LLMClient
// dependency this domain has instead of six genomic-database clients.
type TierThreeExtractor struct {
	client  domain.LLMClient
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *logrus.Logger
}

// New constructs a TierThreeExtractor. client may be nil, in which case
// Extract always degrades to lower tiers without attempting a call, so
// a host can run the pipeline with no LLM provider configured at all.
// timeout<=0 falls back to the spec-default 5s (spec §5).
func New(client domain.LLMClient, timeout time.Duration, logger *logrus.Logger) *TierThreeExtractor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	settings := gobreaker.Settings{
		Name:        "llm-extract",
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.WithFields(logrus.Fields{"breaker": name, "from": from, "to": to}).Warn("llm circuit breaker state change")
		},
	}
	return &TierThreeExtractor{
		client:  client,
		breaker: gobreaker.NewCircuitBreaker(settings),
		timeout: timeout,
		logger:  logger,
	}
}

var _ domain.TierThreeExtractor = (*TierThreeExtractor)(nil)

// schema describes the categories the core expects the LLM to fill,
// per spec §6.
func schema() map[string]any {
	return map[string]any{
		"categories": []string{
			string(domain.CategoryMedication), string(domain.CategoryDosage),
			string(domain.CategoryFrequency), string(domain.CategoryRoute),
			string(domain.CategoryCondition), string(domain.CategoryPatient),
			string(domain.CategoryLabTest), string(domain.CategoryProcedure),
			string(domain.CategoryTemporal),
		},
	}
}

// Extract implements spec §4.5: calls LLMClient.extract under a timeout
// and circuit breaker, then merges proposals that fill gaps only, never
// overwriting a higher-tier entity on confidence alone.
func (t *TierThreeExtractor) Extract(ctx context.Context, text string, merged *domain.MergedExtraction, decision *domain.EscalationDecision) error {
	if t.client == nil {
		merged.AddSafetyFlag("tier3_unavailable")
		return nil
	}

	callCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	proposals, err := t.breaker.Execute(func() (any, error) {
		return t.client.Extract(callCtx, text, schema())
	})
	if err != nil {
		t.logger.WithError(err).Warn("tier-3 extraction unavailable, proceeding with lower-tier results")
		merged.AddSafetyFlag("tier3_unavailable")
		return nil
	}

	byCategory, ok := proposals.(map[string][]string)
	if !ok {
		merged.AddSafetyFlag("tier3_unavailable")
		return nil
	}

	for rawCategory, surfaceForms := range byCategory {
		category := domain.EntityCategory(rawCategory)
		if !category.IsValid() {
			continue
		}
		for _, surface := range surfaceForms {
			t.mergeProposal(merged, text, category, surface)
		}
	}

	if decision != nil && decision.Trigger != domain.TriggerNone {
		merged.AddSafetyFlag(string(decision.Trigger))
	}
	merged.ProcessingTierUsed = domain.TierThree
	return nil
}

// mergeProposal adds a single tier-3 proposal only if it occurs verbatim
// in the input and no existing entity (any tier) already covers the same
// surface span in that category (spec §4.5's gap-only merge rule).
func (t *TierThreeExtractor) mergeProposal(merged *domain.MergedExtraction, text string, category domain.EntityCategory, surface string) {
	if surface == "" {
		return
	}
	idx := strings.Index(text, surface)
	if idx == -1 {
		return
	}
	start, end := idx, idx+len(surface)
	candidate := domain.Entity{Start: start, End: end}
	for _, existing := range merged.ByCategory(category) {
		if existing.Overlaps(candidate) {
			return
		}
	}
	merged.Add(domain.Entity{
		Category:   category,
		Text:       surface,
		Start:      start,
		End:        end,
		Confidence: tierThreeConfidence,
		SourceTier: domain.TierThree,
	})
}
