// Package bundleassembler implements the Bundle Assembler (C8): orders a
// ResourceArena's resources into a FHIR transaction Bundle, synthesizes
// request semantics, and validates (and optionally repairs) the reference
// graph.
package bundleassembler

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// canonicalOrder implements spec §4.7's ordering; resource types absent
// from this list sort after every named type, in arena insertion order.
var canonicalOrder = []string{
	"Patient", "Practitioner", "Organization", "Encounter",
	"Condition", "MedicationRequest", "ServiceRequest", "DiagnosticReport", "Observation",
}

func orderRank(resourceType string) int {
	for i, t := range canonicalOrder {
		if t == resourceType {
			return i
		}
	}
	return len(canonicalOrder)
}

// Assembler is the C8 implementation.
type Assembler struct {
	logger *logrus.Logger
}

// New constructs an Assembler.
func New(logger *logrus.Logger) *Assembler {
	return &Assembler{logger: logger}
}

var _ domain.BundleAssembler = (*Assembler)(nil)

// Assemble implements spec §4.7: canonical entry ordering, PUT-vs-POST
// request semantics (with Patient ifNoneExist when an MRN identifier is
// present), fullUrl synthesis, and a reference-integrity check. Bundle id
// and timestamp are always synthesized, since C7 never produces
// bundle-level metadata itself. Broken references are always reported
// (never silently dropped); repair=true downgrades them from a fatal
// error to a warning-only return, matching spec §4.7's defect-tolerant
// mode, but never invents a resource to satisfy a reference.
func (a *Assembler) Assemble(ctx context.Context, arena *domain.ResourceArena, repair bool) (*domain.Bundle, []string, error) {
	resources := arena.All()
	sort.SliceStable(resources, func(i, j int) bool {
		return orderRank(resources[i].ResourceType()) < orderRank(resources[j].ResourceType())
	})

	bundle := &domain.Bundle{
		Type:      "transaction",
		ID:        "bundle-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	for _, r := range resources {
		id := r.ID()
		if id == "" {
			id = uuid.NewString()
			r.SetID(id)
		}
		entry := domain.Entry{
			FullURL:  "urn:uuid:" + id,
			Resource: r,
			Request:  a.request(r, repair),
		}
		bundle.Entries = append(bundle.Entries, entry)
	}

	brokenRefs := a.checkIntegrity(bundle, arena)

	a.logger.WithFields(logrus.Fields{
		"entry_count":   len(bundle.Entries),
		"broken_refs":   len(brokenRefs),
		"repair_mode":   repair,
	}).Debug("bundle assembly complete")

	if len(brokenRefs) > 0 && !repair {
		return bundle, brokenRefs, fmt.Errorf("bundle assembly: %d unresolved reference(s)", len(brokenRefs))
	}
	return bundle, brokenRefs, nil
}

// request synthesizes a transaction entry's request element per spec
// §4.7: PUT when the resource already carries an id the factory assigned
// deterministically, POST otherwise, with ifNoneExist for Patient when an
// MRN identifier is present. repair=false entries still get a request:
// the core always produces one; repair only covers a host-supplied arena
// whose resources might lack id/request metadata.
func (a *Assembler) request(r domain.FHIRResource, repair bool) *domain.EntryRequest {
	resourceType := r.ResourceType()
	id := r.ID()

	if resourceType == "Patient" {
		if mrn, ok := patientMRN(r); ok {
			return &domain.EntryRequest{
				Method:      domain.MethodPOST,
				URL:         resourceType,
				IfNoneExist: "identifier=" + mrn,
			}
		}
	}

	if id != "" {
		return &domain.EntryRequest{Method: domain.MethodPUT, URL: resourceType + "/" + id}
	}
	return &domain.EntryRequest{Method: domain.MethodPOST, URL: resourceType}
}

func patientMRN(r domain.FHIRResource) (string, bool) {
	identifiers, ok := r["identifier"].([]any)
	if !ok {
		return "", false
	}
	for _, raw := range identifiers {
		ident, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		if value, ok := ident["value"].(string); ok && value != "" {
			return value, true
		}
	}
	return "", false
}

// checkIntegrity walks every edge recorded in the arena and confirms its
// reference resolves to a bundle entry id, a contained ("#...") resource,
// or an absolute URL, per spec §4.7. Returns the set of broken references.
func (a *Assembler) checkIntegrity(bundle *domain.Bundle, arena *domain.ResourceArena) []string {
	ids := make(map[string]bool, len(bundle.Entries))
	for _, e := range bundle.Entries {
		ids[e.Resource.ResourceType()+"/"+e.Resource.ID()] = true
	}

	var broken []string
	for _, edge := range arena.Edges {
		if resolvesReference(edge.Reference, ids) {
			continue
		}
		broken = append(broken, fmt.Sprintf("%s -> %s", edge.FromID, edge.Reference))
	}
	return broken
}

func resolvesReference(ref string, ids map[string]bool) bool {
	if strings.HasPrefix(ref, "#") {
		return true
	}
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return true
	}
	return ids[ref]
}
