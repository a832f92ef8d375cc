// Package fhirfactory implements the FHIR Resource Factory (C7): mapping
// a MergedExtraction into referentially consistent FHIR resources, split
// one file per resource family the way the teacher splits its domain
// package across variant/evidence/classification files.
package fhirfactory

import (
	"strings"

	"github.com/google/uuid"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

// newID generates a hex-suffixed resource id for a resource type that has
// no natural identifier, per spec §4.6 ("generated UUID-based
// patient-<hex>") generalized to every resource family.
func newID(prefix string) string {
	return prefix + "-" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// reference builds a Type/id reference string.
func reference(resourceType, id string) string {
	return resourceType + "/" + id
}

// linkReference records the outgoing edge in the arena and returns a
// {"reference": ref} object; the caller sets it on the resource.
func linkReference(arena *domain.ResourceArena, fromID string, ref string) map[string]any {
	arena.LinkReference(fromID, ref)
	return map[string]any{"reference": ref}
}
