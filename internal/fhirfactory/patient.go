package fhirfactory

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nlfhir/orderpipeline/internal/domain"
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// buildPatient implements spec §4.6's Patient construction: a
// first-match-wins id strategy, three accepted name shapes, phone/email
// normalization, and a strict birth-date parser.
func (f *Factory) buildPatient(merged *domain.MergedExtraction) (domain.FHIRResource, error) {
	attrs := patientAttributes(merged)

	patient := domain.FHIRResource{
		"resourceType": "Patient",
	}
	patient.SetID(patientID(attrs))

	if given, family, middle, ok := parseName(attrs); ok {
		name := map[string]any{"family": family}
		var given2 []string
		if given != "" {
			given2 = append(given2, given)
		}
		if middle != "" {
			given2 = append(given2, middle)
		}
		if len(given2) > 0 {
			name["given"] = given2
		}
		patient["name"] = []any{name}
	}

	if mrn := attrs["mrn"]; mrn != "" {
		patient["identifier"] = []any{map[string]any{
			"system": "urn:oid:2.16.840.1.113883.4.1",
			"value":  mrn,
		}}
	}

	if phone := attrs["phone"]; phone != "" {
		patient["telecom"] = append(telecomSlice(patient), map[string]any{"system": "phone", "value": normalizePhone(phone)})
	}
	if email := attrs["email"]; email != "" {
		if normalized, ok := normalizeEmail(email); ok {
			patient["telecom"] = append(telecomSlice(patient), map[string]any{"system": "email", "value": normalized})
		}
		// invalid emails are dropped with a warning, never fatal (spec §4.6);
		// the caller's validation-outcome layer is responsible for surfacing
		// the warning, this factory simply omits the field.
	}

	if birthDate := attrs["birth_date"]; birthDate != "" {
		canonical, err := parseBirthDate(birthDate)
		if err != nil {
			return nil, fmt.Errorf("building patient: %w", err)
		}
		patient["birthDate"] = canonical
	}

	return patient, nil
}

// telecomSlice returns the resource's existing telecom slice, if any, so
// repeated appends (phone then email) don't clobber each other.
func telecomSlice(r domain.FHIRResource) []any {
	if existing, ok := r["telecom"].([]any); ok {
		return existing
	}
	return nil
}

func patientAttributes(merged *domain.MergedExtraction) map[string]string {
	attrs := make(map[string]string)
	for _, e := range merged.ByCategory(domain.CategoryPatient) {
		for k, v := range e.Attributes {
			attrs[k] = v
		}
		if attrs["name"] == "" {
			attrs["name"] = e.Text
		}
	}
	return attrs
}

// patientID implements spec §4.6's deterministic id strategy: explicit id
// -> patient-mrn-<MRN> -> patient-<legacy ref tail> -> generated UUID.
func patientID(attrs map[string]string) string {
	if id := attrs["id"]; id != "" {
		return id
	}
	if mrn := attrs["mrn"]; mrn != "" {
		return "patient-mrn-" + mrn
	}
	if legacyRef := attrs["legacy_reference"]; legacyRef != "" {
		parts := strings.Split(legacyRef, "/")
		return "patient-" + parts[len(parts)-1]
	}
	return newID("patient")
}

// parseName accepts "Family, Given[ Middle…]", "Given [Middle…] Family",
// or structured {first_name,last_name,middle_name} attributes.
func parseName(attrs map[string]string) (given, family, middle string, ok bool) {
	if attrs["last_name"] != "" || attrs["first_name"] != "" {
		return attrs["first_name"], attrs["last_name"], attrs["middle_name"], true
	}
	raw := strings.TrimSpace(attrs["name"])
	if raw == "" {
		return "", "", "", false
	}
	if strings.Contains(raw, ",") {
		parts := strings.SplitN(raw, ",", 2)
		family = strings.TrimSpace(parts[0])
		rest := strings.Fields(strings.TrimSpace(parts[1]))
		if len(rest) > 0 {
			given = rest[0]
		}
		if len(rest) > 1 {
			middle = strings.Join(rest[1:], " ")
		}
		return given, family, middle, family != ""
	}
	fields := strings.Fields(raw)
	switch len(fields) {
	case 0:
		return "", "", "", false
	case 1:
		return "", fields[0], "", true
	case 2:
		return fields[0], fields[1], "", true
	default:
		return fields[0], fields[len(fields)-1], strings.Join(fields[1:len(fields)-1], " "), true
	}
}

// normalizePhone strips non-digits and formats per spec §4.6. It is
// idempotent on already-normalized values (spec §8 round-trips): feeding
// "(555) 123-4567" back in strips to the same 10 digits and re-renders
// identically.
func normalizePhone(raw string) string {
	var digits []byte
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits = append(digits, byte(r))
		}
	}
	switch len(digits) {
	case 10:
		return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
	case 11:
		if digits[0] == '1' {
			return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:11])
		}
	}
	return raw
}

func normalizeEmail(raw string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(raw))
	if !emailPattern.MatchString(lower) {
		return "", false
	}
	return lower, true
}

// parseBirthDate accepts the five formats named in spec §4.6, including
// the disambiguated MM/DD/YYYY vs DD/MM/YYYY case (if both candidate
// fields are <=12, assume US MM/DD/YYYY). It is idempotent on canonical
// YYYY-MM-DD input (spec §8 round-trips).
func parseBirthDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)

	if m := regexp.MustCompile(`^(\d{4})-(\d{2})-(\d{2})$`).FindStringSubmatch(raw); m != nil {
		if valid(m[1], m[2], m[3]) {
			return raw, nil
		}
	}
	if m := regexp.MustCompile(`^(\d{4})/(\d{2})/(\d{2})$`).FindStringSubmatch(raw); m != nil {
		if valid(m[1], m[2], m[3]) {
			return fmt.Sprintf("%s-%s-%s", m[1], m[2], m[3]), nil
		}
	}
	if m := regexp.MustCompile(`^(\d{1,2})/(\d{1,2})/(\d{4})$`).FindStringSubmatch(raw); m != nil {
		return disambiguateSlashDate(m[1], m[2], m[3])
	}
	if m := regexp.MustCompile(`^(\d{1,2})-(\d{1,2})-(\d{4})$`).FindStringSubmatch(raw); m != nil {
		return disambiguateSlashDate(m[1], m[2], m[3])
	}

	return "", fmt.Errorf("unable to parse birth date %q", raw)
}

func disambiguateSlashDate(a, b, year string) (string, error) {
	av, _ := strconv.Atoi(a)
	bv, _ := strconv.Atoi(b)
	month, day := av, bv
	if av > 12 && bv <= 12 {
		month, day = bv, av
	}
	ms := fmt.Sprintf("%02d", month)
	ds := fmt.Sprintf("%02d", day)
	if !valid(year, ms, ds) {
		return "", fmt.Errorf("unable to parse birth date %s/%s/%s", a, b, year)
	}
	return fmt.Sprintf("%s-%s-%s", year, ms, ds), nil
}

func valid(year, month, day string) bool {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return false
	}
	return y > 1900 && y < 2200 && m >= 1 && m <= 12 && d >= 1 && d <= 31
}
