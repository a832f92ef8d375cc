package catalog

import "regexp"

// Compiled pattern families for C2's nine issue classes and C4/C5's
// marker-keyword heuristics, built once at package init the way
// pkg/hgvs/parser.go built its genomic-notation patterns, repurposed
// here for clinical text instead of HGVS notation.

// notFollowedByWith is appended to a vague-intent phrase in place of a
// "not followed by `with <word>`" lookahead, which RE2 does not support:
// after the phrase it accepts the end of text, punctuation, or a next word
// that is not "with" followed by another word.
const notFollowedByWith = `(?:$|[^\s\w]|\s+$|\s+[^\sw]|\s+w(?:$|[^i])|\s+wi(?:$|[^t])|\s+wit(?:$|[^h])|\s+with(?:$|\w)|\s+with[^\s\w]|\s+with\s+$|\s+with\s+[^\s\w])`

var (
	// Conditional logic (spec §4.1, fatal).
	ConditionalLogicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bif\b.*(?:high|low|positive|negative|develops|worsens|persists)`),
		regexp.MustCompile(`(?i)\bunless\b.*(?:contraindicated|refuses)`),
		regexp.MustCompile(`(?i)\bdepending on\b`),
		regexp.MustCompile(`(?i)\bper\s+(?:discretion|judgment)\b`),
		regexp.MustCompile(`(?i)\bbased on\b.*(?:weight|labs?|bp|response)`),
	}

	// Medication ambiguity (spec §4.1, fatal).
	MedicationAmbiguityPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bmaybe\b.*\bor\b`),
		regexp.MustCompile(`(?i)\beither\b.*\bor\b`),
		regexp.MustCompile(`(?i)\bwhichever\s+(?:covers|works)\b`),
		regexp.MustCompile(`(?i)\bsomething for\b`),
		regexp.MustCompile(`(?i)\bappropriate treatment\b`),
		regexp.MustCompile(`(?i)\bper protocol\b`),
		regexp.MustCompile(`(?i)\bstanding orders?\b`),
	}

	// Drug-class-without-drug class-term detector (spec §4.1, error).
	DrugClassPattern = regexp.MustCompile(`(?i)\b(beta blocker|ace inhibitor|statin|ppi|nsaid|ssri|antibiotic|diuretic)\b`)

	// Missing-dosage / missing-frequency / missing-medication (spec §4.1,
	// error/error/fatal).
	MissingDosagePattern    = regexp.MustCompile(`(?i)\btbd\b|\bdose unclear\b|\bdosage unclear\b`)
	MissingFrequencyPattern = regexp.MustCompile(`(?i)\bfrequency not stated\b|\btiming unclear\b`)
	MissingMedicationPattern = regexp.MustCompile(`(?i)\bagent unclear\b|\bmedication undecided\b`)

	// Protocol dependency (spec §4.1, error).
	ProtocolDependencyPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bper protocol\b`),
		regexp.MustCompile(`(?i)\bstanding orders?\b`),
		regexp.MustCompile(`(?i)\b(?:nursing|hospice) protocol\b`),
		regexp.MustCompile(`(?i)\bper\s+(?:discretion|judgment)\b`),
	}

	// Vague intent (spec §4.1, warning). The first three phrases are
	// flagged only when NOT directly followed by "with <drug>".
	VagueIntentPhrases = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bpain control\b` + notFollowedByWith),
		regexp.MustCompile(`(?i)\bcomfort care\b` + notFollowedByWith),
		regexp.MustCompile(`(?i)\bsedation\b` + notFollowedByWith),
		regexp.MustCompile(`(?i)\bstart meds?\b|\bstart medication\b`),
	}

	// Contraindication logic (spec §4.1, warning).
	ContraindicationLogicPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bavoid if\b.*(?:hypertensive|cardiac|renal|hepatic)`),
		regexp.MustCompile(`(?i)\bcontraindicated if\b`),
		regexp.MustCompile(`(?i)\bunless contraindicated\b`),
	}

	// C4 under-representation marker keywords (spec §4.3 step 1).
	DosageMarkerPattern    = regexp.MustCompile(`(?i)\b\d+(\.\d+)?\s*(mg|mcg|ml|g|units|%|puffs)\b`)
	FrequencyMarkerPattern = regexp.MustCompile(`(?i)\b(daily|twice|tid|bid|qid|q\d+h|prn|as needed|nightly)\b`)
	RouteMarkerPattern     = regexp.MustCompile(`(?i)\b(po|iv|im|subq|sublingual|inhaled|topical)\b`)

	// Dosage/frequency/route extraction patterns shared by C3/C4, adapted
	// from pkg/hgvs/parser.go's genomic substitution/deletion/insertion
	// pattern-table idiom onto clinical dosing notation.
	DosageValuePattern = regexp.MustCompile(`(?i)(\d+(?:\.\d+)?)\s*(mg|mcg|ml|g|units|%|puffs)\b`)
	RouteTokenPattern  = regexp.MustCompile(`(?i)\b(po|iv|im|subq|sublingual|sl|inhaled|topical)\b`)
	QNHoursPattern     = regexp.MustCompile(`(?i)\bq(\d+)h\b`)

	// C5 complexity-score markers: medical terms and numbers. Critical
	// conditions are a catalog table, not a pattern here.
	MedicalTermPattern = regexp.MustCompile(`(?i)\b(diagnosis|treatment|protocol|therapy|procedure)\b`)
	NumberPattern      = regexp.MustCompile(`\d+(?:\.\d+)?`)

	// ResultsReportedPattern is C7's separate catalog pattern (spec §4.6)
	// gating DiagnosticReport construction: a report is only built when the
	// text itself signals that results are being reported, not merely that
	// a lab/procedure was ordered.
	ResultsReportedPattern = regexp.MustCompile(`(?i)\bresults?\s+(?:show|reveal|indicate|are|is|pending|reported|returned)\b|\bfindings?\b.*\breport(?:ed)?\b|\bimpression\b\s*:`)

	// DiagnosticReportStatusPatterns maps a status keyword to its FHIR
	// code. The factory checks preliminary, then amended, then final, and
	// the first keyword found wins regardless of its position in the text;
	// default "final" (spec §4.6).
	DiagnosticReportStatusPatterns = map[string]*regexp.Regexp{
		"preliminary": regexp.MustCompile(`(?i)\bpreliminary\b`),
		"amended":     regexp.MustCompile(`(?i)\bamended\b|\bcorrected\b`),
		"final":       regexp.MustCompile(`(?i)\bfinal\b|\bfinalized\b`),
	}

	// DiagnosticReportCategoryPatterns maps a LOINC-family category code
	// to its keyword trigger (spec §4.6: LAB, RAD, PAT, CARDIO, CUS).
	DiagnosticReportCategoryPatterns = map[string]*regexp.Regexp{
		"RAD":    regexp.MustCompile(`(?i)\b(x-?ray|ct|mri|ultrasound|radiolog\w*|imaging)\b`),
		"PAT":    regexp.MustCompile(`(?i)\bbiopsy|patholog\w*|cytolog\w*\b`),
		"CARDIO": regexp.MustCompile(`(?i)\becg|ekg|echo(?:cardiogram)?|cardiac\s+stress\b`),
		"CUS":    regexp.MustCompile(`(?i)\bultrasound\b`),
		"LAB":    regexp.MustCompile(`(?i)\blab\b|\bblood\b|\bpanel\b|\bcbc\b|\bbmp\b|\bcmp\b`),
	}
)
