// Package catalog is the Terminology & Pattern Catalog (C1): the static
// tables every other component reads, plus the compiled regex families
// they scan text with. It is loaded once at process start and never
// mutated afterward (spec §5 Shared state).
package catalog

import (
	"regexp"
	"sync"
)

// RiskLevel is the tagged-variant replacement for the loose "critical" vs
// "high" strings the original high_risk_medications table uses.
type RiskLevel string

const (
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// DrugInfo is one lexicon entry: a specific medication's coding and class.
type DrugInfo struct {
	Display  string
	RxNorm   string
	Class    string
}

// ConditionInfo is one condition lexicon entry.
type ConditionInfo struct {
	Display string
	SNOMED  string
}

// LabTestInfo is one lab/procedure lexicon entry.
type LabTestInfo struct {
	Display    string
	LOINC      string
	IsLab      bool
}

// Timing is the closed frequency->FHIR timing.repeat mapping from
// spec §4.6.
type Timing struct {
	Frequency  int
	Period     int
	PeriodUnit string
	AsNeeded   bool
}

// DoseCeiling is one entry of the per-drug maximum single-dose table used
// by C5's dosage-ceiling-breach trigger.
type DoseCeiling struct {
	MaxSingleMG float64
}

// CodeSystems are the FHIR coding system URIs named in spec §6.
type CodeSystems struct {
	RxNorm            string
	SNOMED            string
	LOINC             string
	ActCode           string
	ConditionClinical string
	ConditionVerStatus string
	ValidationCodes   string
}

// Catalog is the full set of static tables, loaded once and shared
// read-only across every concurrent request (spec §5).
type Catalog struct {
	Drugs               map[string]DrugInfo
	ClassExemplars      map[string][]string // drug class -> specific drug names recognized as satisfying it
	DoseUnits           map[string]string   // unit alias -> normalized unit
	FrequencyMap        map[string]Timing   // normalized frequency phrase -> timing
	Abbreviations       map[string]string   // abbreviation -> canonical phrase
	HighRiskMedications map[string]RiskLevel
	HighRiskClasses     map[string]RiskLevel
	InteractionPairs    map[string][]string // drug -> drugs it interacts with
	DoseCeilings        map[string]DoseCeiling
	CriticalConditions  map[string][]string // condition key -> keyword variants
	Conditions          map[string]ConditionInfo
	LabTests            map[string]LabTestInfo
	Code                CodeSystems

	scans *ScanCache
}

var (
	once     sync.Once
	instance *Catalog
)

// Load returns the process-wide Catalog, building it on first call and
// memoizing thereafter (spec §5: "loaded once at startup and never
// mutated").
func Load() *Catalog {
	once.Do(func() {
		instance = build()
	})
	return instance
}

// New builds a fresh Catalog, bypassing the process-wide singleton. Tests
// use this so they don't share cache state with other tests or depend on
// call order.
func New() *Catalog {
	return build()
}

func build() *Catalog {
	return &Catalog{
		Drugs:               drugLexicon(),
		ClassExemplars:      classExemplars(),
		DoseUnits:           doseUnitGrammar(),
		FrequencyMap:        frequencyLexicon(),
		Abbreviations:       abbreviationMap(),
		HighRiskMedications: highRiskMedications(),
		HighRiskClasses:     highRiskClasses(),
		InteractionPairs:    interactionPairs(),
		DoseCeilings:        doseCeilings(),
		CriticalConditions:  criticalConditions(),
		Conditions:          conditionLexicon(),
		LabTests:            labTestLexicon(),
		Code: CodeSystems{
			RxNorm:             "http://www.nlm.nih.gov/research/umls/rxnorm",
			SNOMED:             "http://snomed.info/sct",
			LOINC:              "http://loinc.org",
			ActCode:            "http://terminology.hl7.org/CodeSystem/v3-ActCode",
			ConditionClinical:  "http://terminology.hl7.org/CodeSystem/condition-clinical",
			ConditionVerStatus: "http://terminology.hl7.org/CodeSystem/condition-ver-status",
			ValidationCodes:    "http://nl-fhir.com/validation-codes",
		},
		scans: NewScanCache(0),
	}
}

// FindFirst returns the first match among patterns against text, memoized
// per pattern class so C2/C4/C5 don't re-run the same family of regexes
// against the same request text across tiers (spec §5).
func (c *Catalog) FindFirst(class string, patterns []*regexp.Regexp, text string) string {
	return c.scans.Scan(class, text, func() any {
		for _, p := range patterns {
			if m := p.FindString(text); m != "" {
				return m
			}
		}
		return ""
	}).(string)
}

// Matches reports whether pattern matches text, memoized per pattern
// class.
func (c *Catalog) Matches(class string, pattern *regexp.Regexp, text string) bool {
	return c.scans.Scan(class, text, func() any {
		return pattern.MatchString(text)
	}).(bool)
}

// FindString returns pattern's first match against text, memoized per
// pattern class.
func (c *Catalog) FindString(class string, pattern *regexp.Regexp, text string) string {
	return c.scans.Scan(class, text, func() any {
		return pattern.FindString(text)
	}).(string)
}

// CountAll returns the number of non-overlapping matches of pattern in
// text, memoized per pattern class.
func (c *Catalog) CountAll(class string, pattern *regexp.Regexp, text string) int {
	return c.scans.Scan(class, text, func() any {
		return len(pattern.FindAllString(text, -1))
	}).(int)
}

// illustrative, hard-coded lexicons. A production deployment sources these
// from a curated, versioned terminology set (spec §9 Open Questions).

func drugLexicon() map[string]DrugInfo {
	return map[string]DrugInfo{
		"lisinopril":    {Display: "Lisinopril", RxNorm: "29046", Class: "ace inhibitor"},
		"metoprolol":    {Display: "Metoprolol", RxNorm: "6918", Class: "beta blocker"},
		"atenolol":      {Display: "Atenolol", RxNorm: "1202", Class: "beta blocker"},
		"amlodipine":    {Display: "Amlodipine", RxNorm: "17767", Class: "calcium channel blocker"},
		"simvastatin":   {Display: "Simvastatin", RxNorm: "36567", Class: "statin"},
		"omeprazole":    {Display: "Omeprazole", RxNorm: "7646", Class: "ppi"},
		"lansoprazole":  {Display: "Lansoprazole", RxNorm: "17128", Class: "ppi"},
		"ibuprofen":     {Display: "Ibuprofen", RxNorm: "5640", Class: "nsaid"},
		"acetaminophen": {Display: "Acetaminophen", RxNorm: "161", Class: "analgesic"},
		"aspirin":       {Display: "Aspirin", RxNorm: "1191", Class: "antiplatelet"},
		"fluoxetine":    {Display: "Fluoxetine", RxNorm: "4493", Class: "ssri"},
		"sertraline":    {Display: "Sertraline", RxNorm: "36437", Class: "ssri"},
		"amoxicillin":   {Display: "Amoxicillin", RxNorm: "723", Class: "antibiotic"},
		"azithromycin":  {Display: "Azithromycin", RxNorm: "18631", Class: "antibiotic"},
		"ciprofloxacin": {Display: "Ciprofloxacin", RxNorm: "2551", Class: "antibiotic"},
		"warfarin":      {Display: "Warfarin", RxNorm: "11289", Class: "anticoagulant"},
		"insulin":       {Display: "Insulin", RxNorm: "5856", Class: "antidiabetic"},
		"digoxin":       {Display: "Digoxin", RxNorm: "3407", Class: "cardiac glycoside"},
		"lithium":       {Display: "Lithium", RxNorm: "6448", Class: "mood stabilizer"},
		"morphine":      {Display: "Morphine", RxNorm: "7052", Class: "opioid"},
		"fentanyl":      {Display: "Fentanyl", RxNorm: "4337", Class: "opioid"},
		"oxycodone":     {Display: "Oxycodone", RxNorm: "7804", Class: "opioid"},
		"hydrocodone":   {Display: "Hydrocodone", RxNorm: "5489", Class: "opioid"},
		"methotrexate":  {Display: "Methotrexate", RxNorm: "6851", Class: "chemotherapy"},
		"cisplatin":     {Display: "Cisplatin", RxNorm: "2555", Class: "chemotherapy"},
		"doxorubicin":   {Display: "Doxorubicin", RxNorm: "3639", Class: "chemotherapy"},
		"clarithromycin": {Display: "Clarithromycin", RxNorm: "21212", Class: "antibiotic"},
		"fluconazole":   {Display: "Fluconazole", RxNorm: "4450", Class: "antifungal"},
		"amiodarone":    {Display: "Amiodarone", RxNorm: "703", Class: "antiarrhythmic"},
		"metronidazole": {Display: "Metronidazole", RxNorm: "6922", Class: "antibiotic"},
	}
}

// classExemplars names the specific drugs that "count" as satisfying a
// class-term mention for C2's drug-class-without-drug check (spec §4.1).
func classExemplars() map[string][]string {
	exemplars := make(map[string][]string)
	for name, info := range drugLexicon() {
		exemplars[info.Class] = append(exemplars[info.Class], name)
	}
	return exemplars
}

func doseUnitGrammar() map[string]string {
	return map[string]string{
		"mg": "mg", "milligram": "mg", "milligrams": "mg",
		"mcg": "mcg", "microgram": "mcg", "micrograms": "mcg", "ug": "mcg",
		"g": "g", "gram": "g", "grams": "g",
		"ml": "mL", "milliliter": "mL", "milliliters": "mL",
		"units": "units", "unit": "units",
		"%": "%", "puff": "puffs", "puffs": "puffs",
	}
}

func frequencyLexicon() map[string]Timing {
	return map[string]Timing{
		"once daily":          {Frequency: 1, Period: 1, PeriodUnit: "d"},
		"daily":               {Frequency: 1, Period: 1, PeriodUnit: "d"},
		"qd":                  {Frequency: 1, Period: 1, PeriodUnit: "d"},
		"nightly":             {Frequency: 1, Period: 1, PeriodUnit: "d"},
		"twice daily":         {Frequency: 2, Period: 1, PeriodUnit: "d"},
		"bid":                 {Frequency: 2, Period: 1, PeriodUnit: "d"},
		"three times daily":   {Frequency: 3, Period: 1, PeriodUnit: "d"},
		"tid":                 {Frequency: 3, Period: 1, PeriodUnit: "d"},
		"four times daily":    {Frequency: 4, Period: 1, PeriodUnit: "d"},
		"qid":                 {Frequency: 4, Period: 1, PeriodUnit: "d"},
		"as needed":           {AsNeeded: true},
		"prn":                 {AsNeeded: true},
	}
}

func abbreviationMap() map[string]string {
	return map[string]string{
		"qd":    "once daily",
		"bid":   "twice daily",
		"tid":   "three times daily",
		"qid":   "four times daily",
		"prn":   "as needed",
		"po":    "oral",
		"iv":    "intravenous",
		"im":    "intramuscular",
		"subq":  "subcutaneous",
		"sl":    "sublingual",
	}
}

func highRiskMedications() map[string]RiskLevel {
	return map[string]RiskLevel{
		"warfarin": RiskCritical, "insulin": RiskCritical, "digoxin": RiskCritical, "lithium": RiskCritical,
		"methotrexate": RiskHigh, "cisplatin": RiskHigh, "doxorubicin": RiskHigh,
		"morphine": RiskHigh, "fentanyl": RiskHigh, "oxycodone": RiskHigh, "hydrocodone": RiskHigh,
	}
}

func highRiskClasses() map[string]RiskLevel {
	return map[string]RiskLevel{
		"chemotherapy": RiskHigh,
		"opioid":       RiskHigh,
	}
}

func interactionPairs() map[string][]string {
	return map[string][]string{
		"warfarin": {"aspirin", "ibuprofen", "clarithromycin", "fluconazole", "amiodarone", "metronidazole"},
		"digoxin":  {"amiodarone", "clarithromycin"},
		"lithium":  {"ibuprofen", "metronidazole"},
	}
}

func doseCeilings() map[string]DoseCeiling {
	return map[string]DoseCeiling{
		"acetaminophen": {MaxSingleMG: 1000},
		"ibuprofen":     {MaxSingleMG: 800},
		"aspirin":       {MaxSingleMG: 975},
	}
}

func criticalConditions() map[string][]string {
	return map[string][]string{
		"acute_mi":           {"acute mi", "stemi", "nstemi", "myocardial infarction"},
		"sepsis":             {"sepsis", "septic shock"},
		"stroke":             {"stroke", "cva"},
		"anaphylaxis":        {"anaphylaxis"},
		"status_epilepticus": {"status epilepticus"},
		"cardiac_arrest":     {"cardiac arrest"},
	}
}

func conditionLexicon() map[string]ConditionInfo {
	return map[string]ConditionInfo{
		"hypertension":            {Display: "Hypertension", SNOMED: "38341003"},
		"diabetes":                {Display: "Diabetes mellitus", SNOMED: "73211009"},
		"hyperlipidemia":          {Display: "Hyperlipidemia", SNOMED: "55822004"},
		"gerd":                    {Display: "Gastroesophageal reflux disease", SNOMED: "235595009"},
		"cardiovascular protection": {Display: "Cardiovascular risk reduction", SNOMED: "414545008"},
		"depression":              {Display: "Depression", SNOMED: "35489007"},
		"pain":                    {Display: "Pain", SNOMED: "22253000"},
	}
}

func labTestLexicon() map[string]LabTestInfo {
	return map[string]LabTestInfo{
		"cbc":               {Display: "Complete blood count", LOINC: "58410-2", IsLab: true},
		"bmp":                {Display: "Basic metabolic panel", LOINC: "51990-0", IsLab: true},
		"cmp":                {Display: "Comprehensive metabolic panel", LOINC: "24323-8", IsLab: true},
		"inr":                {Display: "International normalized ratio", LOINC: "34714-6", IsLab: true},
		"chest x-ray":        {Display: "Chest X-ray", LOINC: "36643-5", IsLab: false},
		"ecg":                {Display: "Electrocardiogram", LOINC: "11524-6", IsLab: false},
	}
}
