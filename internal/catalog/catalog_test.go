package catalog

import (
	"regexp"
	"testing"
)

func TestLoadIsMemoized(t *testing.T) {
	a := Load()
	b := Load()
	if a != b {
		t.Fatalf("Load() returned distinct instances across calls")
	}
}

func TestDrugLexiconRxNormCodes(t *testing.T) {
	cat := New()
	tests := []struct {
		name string
		rx   string
	}{
		{"warfarin", "11289"},
		{"lisinopril", "29046"},
		{"ibuprofen", "5640"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, ok := cat.Drugs[tt.name]
			if !ok {
				t.Fatalf("expected drug %q in lexicon", tt.name)
			}
			if info.RxNorm != tt.rx {
				t.Errorf("RxNorm = %q, want %q", info.RxNorm, tt.rx)
			}
		})
	}
}

func TestClassExemplarsDerivedFromLexicon(t *testing.T) {
	cat := New()
	exemplars, ok := cat.ClassExemplars["beta blocker"]
	if !ok || len(exemplars) == 0 {
		t.Fatalf("expected beta blocker exemplars, got %v", exemplars)
	}
}

func TestInteractionPairsAreSymmetricEnoughForWarfarin(t *testing.T) {
	cat := New()
	partners := cat.InteractionPairs["warfarin"]
	found := false
	for _, p := range partners {
		if p == "aspirin" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected warfarin-aspirin interaction pair, got %v", partners)
	}
}

func TestScanCacheMemoizes(t *testing.T) {
	cache := NewScanCache(16)
	calls := 0
	scan := func() any {
		calls++
		return true
	}
	r1 := cache.Scan("conditional_logic", "if BP remains high", scan)
	r2 := cache.Scan("conditional_logic", "if BP remains high", scan)
	if calls != 1 {
		t.Errorf("fn called %d times, want 1 (second call should hit cache)", calls)
	}
	if r1 != true || r2 != true {
		t.Errorf("unexpected cached results: %v, %v", r1, r2)
	}
}

func TestCatalogFindFirstMemoizesAcrossCallers(t *testing.T) {
	cat := New()
	patterns := []*regexp.Regexp{regexp.MustCompile(`(?i)\bdaily\b`)}
	text := "take once daily"

	if m := cat.FindFirst("frequency_marker", patterns, text); m != "daily" {
		t.Fatalf("FindFirst = %q, want %q", m, "daily")
	}
	// A second caller scanning the same (class, text) pair, as C2/C4/C5
	// all do for shared marker classes, must hit the memoized result.
	if m := cat.FindFirst("frequency_marker", patterns, text); m != "daily" {
		t.Fatalf("FindFirst (memoized) = %q, want %q", m, "daily")
	}
}

func TestCatalogMatchesAndCountAll(t *testing.T) {
	cat := New()
	if !cat.Matches("dosage_marker", DosageMarkerPattern, "take 10mg now") {
		t.Error("expected dosage marker to match")
	}
	if cat.Matches("dosage_marker", DosageMarkerPattern, "no dose here") {
		t.Error("expected dosage marker not to match")
	}
	if got := cat.CountAll("medical_term", MedicalTermPattern, "diagnosis and treatment and therapy"); got != 3 {
		t.Errorf("CountAll = %d, want 3", got)
	}
}

func TestPatternsCompileAndMatchExpectedSamples(t *testing.T) {
	tests := []struct {
		name    string
		pattern interface{ MatchString(string) bool }
		text    string
		want    bool
	}{
		{"conditional if-high", ConditionalLogicPatterns[0], "if BP remains high, start metoprolol", true},
		{"maybe-or ambiguity", MedicationAmbiguityPatterns[0], "maybe metoprolol or atenolol", true},
		{"drug class bare", DrugClassPattern, "start a beta blocker", true},
		{"dosage marker", DosageMarkerPattern, "lisinopril 10mg daily", true},
		{"route token", RouteTokenPattern, "amoxicillin 500mg po tid", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.pattern.MatchString(tt.text); got != tt.want {
				t.Errorf("MatchString(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}
