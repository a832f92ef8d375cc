package dosing

import "testing"

func TestParseDose(t *testing.T) {
	p := NewParser()
	tests := []struct {
		name      string
		fragment  string
		wantValue float64
		wantUnit  string
		wantErr   bool
	}{
		{"simple mg", "10mg", 10, "mg", false},
		{"spaced unit", "81 mg", 81, "mg", false},
		{"micrograms alias", "50mcg", 50, "mcg", false},
		{"ug alias normalizes to mcg", "50ug", 50, "mcg", false},
		{"unrecognized", "a lot", 0, "", true},
		{"empty", "", 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dose, err := p.ParseDose(tt.fragment)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.fragment)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dose.Value != tt.wantValue || dose.Unit != tt.wantUnit {
				t.Errorf("ParseDose(%q) = %+v, want {%v %v}", tt.fragment, dose, tt.wantValue, tt.wantUnit)
			}
		})
	}
}

func TestParseFrequency(t *testing.T) {
	p := NewParser()
	tests := []struct {
		name   string
		phrase string
		want   Timing
	}{
		{"once daily", "once daily", Timing{Frequency: 1, Period: 1, PeriodUnit: "d", Recognized: true}},
		{"bid", "BID", Timing{Frequency: 2, Period: 1, PeriodUnit: "d", Recognized: true}},
		{"tid", "tid", Timing{Frequency: 3, Period: 1, PeriodUnit: "d", Recognized: true}},
		{"q6h", "q6h", Timing{Frequency: 1, Period: 6, PeriodUnit: "h", Recognized: true}},
		{"every 8 hours", "every 8 hours", Timing{Frequency: 1, Period: 8, PeriodUnit: "h", Recognized: true}},
		{"prn", "prn", Timing{AsNeeded: true, Recognized: true}},
		{"unrecognized phrase", "every hour", Timing{Recognized: false}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.ParseFrequency(tt.phrase)
			if got != tt.want {
				t.Errorf("ParseFrequency(%q) = %+v, want %+v", tt.phrase, got, tt.want)
			}
		})
	}
}

func TestParseRoute(t *testing.T) {
	p := NewParser()
	canonical, ok := p.ParseRoute("po")
	if !ok || canonical != "oral" {
		t.Errorf("ParseRoute(po) = %q, %v, want oral, true", canonical, ok)
	}
	if _, ok := p.ParseRoute("xyz"); ok {
		t.Errorf("expected ParseRoute(xyz) to be unrecognized")
	}
}

func TestExtractNumber(t *testing.T) {
	v, ok := ExtractNumber("10mg")
	if !ok || v != 10 {
		t.Errorf("ExtractNumber(10mg) = %v, %v, want 10, true", v, ok)
	}
	if _, ok := ExtractNumber("no digits here"); ok {
		t.Errorf("expected ExtractNumber to fail on text with no digits")
	}
}
