package ownership

import (
	"testing"
)

func TestStrictPercentage(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"float", 40.0, 40, true},
		{"int", 25, 25, true},
		{"float32", float32(12.5), 12.5, true},
		{"numeric string", "35.5", 35.5, true},
		{"padded string", "  12.5 ", 12.5, true},
		{"zero", 0, 0, true},
		{"nil", nil, 0, false},
		{"empty string", "", 0, false},
		{"blank string", "   ", 0, false},
		{"word", "not-a-number", 0, false},
		{"percent sign", "12%", 0, false},
		{"nan", "NaN", 0, false},
		{"infinity", "Inf", 0, false},
		{"slice", []int{1}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := StrictPercentage(tt.value)
			if ok != tt.ok {
				t.Fatalf("StrictPercentage(%v) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("StrictPercentage(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestLenientPercentage(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  float64
		ok    bool
	}{
		{"plain number", 40.0, 40, true},
		{"numeric string", "35.5", 35.5, true},
		{"ascii percent", "12%", 12, true},
		{"fullwidth percent", "约 35.5％", 35.5, true},
		{"less than", "<5%", 5, true},
		{"chinese qualifier", "少于5", 5, true},
		{"thousands separator", "1,000", 1000, true},
		{"above", "50以上", 50, true},
		{"qualifier only", "少于", 0, false},
		{"word", "unknown", 0, false},
		{"nil", nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := LenientPercentage(tt.value)
			if ok != tt.ok {
				t.Fatalf("LenientPercentage(%v) ok = %v, want %v", tt.value, ok, tt.ok)
			}
			if got != tt.want {
				t.Errorf("LenientPercentage(%v) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestCoercerFor(t *testing.T) {
	if _, ok := CoercerFor("lenient")("12%"); !ok {
		t.Error("Expected lenient coercer to accept '12%'")
	}
	if _, ok := CoercerFor(" LENIENT ")("12%"); !ok {
		t.Error("Expected mode lookup to ignore case and whitespace")
	}
	if _, ok := CoercerFor("strict")("12%"); ok {
		t.Error("Expected strict coercer to reject '12%'")
	}
	if _, ok := CoercerFor("bogus")("12%"); ok {
		t.Error("Expected unknown mode to fall back to strict")
	}
}
