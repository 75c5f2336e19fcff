package core

import "testing"

func TestParsePrice(t *testing.T) {
	tests := []struct {
		name  string
		input string
		valid bool
		want  string
	}{
		{name: "plain", input: "12.5", valid: true, want: "12.50"},
		{name: "currency symbol", input: "$12.50", valid: true, want: "12.50"},
		{name: "thousands separator", input: "1,234.56", valid: true, want: "1234.56"},
		{name: "integer", input: "7", valid: true, want: "7.00"},
		{name: "rounds half up", input: "3.005", valid: true, want: "3.01"},
		{name: "rounds down", input: "3.004", valid: true, want: "3.00"},
		{name: "surrounding text", input: "USD 9.99 each", valid: true, want: "9.99"},
		{name: "zero", input: "0", valid: true, want: "0.00"},
		{name: "minus sign is stripped", input: "-5.00", valid: true, want: "5.00"},
		{name: "empty", input: "", valid: false},
		{name: "no digits", input: "N/A", valid: false},
		{name: "only dot", input: ".", valid: false},
		{name: "two dots", input: "1.2.3", valid: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePrice(tt.input)
			if got.Valid != tt.valid {
				t.Fatalf("ParsePrice(%q).Valid = %v, want %v", tt.input, got.Valid, tt.valid)
			}
			if !tt.valid {
				return
			}
			if s := got.Decimal.StringFixed(PricePlaces); s != tt.want {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.input, s, tt.want)
			}
		})
	}
}

func TestNullableText(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  *string
	}{
		{"empty", "", nil},
		{"whitespace", "  \t ", nil},
		{"trimmed", "  Navy  ", strPtr("Navy")},
		{"leading BOM", "\uFEFFRed", strPtr("Red")},
		{"invalid bytes dropped", "Bl\xffue", strPtr("Blue")},
		{"only invalid bytes", "\xff\xfe", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nullableText(tt.input)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("nullableText(%q) = %v, want %v", tt.input, got, tt.want)
			case *got != *tt.want:
				t.Errorf("nullableText(%q) = %q, want %q", tt.input, *got, *tt.want)
			}
		})
	}
}

func strPtr(s string) *string { return &s }
