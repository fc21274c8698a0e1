package normalize

import "testing"

func floatp(v float64) *float64 { return &v }

func TestMileageToKm(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value *float64
		unit  string
		want  *int
	}{
		{"miles converted", floatp(10000), "miles", intp(16093)},
		{"single mile unit", floatp(1), "mi", intp(2)},
		{"km passes through", floatp(42500), "km", intp(42500)},
		{"km rounds", floatp(42500.6), "km", intp(42501)},
		{"unit is case insensitive", floatp(100), "Miles", intp(161)},
		{"unknown unit", floatp(10000), "furlongs", nil},
		{"empty unit", floatp(10000), "", nil},
		{"nil value", nil, "miles", nil},
		{"negative value", floatp(-5), "km", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := MileageToKm(tt.value, tt.unit)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("MileageToKm(%v, %q) = %v, want %v", tt.value, tt.unit, got, tt.want)
			case *got != *tt.want:
				t.Errorf("MileageToKm(%v, %q) = %d, want %d", tt.value, tt.unit, *got, *tt.want)
			}
		})
	}
}

func TestDetectCurrency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want string
	}{
		{"Sold for $120,000", "USD"},
		{"Current bid: £85,000", "GBP"},
		{"€42.000", "EUR"},
		{"¥12,000,000", "JPY"},
		{"45000 CHF", "CHF"},
		{"120000 USD", "USD"},
		{"code beats symbol: GBP $100", "GBP"},
		{"no price shown", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := DetectCurrency(tt.text); got != tt.want {
				t.Errorf("DetectCurrency(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want *int
	}{
		{"Sold for $120,000", intp(120000)},
		{"bid 500", intp(500)},
		{"1,234,567", intp(1234567)},
		{"no number", nil},
		{"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			got := parseAmount(tt.text)
			switch {
			case got == nil && tt.want == nil:
			case got == nil || tt.want == nil:
				t.Errorf("parseAmount(%q) = %v, want %v", tt.text, got, tt.want)
			case *got != *tt.want:
				t.Errorf("parseAmount(%q) = %d, want %d", tt.text, *got, *tt.want)
			}
		})
	}
}
