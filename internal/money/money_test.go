package money

import "testing"

func TestParseUSD(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    USD
		wantErr bool
	}{
		{"one cent", "0.01", 10000, false},
		{"whole dollar", "1", 1000000, false},
		{"one atomic unit", "0.000001", 1, false},
		{"sub-atomic truncates to zero", "0.0000001", 0, false},
		{"truncates not rounds", "0.0000019", 1, false},
		{"quarter cent", "0.0025", 2500, false},
		{"large amount", "1234.56", 1234560000, false},
		{"zero", "0", 0, false},
		{"empty", "", 0, true},
		{"negative", "-1", 0, true},
		{"garbage", "abc", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseUSD(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseUSD(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseUSD(%q) = %d, want %d", tt.input, got, tt.want)
			}
		})
	}
}

func TestFromFloatRounds(t *testing.T) {
	tests := []struct {
		input float64
		want  USD
	}{
		{0.29, 290000}, // 0.29 * 1e6 is 289999.99… in float64
		{0.01, 10000},
		{1, 1000000},
		{0.0000004, 0},
		{0.0000006, 1},
		{-1, 0},
		{0, 0},
	}

	for _, tt := range tests {
		if got := FromFloat(tt.input); got != tt.want {
			t.Errorf("FromFloat(%v) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestAtomic(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.01", "10000"},
		{"1", "1000000"},
		{"0.000001", "1"},
		{"0.0000001", "0"},
		{"0.10", "100000"},
	}

	for _, tt := range tests {
		u, err := ParseUSD(tt.input)
		if err != nil {
			t.Fatalf("ParseUSD(%q): %v", tt.input, err)
		}
		if got := u.Atomic(); got != tt.want {
			t.Errorf("ParseUSD(%q).Atomic() = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestFormat(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"0.01", "0.01"},
		{"1", "1.00"},
		{"0.0025", "0.0025"},
		{"0.10", "0.10"},
		{"12.345", "12.34"},
		{"0.000001", "0.000001"},
		{"0.00050", "0.0005"},
	}

	for _, tt := range tests {
		u, err := ParseUSD(tt.input)
		if err != nil {
			t.Fatalf("ParseUSD(%q): %v", tt.input, err)
		}
		if got := u.Format(); got != tt.want {
			t.Errorf("ParseUSD(%q).Format() = %q, want %q", tt.input, got, tt.want)
		}
	}
}
