package cards

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"valid", "123451234512345", nil},
		{"leading zeros", "000000000000000", nil},
		{"too short", "12345123451234", ErrInvalidLength},
		{"too long", "1234512345123456", ErrInvalidLength},
		{"empty", "", ErrInvalidLength},
		{"letters", "12345123451234a", ErrNotNumeric},
		{"sign", "+23451234512345", ErrNotNumeric},
		{"spaces", "1234 1234512345", ErrNotNumeric},
		{"unicode digits", "1234512345123١", ErrNotNumeric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card, err := Parse(tt.input)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Parse(%q) error = %v, want %v", tt.input, err, tt.wantErr)
			}
			if err == nil && card.String() != tt.input {
				t.Errorf("Parse(%q) = %q", tt.input, card)
			}
		})
	}
}

func TestAccountNumber(t *testing.T) {
	card, err := Parse("003451234512345")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := card.AccountNumber(); got != "00" {
		t.Errorf("AccountNumber() = %q, want 00", got)
	}
}
