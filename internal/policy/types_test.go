package policy

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"sequential", ModeSequential, false},
		{"ANY", ModeAny, false},
		{" any ", ModeAny, false},
		{"parallel", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error %v does not wrap ErrValidation", err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseCardID(t *testing.T) {
	want := CardID{0xDE, 0xAD, 0xBE, 0xEF}
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"DEADBEEF", false},
		{"deadbeef", false},
		{"DE:AD:BE:EF", false},
		{"de-ad-be-ef", false},
		{"DE AD BE EF", false},
		{"DEADBE", true},
		{"DEADBEEF00", true},
		{"ZZADBEEF", true},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCardID(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCardID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if !tt.wantErr && got != want {
				t.Errorf("ParseCardID(%q) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestCardIDFromBytes(t *testing.T) {
	id, err := CardIDFromBytes([]byte{0x01, 0x02, 0x03, 0x04, 0x04})
	if err != nil {
		t.Fatalf("CardIDFromBytes() with check byte error = %v", err)
	}
	if id.String() != "01020304" {
		t.Errorf("String() = %q, want 01020304", id.String())
	}
	if _, err := CardIDFromBytes([]byte{1, 2}); !errors.Is(err, ErrValidation) {
		t.Errorf("short uid error = %v, want ErrValidation", err)
	}
}

func TestCardID_RedactedAndJSON(t *testing.T) {
	id := CardID{0xDE, 0xAD, 0xBE, 0xEF}
	if got := id.Redacted(); got != "****BEEF" {
		t.Errorf("Redacted() = %q, want ****BEEF", got)
	}

	b, err := json.Marshal([]CardID{id})
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != `["DEADBEEF"]` {
		t.Errorf("json = %s", b)
	}

	var back []CardID
	if err := json.Unmarshal([]byte(`["de:ad:be:ef"]`), &back); err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0] != id {
		t.Errorf("unmarshal = %v", back)
	}
}

func TestSnapshot(t *testing.T) {
	card := CardID{1, 2, 3, 4}
	s := NewSnapshot(ModeAny, "4821", []CardID{card}, []int{7})

	if s.Mode() != ModeAny {
		t.Errorf("Mode() = %q", s.Mode())
	}
	if !s.CheckPasscode("4821") || s.CheckPasscode("4822") || s.CheckPasscode("") {
		t.Error("CheckPasscode() mismatch")
	}
	if !s.HasCard(card) || s.HasCard(CardID{9, 9, 9, 9}) {
		t.Error("HasCard() mismatch")
	}
	if !s.HasFingerprint(7) || s.HasFingerprint(8) {
		t.Error("HasFingerprint() mismatch")
	}
	if s.CardCount() != 1 || s.FingerprintCount() != 1 {
		t.Error("counts mismatch")
	}

	empty := NewSnapshot(ModeSequential, "", nil, nil)
	if empty.CheckPasscode("") {
		t.Error("unset passcode must never match")
	}
}

func TestValidatePasscode(t *testing.T) {
	tests := []struct {
		code    string
		wantErr bool
	}{
		{"1234", false},
		{"12345678", false},
		{"123", true},
		{"123456789", true},
		{"12a4", true},
		{"١٢٣٤", true}, // non-ASCII digits
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := ValidatePasscode(tt.code)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidatePasscode(%q) error = %v, wantErr %v", tt.code, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrValidation) {
				t.Errorf("error does not wrap ErrValidation")
			}
		})
	}
}

func TestValidateFingerprintID(t *testing.T) {
	for _, id := range []int{0, 1, MaxFingerprintID} {
		if err := ValidateFingerprintID(id); err != nil {
			t.Errorf("ValidateFingerprintID(%d) error = %v", id, err)
		}
	}
	for _, id := range []int{-1, MaxFingerprintID + 1} {
		if err := ValidateFingerprintID(id); !errors.Is(err, ErrValidation) {
			t.Errorf("ValidateFingerprintID(%d) error = %v, want ErrValidation", id, err)
		}
	}
}
