package types

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestHash_IsZero(t *testing.T) {
	var zero Hash
	if !zero.IsZero() {
		t.Error("zero-value Hash should be zero")
	}
	if (Hash{0x01}).IsZero() {
		t.Error("non-zero Hash should not be zero")
	}
}

func TestHash_String(t *testing.T) {
	var h Hash
	if s := h.String(); s != strings.Repeat("0", 64) {
		t.Errorf("zero hash String() = %s, want all zeros", s)
	}

	h[0] = 0xab
	h[31] = 0xcd
	s := h.String()
	if !strings.HasPrefix(s, "ab") || !strings.HasSuffix(s, "cd") {
		t.Errorf("String() = %s, want ab...cd", s)
	}
}

func TestHash_Bytes(t *testing.T) {
	h := Hash{0x01, 0x02, 0x03}
	b := h.Bytes()
	if len(b) != HashSize {
		t.Fatalf("Bytes() length = %d, want %d", len(b), HashSize)
	}
	b[0] = 0xFF
	if h[0] == 0xFF {
		t.Error("Bytes() should return a copy, not a reference")
	}
}

func TestHash_LeadingZeroNibbles(t *testing.T) {
	tests := []struct {
		name string
		hash Hash
		want int
	}{
		{"high nibble set", Hash{0xa0}, 0},
		{"low nibble set", Hash{0x0a}, 1},
		{"two zero bytes then 0x01", Hash{0x00, 0x00, 0x01}, 5},
		{"two zero bytes then 0x10", Hash{0x00, 0x00, 0x10}, 4},
		{"all zero", Hash{}, 64},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.hash.LeadingZeroNibbles(); got != tt.want {
				t.Errorf("LeadingZeroNibbles() = %d, want %d", got, tt.want)
			}
			if got := strings.TrimLeft(tt.hash.String(), "0"); 64-len(got) != tt.want {
				t.Errorf("hex form %s disagrees with count %d", tt.hash, tt.want)
			}
		})
	}
}

func TestHash_HasZeroPrefix(t *testing.T) {
	h := Hash{0x00, 0x00, 0x1f}
	if !h.HasZeroPrefix(4) {
		t.Error("HasZeroPrefix(4) = false, want true")
	}
	if h.HasZeroPrefix(5) {
		t.Error("HasZeroPrefix(5) = true, want false")
	}
	if !h.HasZeroPrefix(0) {
		t.Error("HasZeroPrefix(0) should always hold")
	}
}

func TestHexToHash(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "valid 64 hex chars", input: "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"},
		{name: "all zeros", input: strings.Repeat("0", 64)},
		{name: "too short", input: "abcd", wantErr: true},
		{name: "too long", input: strings.Repeat("a", 66), wantErr: true},
		{name: "not hex", input: strings.Repeat("z", 64), wantErr: true},
		{name: "genesis sentinel", input: "1", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := HexToHash(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("HexToHash(%q) err = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if err == nil && h.String() != tt.input {
				t.Errorf("roundtrip = %s, want %s", h, tt.input)
			}
		})
	}
}

func TestHash_JSON(t *testing.T) {
	h := Hash{0xde, 0xad, 0xbe, 0xef}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `"`+h.String()+`"` {
		t.Errorf("Marshal = %s", data)
	}

	var got Hash
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got != h {
		t.Errorf("Unmarshal = %s, want %s", got, h)
	}

	if err := json.Unmarshal([]byte(`"xyz"`), &got); err == nil {
		t.Error("Unmarshal of invalid hex should fail")
	}
}
