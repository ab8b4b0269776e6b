package metadata

import (
	"encoding/hex"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestExtractEmptyMapReturnsNil(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	if got := Extract(raw); got != nil {
		t.Fatalf("expected nil for empty map, got %v", *got)
	}
}

func TestExtractNonEmptyMapReturnsJSON(t *testing.T) {
	raw, err := cbor.Marshal(map[string]any{"name": "test"})
	if err != nil {
		t.Fatalf("cbor.Marshal: %v", err)
	}
	got := Extract(raw)
	if got == nil {
		t.Fatal("expected non-nil metadata")
	}
	if *got != `{"name":"test"}` {
		t.Fatalf("unexpected json: %s", *got)
	}
}

func TestExtractMalformedFallsBackToHex(t *testing.T) {
	raw := []byte{0xff, 0xff, 0xff}
	got := Extract(raw)
	if got == nil {
		t.Fatal("expected hex fallback, got nil")
	}
	if *got != hex.EncodeToString(raw) {
		t.Fatalf("expected hex fallback %s, got %s", hex.EncodeToString(raw), *got)
	}
}

func TestExtractNilInputReturnsNil(t *testing.T) {
	if got := Extract(nil); got != nil {
		t.Fatalf("expected nil for empty input, got %v", *got)
	}
}
