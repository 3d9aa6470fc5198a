package testfixtures

import "testing"

func TestIDGeneratorProducesSequentialHex(t *testing.T) {
	gen := NewIDGenerator(0)

	first := gen.Next()
	second := gen.Next()

	if first != "00000001" || second != "00000002" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator(0xff)
	if next := gen.Next(); next != "00000100" {
		t.Fatalf("expected 00000100, got %q", next)
	}
	gen.Reset(0)
	if next := gen.Next(); next != "00000001" {
		t.Fatalf("expected 00000001 after reset, got %q", next)
	}
}
