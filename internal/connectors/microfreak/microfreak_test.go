package microfreak

import (
	"bytes"
	"strings"
	"testing"

	"github.com/dagargo/elektroid/internal/xpath"
)

func TestFrameLayout(t *testing.T) {
	msg := frame(opSampleHeaderReq, 0x03)
	want := []byte{0xf0, 0x00, 0x20, 0x6b, 0x10, 0x03, 0xf7}
	if !bytes.Equal(msg, want) {
		t.Errorf("frame = % x, want % x", msg, want)
	}
}

func TestRequireOp(t *testing.T) {
	if err := requireOp(frame(opSampleHeaderResp, 0x03), opSampleHeaderResp); err != nil {
		t.Errorf("matching opcode should pass: %v", err)
	}
	if err := requireOp(frame(opSampleDataResp, 0x03), opSampleHeaderResp); err == nil {
		t.Error("mismatched opcode should fail")
	}
	if err := requireOp([]byte{0xf0, 0xf7}, opSampleHeaderResp); err == nil {
		t.Error("truncated reply should fail")
	}
}

func TestAlphabetSanitization(t *testing.T) {
	got := xpath.SanitizeAlphabet("Kick/Drum#1!", alphabet, '_')
	if strings.ContainsAny(got, "/#!") {
		t.Errorf("sanitized name still contains forbidden characters: %q", got)
	}
	if got != "Kick_Drum_1_" {
		t.Errorf("sanitized = %q, want \"Kick_Drum_1_\"", got)
	}
}

func TestSlotCountMatchesReadDir(t *testing.T) {
	o := &Ops{}
	it, err := o.ReadDir(nil, "/", nil)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	defer it.Close()
	n := 0
	for {
		_, ok, err := it.Next()
		if err != nil {
			t.Fatal(err)
		}
		if !ok {
			break
		}
		n++
	}
	if n != slotCount {
		t.Errorf("ReadDir yielded %d items, want %d", n, slotCount)
	}
}
