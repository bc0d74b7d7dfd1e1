package backend

import (
	"testing"

	"github.com/dagargo/elektroid/internal/fsops"
)

func TestParseIdentityReplyShortForm(t *testing.T) {
	raw := []byte{
		0xf0, 0x7e, 0x00, 0x06, 0x02,
		0x42,       // company ID (Korg)
		0x01, 0x00, // family
		0x02, 0x00, // model
		0x00, 0x01, 0x00, 0x00, // version
		0xf7,
	}
	id, err := parseIdentityReply(raw)
	if err != nil {
		t.Fatalf("parseIdentityReply: %v", err)
	}
	if id.CompanyID != 0x42 {
		t.Errorf("CompanyID = %#x, want 0x42", id.CompanyID)
	}
	if id.FamilyID != 1 || id.ModelID != 2 {
		t.Errorf("FamilyID=%d ModelID=%d, want 1,2", id.FamilyID, id.ModelID)
	}
}

func TestParseIdentityReplyLongForm(t *testing.T) {
	raw := []byte{
		0xf0, 0x7e, 0x00, 0x06, 0x02,
		0x00, 0x20, 0x29, // 3-byte company ID (Arturia-style)
		0x01, 0x00, // family
		0x02, 0x00, // model
		0x01, 0x00, 0x00, 0x00, // version
		0xf7,
	}
	id, err := parseIdentityReply(raw)
	if err != nil {
		t.Fatalf("parseIdentityReply: %v", err)
	}
	if id.FamilyID != 1 || id.ModelID != 2 {
		t.Errorf("FamilyID=%d ModelID=%d, want 1,2", id.FamilyID, id.ModelID)
	}
}

func TestParseIdentityReplyRejectsGarbage(t *testing.T) {
	cases := [][]byte{
		nil,
		{0xf0, 0x7e},
		{0xf1, 0x7e, 0x00, 0x06, 0x02, 0x42, 0, 0, 0, 0, 0, 0, 0, 0, 0xf7},
		{0xf0, 0x7e, 0x00, 0x06, 0x01, 0x42, 0, 0, 0, 0, 0, 0, 0, 0, 0xf7}, // sub-ID 01, not 02
	}
	for _, raw := range cases {
		if _, err := parseIdentityReply(raw); err == nil {
			t.Errorf("parseIdentityReply(% x) should have failed", raw)
		}
	}
}

func TestNoneBackendRejectsTraffic(t *testing.T) {
	var b Backend
	if b.IsOpen() {
		t.Error("zero-value Backend should report closed")
	}
	if _, err := b.Rx(10, false); err == nil {
		t.Error("Rx on an unopened backend should fail")
	}
	if err := b.Tx([]byte{0xf0, 0xf7}); err == nil {
		t.Error("Tx on an unopened backend should fail")
	}
	if err := b.Close(); err != nil {
		t.Errorf("Close on an unopened backend should be a no-op, got %v", err)
	}
}

type fakeOps struct{ fsops.Base }

func (fakeOps) ID() int32 { return 1 }
func (fakeOps) Name() string { return "fake" }
func (fakeOps) Options() fsops.Options { return 0 }
func (fakeOps) MaxNameLen() int { return 16 }
func (fakeOps) TypeExt() string { return "" }
func (fakeOps) Extensions() []string { return nil }

func TestSetFilesystemsIsCopied(t *testing.T) {
	var b Backend
	fss := []fsops.Ops{fakeOps{}}
	b.SetFilesystems(fss)
	fss[0] = nil
	got := b.Filesystems()
	if len(got) != 1 || got[0] == nil {
		t.Errorf("Filesystems() should be unaffected by mutating the caller's slice, got %v", got)
	}
}

func TestSetDataRoundTrip(t *testing.T) {
	var b Backend
	b.SetData("payload", func(any) {})
	if b.Data() != "payload" {
		t.Fatalf("Data() = %v", b.Data())
	}
}
