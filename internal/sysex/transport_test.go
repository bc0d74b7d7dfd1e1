package sysex

import (
	"bytes"
	"testing"
	"time"

	"github.com/dagargo/elektroid/internal/xerr"
)

// fakeWire feeds a predetermined sequence of chunks to the transport, one
// per ReadChunk call, then reports silence (nil, nil) forever.
type fakeWire struct {
	chunks [][]byte
	idx    int
	sent   [][]byte
}

func (f *fakeWire) Write(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	f.sent = append(f.sent, cp)
	return nil
}

func (f *fakeWire) ReadChunk(maxLen int, pollTimeout time.Duration) ([]byte, error) {
	if f.idx < len(f.chunks) {
		c := f.chunks[f.idx]
		f.idx++
		return c, nil
	}
	return nil, nil
}

func TestRxSingleMessage(t *testing.T) {
	w := &fakeWire{chunks: [][]byte{{0xf0, 1, 2, 3, 0xf7}}}
	tr := New(w, 0)
	got, err := tr.Rx(100, false, nil)
	if err != nil {
		t.Fatalf("Rx error: %v", err)
	}
	want := []byte{0xf0, 1, 2, 3, 0xf7}
	if !bytes.Equal(got, want) {
		t.Errorf("Rx = % x, want % x", got, want)
	}
}

func TestRxSkipsLeadingGarbageAndStripsRealtime(t *testing.T) {
	w := &fakeWire{chunks: [][]byte{
		{0x01, 0x02, 0xf0, 1, 0xf8, 2, 0xf7},
	}}
	tr := New(w, 0)
	got, err := tr.Rx(100, false, nil)
	if err != nil {
		t.Fatalf("Rx error: %v", err)
	}
	want := []byte{0xf0, 1, 2, 0xf7}
	if !bytes.Equal(got, want) {
		t.Errorf("Rx = % x, want % x", got, want)
	}
}

func TestRxDropsDegenerateEmptyMessage(t *testing.T) {
	w := &fakeWire{chunks: [][]byte{
		{0xf0, 0xf7, 0xf0, 9, 0xf7},
	}}
	tr := New(w, 0)
	got, err := tr.Rx(100, false, nil)
	if err != nil {
		t.Fatalf("Rx error: %v", err)
	}
	want := []byte{0xf0, 9, 0xf7}
	if !bytes.Equal(got, want) {
		t.Errorf("Rx = % x, want % x", got, want)
	}
}

func TestRxBatchCollectsUntilSilence(t *testing.T) {
	w := &fakeWire{chunks: [][]byte{
		{0xf0, 1, 0xf7},
		{0xf0, 2, 0xf7},
	}}
	tr := New(w, 0)
	got, err := tr.Rx(200, true, nil)
	if err != nil {
		t.Fatalf("Rx error: %v", err)
	}
	want := []byte{0xf0, 1, 0xf7, 0xf0, 2, 0xf7}
	if !bytes.Equal(got, want) {
		t.Errorf("Rx = % x, want % x", got, want)
	}
}

func TestRxTimeoutWithNoMessage(t *testing.T) {
	w := &fakeWire{}
	tr := New(w, 0)
	_, err := tr.Rx(20, false, nil)
	if !xerr.Is(err, xerr.KindTimedOut) {
		t.Errorf("expected KindTimedOut, got %v", err)
	}
}

func TestRxCancel(t *testing.T) {
	w := &fakeWire{}
	tr := New(w, 0)
	calls := 0
	cancel := func() bool {
		calls++
		return calls > 1
	}
	_, err := tr.Rx(0, false, cancel)
	if !xerr.Is(err, xerr.KindCanceled) {
		t.Errorf("expected KindCanceled, got %v", err)
	}
}

func TestTxChunks(t *testing.T) {
	w := &fakeWire{}
	tr := New(w, 4)
	raw := []byte{0xf0, 1, 2, 3, 4, 5, 0xf7}
	if err := tr.Tx(raw); err != nil {
		t.Fatalf("Tx error: %v", err)
	}
	if len(w.sent) != 2 {
		t.Fatalf("expected 2 writes, got %d", len(w.sent))
	}
	var reassembled []byte
	for _, c := range w.sent {
		reassembled = append(reassembled, c...)
	}
	if !bytes.Equal(reassembled, raw) {
		t.Errorf("reassembled = % x, want % x", reassembled, raw)
	}
}

func TestDrainDiscardsBuffered(t *testing.T) {
	w := &fakeWire{chunks: [][]byte{{1, 2, 3}, {4, 5, 6}}}
	tr := New(w, 0)
	tr.Drain()
	if w.idx != len(w.chunks) {
		t.Errorf("Drain did not consume all chunks: idx=%d", w.idx)
	}
}
