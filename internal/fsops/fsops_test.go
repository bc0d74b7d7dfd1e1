package fsops

import "testing"

func TestNormalizeLoopValid(t *testing.T) {
	s := SampleInfo{Frames: 100, LoopStart: 10, LoopEnd: 50}
	s.NormalizeLoop()
	if s.LoopStart != 10 || s.LoopEnd != 50 {
		t.Errorf("valid loop should be unchanged, got %+v", s)
	}
}

func TestNormalizeLoopOutOfRangeFallsBack(t *testing.T) {
	tests := []SampleInfo{
		{Frames: 100, LoopStart: 50, LoopEnd: 10},  // end < start
		{Frames: 100, LoopStart: -1, LoopEnd: 10},  // negative start
		{Frames: 100, LoopStart: 10, LoopEnd: 100}, // end == frames
	}
	for _, s := range tests {
		s.NormalizeLoop()
		if s.LoopStart != s.Frames-1 || s.LoopEnd != s.Frames-1 || s.LoopType != 0 {
			t.Errorf("expected fallback (frames-1,frames-1,0), got %+v", s)
		}
	}
}

func TestSliceIterator(t *testing.T) {
	items := []Item{{Name: "a"}, {Name: "b"}}
	it := NewSliceIterator(items)
	defer it.Close()

	item, ok, err := it.Next()
	if err != nil || !ok || item.Name != "a" {
		t.Fatalf("first Next() = %+v, %v, %v", item, ok, err)
	}
	item, ok, err = it.Next()
	if err != nil || !ok || item.Name != "b" {
		t.Fatalf("second Next() = %+v, %v, %v", item, ok, err)
	}
	_, ok, err = it.Next()
	if err != nil || ok {
		t.Fatalf("third Next() should end iteration, got ok=%v err=%v", ok, err)
	}
}

func TestOptionsHas(t *testing.T) {
	o := SlotStorage | Mono
	if !o.Has(SlotStorage) || !o.Has(Mono) {
		t.Error("Has should report set bits")
	}
	if o.Has(Stereo) {
		t.Error("Has should not report unset bits")
	}
}

func TestControlCanceled(t *testing.T) {
	var c *Control
	if c.Canceled() {
		t.Error("nil Control should never report canceled")
	}
}
