package slicer

import (
	"image"
	"os"
	"testing"
)

func testImage(w, h int) *image.NRGBA {
	return image.NewNRGBA(image.Rect(0, 0, w, h))
}

func newTestSession(t *testing.T, cfg Config) *Session {
	t.Helper()
	s, err := NewSession(cfg)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	t.Cleanup(s.Cleanup)
	return s
}

func TestShouldSplit(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	cases := []struct {
		w, h int
		want bool
	}{
		{1000, 1000, false},
		{1200, 3600, false}, // height and aspect both exactly at their thresholds
		{1300, 3601, true},  // height over the line, aspect still under
		{300, 1000, true}, // aspect 3.33
		{1000, 3000, false},
		{0, 100, false}, // zero width counts as aspect 0
	}
	for _, c := range cases {
		if got := s.ShouldSplit(testImage(c.w, c.h)); got != c.want {
			t.Errorf("ShouldSplit(%dx%d) = %v, want %v", c.w, c.h, got, c.want)
		}
	}
}

func TestSplitCoversImageWithOverlap(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestSession(t, cfg)

	slices, err := s.Split(testImage(1000, 5000))
	if err != nil {
		t.Fatalf("Split: %v", err)
	}
	if len(slices) == 0 {
		t.Fatal("no slices")
	}

	overlap := int(float64(cfg.SliceHeight) * cfg.OverlapRatio)
	if slices[0].StartY != 0 {
		t.Fatalf("first slice starts at %d", slices[0].StartY)
	}
	if last := slices[len(slices)-1]; last.EndY != 5000 {
		t.Fatalf("last slice ends at %d", last.EndY)
	}
	for i := 1; i < len(slices); i++ {
		gap := slices[i].StartY - slices[i-1].EndY
		if gap > 0 {
			t.Fatalf("gap of %dpx between slice %d and %d", gap, i-1, i)
		}
		if got := slices[i-1].EndY - slices[i].StartY; got != overlap {
			t.Fatalf("overlap between slice %d and %d = %dpx, want %d", i-1, i, got, overlap)
		}
		if slices[i].OverlapStart != overlap {
			t.Fatalf("slice %d OverlapStart = %d", i, slices[i].OverlapStart)
		}
	}
	if slices[0].OverlapStart != 0 {
		t.Fatal("first slice has a leading overlap")
	}

	for _, sl := range slices {
		if sl.Image == nil {
			t.Fatalf("slice %d not rendered", sl.Index)
		}
		if got := sl.Image.Bounds().Dy(); got != sl.Height() {
			t.Fatalf("slice %d rendered height %d, want %d", sl.Index, got, sl.Height())
		}
		if _, err := os.Stat(sl.Path); err != nil {
			t.Fatalf("slice %d file: %v", sl.Index, err)
		}
	}
}

func TestSplitMergesSmallTail(t *testing.T) {
	cfg := DefaultConfig()
	s := newTestSession(t, cfg)

	// 5000px with step 1148 leaves a 408px tail, under half a slice: the
	// previous band absorbs it instead of going to OCR alone.
	slices, err := s.Split(testImage(1000, 5000))
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 4 {
		t.Fatalf("got %d slices, want 4", len(slices))
	}
	last := slices[len(slices)-1]
	if last.EndY != 5000 {
		t.Fatalf("merged tail ends at %d", last.EndY)
	}
	if last.Height() < cfg.SliceHeight {
		t.Fatalf("merged slice height %d, want >= %d", last.Height(), cfg.SliceHeight)
	}
	if last.OverlapEnd != last.Height() {
		t.Fatalf("last slice OverlapEnd = %d, want %d", last.OverlapEnd, last.Height())
	}
}

func TestSplitKeepsLargeTail(t *testing.T) {
	s := newTestSession(t, DefaultConfig())

	// 2000px: second band is 852px, more than half a slice, so it stays.
	slices, err := s.Split(testImage(500, 2000))
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 2 {
		t.Fatalf("got %d slices, want 2", len(slices))
	}
	if slices[1].EndY != 2000 {
		t.Fatalf("last slice ends at %d", slices[1].EndY)
	}
}

func TestSplitSingleSliceWhenSmall(t *testing.T) {
	s := newTestSession(t, DefaultConfig())
	slices, err := s.Split(testImage(1000, 800))
	if err != nil {
		t.Fatal(err)
	}
	if len(slices) != 1 {
		t.Fatalf("got %d slices, want 1", len(slices))
	}
	if slices[0].StartY != 0 || slices[0].EndY != 800 {
		t.Fatalf("slice bounds %d-%d", slices[0].StartY, slices[0].EndY)
	}
	if slices[0].OverlapStart != 0 || slices[0].OverlapEnd != 800 {
		t.Fatalf("overlap bounds %d-%d", slices[0].OverlapStart, slices[0].OverlapEnd)
	}
}

func TestNewSessionRejectsZeroStep(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OverlapRatio = 1.0
	if _, err := NewSession(cfg); err == nil {
		t.Fatal("expected error for zero step height")
	}
}

func TestCleanupIdempotent(t *testing.T) {
	s, err := NewSession(DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Split(testImage(100, 100)); err != nil {
		t.Fatal(err)
	}
	s.Cleanup()
	s.Cleanup()
}
