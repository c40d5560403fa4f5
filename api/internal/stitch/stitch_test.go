package stitch

import (
	"strings"
	"testing"
)

func TestMergeEmptyAndSingle(t *testing.T) {
	s := New(10, 0.6)
	if got := s.Merge(nil); got != "" {
		t.Fatalf("Merge(nil) = %q", got)
	}
	if got := s.Merge([]string{"只有一段文字"}); got != "只有一段文字" {
		t.Fatalf("single fragment changed: %q", got)
	}
}

func TestMergeRemovesOverlap(t *testing.T) {
	s := New(2, 0.6)
	prev := "L1\nL2\nL3\nL4\nL5"
	curr := "L4\nL5\nL6\nL7"

	got := s.Merge([]string{prev, curr})
	want := "L1\nL2\nL3\nL4\nL5\nL6\nL7"
	if got != want {
		t.Fatalf("merged = %q, want %q", got, want)
	}
}

func TestMergeFullContainment(t *testing.T) {
	// The second fragment is entirely overlap; nothing new is appended.
	s := New(2, 0.6)
	prev := "A\nB\nC\nD"
	curr := "C\nD"

	got := s.Merge([]string{prev, curr})
	if got != prev {
		t.Fatalf("merged = %q, want %q", got, prev)
	}
}

func TestMergeToleratesOCRNoise(t *testing.T) {
	// One wrong character in the overlap region still matches above 0.6.
	s := New(2, 0.6)
	prev := "第一行文字內容\n第二行文字內容\n第三行文字內容"
	curr := "第二行文字內容\n第三行文字內容x\n第四行文字內容"

	got := s.Merge([]string{prev, curr})
	want := prev + "\n第四行文字內容"
	if got != want {
		t.Fatalf("merged = %q, want %q", got, want)
	}
}

func TestMergeFallsBackWithMarker(t *testing.T) {
	s := New(2, 0.6)
	prev := "完全不同的第一段\n內容甲"
	curr := "毫無關聯的第二段\n內容乙xyz"

	got := s.Merge([]string{prev, curr})
	if !strings.Contains(got, WarningMarker) {
		t.Fatalf("no warning marker in %q", got)
	}
	if !strings.HasPrefix(got, prev) {
		t.Fatal("previous fragment not preserved")
	}
	if !strings.HasSuffix(got, curr) {
		t.Fatal("current fragment not preserved after marker")
	}
}

func TestMergeThreeFragments(t *testing.T) {
	s := New(2, 0.6)
	got := s.Merge([]string{
		"L1\nL2\nL3",
		"L2\nL3\nL4",
		"L3\nL4\nL5",
	})
	want := "L1\nL2\nL3\nL4\nL5"
	if got != want {
		t.Fatalf("merged = %q, want %q", got, want)
	}
}
