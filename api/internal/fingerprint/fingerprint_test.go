package fingerprint

import (
	"math"
	"testing"
)

func TestQuestionHashTrimsWhitespace(t *testing.T) {
	if got := QuestionHash("foo"); got != "acbd18db4cc2f85cedef654fccc4a4d8" {
		t.Fatalf("QuestionHash(foo) = %s", got)
	}
	if QuestionHash("  foo \n") != QuestionHash("foo") {
		t.Fatal("surrounding whitespace changed the hash")
	}
	if QuestionHash("foo") == QuestionHash("bar") {
		t.Fatal("different questions hashed equal")
	}
}

func TestOptionsHashLetterIndependent(t *testing.T) {
	a := map[string]string{"A": "粒線體", "B": "核糖體", "C": "高基氏體", "D": "內質網"}
	b := map[string]string{"A": "內質網", "B": "粒線體", "C": "核糖體", "D": "高基氏體"}
	if OptionsHash(a) != OptionsHash(b) {
		t.Fatal("same values under different letters hashed differently")
	}

	padded := map[string]string{"A": " 粒線體", "B": "核糖體 ", "C": "高基氏體", "D": "內質網"}
	if OptionsHash(a) != OptionsHash(padded) {
		t.Fatal("whitespace around option values changed the hash")
	}

	other := map[string]string{"A": "粒線體", "B": "核糖體", "C": "高基氏體", "D": "溶體"}
	if OptionsHash(a) == OptionsHash(other) {
		t.Fatal("different option sets hashed equal")
	}
}

func TestCombinedHash(t *testing.T) {
	opts := map[string]string{"A": "甲", "B": "乙"}
	h1 := CombinedHash("題目一", opts)
	h2 := CombinedHash("題目二", opts)
	if h1 == h2 {
		t.Fatal("different questions produced the same combined hash")
	}
	if h1 != CombinedHash("題目一", map[string]string{"B": "甲", "A": "乙"}) {
		t.Fatal("combined hash depends on option letters")
	}
}

func TestSequenceRatio(t *testing.T) {
	cases := []struct {
		a, b string
		want float64
	}{
		{"", "", 1.0},
		{"abc", "abc", 1.0},
		{"abc", "xyz", 0.0},
		{"abc", "", 0.0},
		{"abc", "abd", 2.0 * 2.0 / 6.0},
		{"abcd", "bcd", 2.0 * 3.0 / 7.0},
		{"光合作用", "光合作運", 2.0 * 3.0 / 8.0},
	}
	for _, c := range cases {
		got := SequenceRatio(c.a, c.b)
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("SequenceRatio(%q, %q) = %f, want %f", c.a, c.b, got, c.want)
		}
		// The measure is symmetric for these inputs.
		if back := SequenceRatio(c.b, c.a); math.Abs(got-back) > 1e-9 {
			t.Errorf("SequenceRatio(%q, %q) asymmetric: %f vs %f", c.a, c.b, got, back)
		}
	}
}

func TestSimilarityWeights(t *testing.T) {
	opts := map[string]string{"A": "x", "B": "y"}
	if got := Similarity("題目", opts, "題目", opts, 0.6, 0.4); math.Abs(got-1.0) > 1e-9 {
		t.Fatalf("identical inputs scored %f", got)
	}

	// Question ratio 0.5 ("a" vs "aaa"), identical options.
	got := Similarity("a", opts, "aaa", opts, 0.6, 0.4)
	want := 0.6*0.5 + 0.4*1.0
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("Similarity = %f, want %f", got, want)
	}
}
