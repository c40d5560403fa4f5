package bank

import "testing"

func TestNormalizePunctuationToFullwidth(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"comma in cjk context", "你好,世界", "你好，世界"},
		{"question mark in cjk context", "這是什麼?", "這是什麼？"},
		{"latin text untouched", "hello, world?", "hello, world?"},
		{"decimal point preserved", "答案是3.14公尺", "答案是3.14公尺"},
		{"sentence-final period converts", "這是一句話.", "這是一句話。"},
		{"mixed conversion", "對嗎?數值為2.5,確定", "對嗎？數值為2.5，確定"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := NormalizePunctuation(c.in, PunctToFullwidth); got != c.want {
				t.Fatalf("got %q, want %q", got, c.want)
			}
		})
	}
}

func TestNormalizePunctuationToHalfwidth(t *testing.T) {
	if got := NormalizePunctuation("你好，世界。真的嗎？", PunctToHalfwidth); got != "你好,世界.真的嗎?" {
		t.Fatalf("got %q", got)
	}
}

func TestNormalizePunctuationDisabled(t *testing.T) {
	in := "你好,世界."
	if got := NormalizePunctuation(in, PunctDisabled); got != in {
		t.Fatalf("disabled mode changed text: %q", got)
	}
}

func TestNormalizeAppliedOnAdd(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions()
	opts.PunctuationMode = PunctToFullwidth
	b, err := Open(dir+"/db.json", "", opts)
	if err != nil {
		t.Fatal(err)
	}

	c := testCandidate()
	c.Question = "細胞的能量工廠是哪個?"
	id, status, _, err := b.Add(c)
	if err != nil || status != StatusNew {
		t.Fatalf("add: id=%d status=%s err=%v", id, status, err)
	}
	q, _ := b.Get(id)
	if q.Question != "細胞的能量工廠是哪個？" {
		t.Fatalf("stored question = %q", q.Question)
	}

	// The half-width variant now dedups against the stored full-width form.
	_, status2, _, err := b.Add(c)
	if err != nil {
		t.Fatal(err)
	}
	if status2 != StatusDuplicate {
		t.Fatalf("status = %s, want duplicate", status2)
	}
}
