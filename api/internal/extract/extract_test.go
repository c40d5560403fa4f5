package extract

import (
	"testing"

	"quizbank/api/internal/bank"
)

func TestExtractTwoQuestions(t *testing.T) {
	text := `1. 下列何者為細胞的能量工廠？
A. 粒線體
B. 核糖體
C. 高基氏體
D. 內質網

2、光合作用發生在哪個胞器？
A) 葉綠體
B) 粒線體`

	got := Extract(text)
	if len(got) != 2 {
		t.Fatalf("got %d questions, want 2", len(got))
	}

	q1 := got[0]
	if q1.Number != 1 || q1.Question != "下列何者為細胞的能量工廠？" {
		t.Fatalf("q1 = %+v", q1)
	}
	if len(q1.Options) != 4 || q1.Options["A"] != "粒線體" || q1.Options["D"] != "內質網" {
		t.Fatalf("q1 options = %v", q1.Options)
	}

	q2 := got[1]
	if q2.Number != 2 || q2.Question != "光合作用發生在哪個胞器？" {
		t.Fatalf("q2 = %+v", q2)
	}
	if len(q2.Options) != 2 || q2.Options["A"] != "葉綠體" || q2.Options["B"] != "粒線體" {
		t.Fatalf("q2 options = %v", q2.Options)
	}
}

func TestExtractContinuationLines(t *testing.T) {
	text := `1. 題目的開頭部分
接續的題目文字
A. 選項開頭
選項的接續
B. 選項乙`

	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("got %d questions", len(got))
	}
	if got[0].Question != "題目的開頭部分 接續的題目文字" {
		t.Fatalf("question = %q", got[0].Question)
	}
	if got[0].Options["A"] != "選項開頭 選項的接續" {
		t.Fatalf("option A = %q", got[0].Options["A"])
	}
	if got[0].Options["B"] != "選項乙" {
		t.Fatalf("option B = %q", got[0].Options["B"])
	}
}

func TestExtractContinuationKeepsWordsApart(t *testing.T) {
	text := `1. What is the capital
of France?
A. Paris is the
capital city
B. London`

	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("got %d questions", len(got))
	}
	if got[0].Question != "What is the capital of France?" {
		t.Fatalf("question = %q", got[0].Question)
	}
	if got[0].Options["A"] != "Paris is the capital city" {
		t.Fatalf("option A = %q", got[0].Options["A"])
	}
	if got[0].Options["B"] != "London" {
		t.Fatalf("option B = %q", got[0].Options["B"])
	}
}

func TestExtractDropsIncompleteBlocks(t *testing.T) {
	text := `1. 沒有任何選項的題目
2. 正常的題目內容
A. 甲
B. 乙
前導雜訊文字`

	got := Extract(text)
	if len(got) != 1 {
		t.Fatalf("got %d questions, want 1", len(got))
	}
	if got[0].Number != 2 {
		t.Fatalf("kept question %d", got[0].Number)
	}
}

func TestExtractIgnoresLeadingNoise(t *testing.T) {
	text := `頁眉雜訊
更多雜訊
1. 真正的題目內容
A. 甲
B. 乙`

	got := Extract(text)
	if len(got) != 1 || got[0].Question != "真正的題目內容" {
		t.Fatalf("got %+v", got)
	}
}

func TestFillOptions(t *testing.T) {
	got := FillOptions(map[string]string{"A": "甲", "C": "丙", "D": "  "})
	if len(got) != 4 {
		t.Fatalf("got %d options", len(got))
	}
	if got["A"] != "甲" || got["C"] != "丙" {
		t.Fatalf("present options lost: %v", got)
	}
	if got["B"] != BlankOption || got["D"] != BlankOption {
		t.Fatalf("missing options not filled: %v", got)
	}
}

func TestCandidates(t *testing.T) {
	parsed := []Parsed{{Number: 1, Question: "題目", Options: map[string]string{"A": "甲"}}}
	cs := Candidates(parsed, "page_003.jpg")
	if len(cs) != 1 {
		t.Fatalf("got %d candidates", len(cs))
	}
	if cs[0].Source != "page_003.jpg" {
		t.Fatalf("source = %q", cs[0].Source)
	}
	if cs[0].Options["B"] != BlankOption {
		t.Fatal("options not padded")
	}
}

func TestValidate(t *testing.T) {
	valid := bank.Candidate{
		Question: "這是一道有效的題目嗎？",
		Options:  map[string]string{"A": "是", "B": "否"},
	}
	if ok, reason := Validate(valid); !ok {
		t.Fatalf("valid candidate rejected: %s", reason)
	}

	cases := []struct {
		name string
		c    bank.Candidate
		want string
	}{
		{
			"short question",
			bank.Candidate{Question: "太短", Options: map[string]string{"A": "是", "B": "否"}},
			"題目過短（少於5個字元）",
		},
		{
			"too few options",
			bank.Candidate{Question: "題目夠長但選項不夠", Options: map[string]string{"A": "是"}},
			"選項不足（少於2個）",
		},
		{
			"empty option value",
			bank.Candidate{Question: "題目夠長選項卻是空的", Options: map[string]string{"A": "是", "B": " "}},
			"選項 B 內容為空",
		},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			ok, reason := Validate(c.c)
			if ok {
				t.Fatal("invalid candidate accepted")
			}
			if reason != c.want {
				t.Fatalf("reason = %q, want %q", reason, c.want)
			}
		})
	}
}
