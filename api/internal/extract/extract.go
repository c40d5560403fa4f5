// Package extract parses numbered multiple-choice questions out of plain OCR
// text. It is deliberately forgiving about punctuation after the numeral and
// the option letter, since OCR output mixes halfwidth and fullwidth marks.
package extract

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"quizbank/api/internal/bank"
)

// BlankOption fills option slots the model or the OCR could not read, so a
// question with options A, C, D still round-trips with four keys.
const BlankOption = "無"

var (
	questionStart = regexp.MustCompile(`^\s*(\d+)\s*[.)、]\s*(.*)$`)
	optionLine    = regexp.MustCompile(`^\s*([A-D])\s*[.)、]?\s*(.+)$`)
)

// Parsed is one question block lifted from the text. Options carries only the
// letters actually seen; FillOptions pads the gaps.
type Parsed struct {
	Number   int
	Question string
	Options  map[string]string
}

// Extract scans the text for numbered question blocks. A line matching the
// numeral pattern opens a block; option lines attach to it; any other
// non-blank line continues whatever was written last (the question text or
// the most recent option). Blocks without a question or without options are
// dropped.
func Extract(text string) []Parsed {
	var (
		out     []Parsed
		curr    *Parsed
		lastOpt string // letter of the option being continued, "" for question
	)

	flush := func() {
		if curr == nil {
			return
		}
		curr.Question = strings.TrimSpace(curr.Question)
		if curr.Question != "" && len(curr.Options) > 0 {
			out = append(out, *curr)
		}
		curr = nil
	}

	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if m := questionStart.FindStringSubmatch(line); m != nil {
			// Option lines like "1. foo" cannot occur: options use letters.
			flush()
			num := 0
			fmt.Sscanf(m[1], "%d", &num)
			curr = &Parsed{Number: num, Question: m[2], Options: map[string]string{}}
			lastOpt = ""
			continue
		}
		if curr == nil {
			continue
		}
		if m := optionLine.FindStringSubmatch(line); m != nil {
			letter := m[1]
			curr.Options[letter] = strings.TrimSpace(m[2])
			lastOpt = letter
			continue
		}
		// Continuation of the previous question or option text, space-joined
		// so words split across lines stay separate.
		cont := strings.TrimSpace(line)
		if lastOpt != "" {
			curr.Options[lastOpt] += " " + cont
		} else {
			curr.Question += " " + cont
		}
	}
	flush()
	return out
}

// FillOptions pads missing A-D keys with the blank sentinel so downstream
// storage always sees four options.
func FillOptions(options map[string]string) map[string]string {
	out := make(map[string]string, 4)
	for _, letter := range []string{"A", "B", "C", "D"} {
		if v, ok := options[letter]; ok && strings.TrimSpace(v) != "" {
			out[letter] = v
		} else {
			out[letter] = BlankOption
		}
	}
	return out
}

// Candidates converts parsed blocks into bank candidates, padding options and
// tagging each with the source.
func Candidates(parsed []Parsed, source string) []bank.Candidate {
	out := make([]bank.Candidate, 0, len(parsed))
	for _, p := range parsed {
		out = append(out, bank.Candidate{
			Question: p.Question,
			Options:  FillOptions(p.Options),
			Source:   source,
		})
	}
	return out
}

// Validate applies the minimum-quality gate before a candidate may enter the
// bank. The reason is human-readable and stable enough to show to operators.
func Validate(c bank.Candidate) (bool, string) {
	if utf8.RuneCountInString(strings.TrimSpace(c.Question)) < 5 {
		return false, "題目過短（少於5個字元）"
	}
	if len(c.Options) < 2 {
		return false, "選項不足（少於2個）"
	}
	for k, v := range c.Options {
		if strings.TrimSpace(v) == "" {
			return false, fmt.Sprintf("選項 %s 內容為空", k)
		}
	}
	return true, ""
}
