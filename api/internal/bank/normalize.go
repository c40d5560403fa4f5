package bank

import (
	"strings"
	"unicode"
)

// Punctuation normalization modes. Half-width punctuation is only converted
// to full-width when the surrounding text is CJK, so mixed-language questions
// keep their Latin punctuation intact.
const (
	PunctDisabled    = "disabled"
	PunctToFullwidth = "to_fullwidth"
	PunctToHalfwidth = "to_halfwidth"
)

const cjkPunct = "，。！？；：「」『』（）《》〈〉【】、·…—"

var toHalfwidth = strings.NewReplacer(
	"，", ",",
	"？", "?",
	"！", "!",
	"：", ":",
	"；", ";",
	"。", ".",
)

// NormalizePunctuation converts punctuation according to mode. In
// to_fullwidth mode a character converts only when a window of ±2 runes
// around it contains a CJK ideograph or CJK punctuation; a '.' between two
// digits is never converted so decimal numbers survive.
func NormalizePunctuation(text, mode string) string {
	switch mode {
	case PunctToHalfwidth:
		return toHalfwidth.Replace(text)
	case PunctToFullwidth:
		// fallthrough below
	default:
		return text
	}

	runes := []rune(text)
	var b strings.Builder
	b.Grow(len(text))
	for i, r := range runes {
		if !isCJKContext(runes, i) {
			b.WriteRune(r)
			continue
		}
		switch r {
		case ',':
			b.WriteRune('，')
		case '?':
			b.WriteRune('？')
		case '!':
			b.WriteRune('！')
		case ':':
			b.WriteRune('：')
		case ';':
			b.WriteRune('；')
		case '.':
			if i > 0 && i < len(runes)-1 && unicode.IsDigit(runes[i-1]) && unicode.IsDigit(runes[i+1]) {
				b.WriteRune(r) // decimal point
			} else {
				b.WriteRune('。')
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isCJKContext(runes []rune, pos int) bool {
	start := pos - 2
	if start < 0 {
		start = 0
	}
	end := pos + 3
	if end > len(runes) {
		end = len(runes)
	}
	for _, r := range runes[start:end] {
		if isCJKIdeograph(r) || strings.ContainsRune(cjkPunct, r) {
			return true
		}
	}
	return false
}

func isCJKIdeograph(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) || (r >= 0x3400 && r <= 0x4DBF)
}
