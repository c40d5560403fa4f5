package telegram

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/util"
)

// makeConflictKeyboard offers the two resolutions for a similar-question
// conflict; the token travels in the callback data.
func makeConflictKeyboard(token string) tgbotapi.InlineKeyboardMarkup {
	keep := tgbotapi.NewInlineKeyboardButtonData("保留現有", "dup_skip:"+token)
	force := tgbotapi.NewInlineKeyboardButtonData("強制新增", "dup_force:"+token)
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(keep, force))
}

func formatConflict(q string, matches []bank.SimilarMatch) string {
	var b strings.Builder
	b.WriteString("發現相似題目：\n")
	b.WriteString(util.Truncate(q, 120))
	b.WriteString("\n\n最相似的現有題目：\n")
	limit := len(matches)
	if limit > 3 {
		limit = 3
	}
	for _, m := range matches[:limit] {
		fmt.Fprintf(&b, "#%d (%.0f%%) %s\n", m.Record.ID, m.Score*100, util.Truncate(m.Record.Question, 80))
	}
	b.WriteString("\n要保留現有題目還是強制新增？")
	return b.String()
}

func formatRecord(q bank.QuestionRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s\n", q.ID, q.Question)
	for _, letter := range []string{"A", "B", "C", "D"} {
		if v, ok := q.Options[letter]; ok {
			fmt.Fprintf(&b, "%s. %s\n", letter, v)
		}
	}
	if q.CorrectAnswer != "" {
		fmt.Fprintf(&b, "答案：%s\n", q.CorrectAnswer)
	}
	if q.Note != "" {
		fmt.Fprintf(&b, "注釋：%s\n", util.Truncate(q.Note, 200))
	}
	return b.String()
}
