package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbank/api/internal/pipeline"
)

func (r *Router) handleCallback(cb tgbotapi.CallbackQuery) {
	// Ack first so the button stops spinning even if resolution fails.
	_, _ = r.Bot.Request(tgbotapi.NewCallback(cb.ID, ""))

	data := cb.Data
	var force bool
	var token string
	switch {
	case strings.HasPrefix(data, "dup_force:"):
		force = true
		token = strings.TrimPrefix(data, "dup_force:")
	case strings.HasPrefix(data, "dup_skip:"):
		token = strings.TrimPrefix(data, "dup_skip:")
	default:
		return
	}

	chatID := cb.Message.Chat.ID
	id, err := r.Pipe.Resolve(token, force)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownToken) {
			r.editConflictMessage(cb, "這個衝突已經處理過或已過期。")
			return
		}
		r.SendError(chatID, err)
		return
	}

	if force {
		r.editConflictMessage(cb, fmt.Sprintf("已強制新增為第 %d 題。", id))
	} else {
		r.editConflictMessage(cb, "已保留現有題目，新題目未加入。")
	}
}

// editConflictMessage replaces the conflict prompt and drops its keyboard.
func (r *Router) editConflictMessage(cb tgbotapi.CallbackQuery, text string) {
	edit := tgbotapi.NewEditMessageText(cb.Message.Chat.ID, cb.Message.MessageID, text)
	_, _ = r.Bot.Send(edit)
}
