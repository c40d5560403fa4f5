// Package telegram runs the question-bank bot: photos in, stored questions
// and conflict prompts out.
package telegram

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/ocr"
	"quizbank/api/internal/pipeline"
	"quizbank/api/internal/util"
)

type Router struct {
	Bot        *tgbotapi.BotAPI
	EngManager *ocr.Manager
	Pipe       *pipeline.Pipeline
	Bank       *bank.Bank

	QuestionType string
	NoteStyle    string
	NoteMaxLen   int
}

func (r *Router) HandleUpdate(upd tgbotapi.Update) {
	if upd.CallbackQuery != nil {
		r.handleCallback(*upd.CallbackQuery)
		return
	}
	if upd.Message == nil {
		return
	}
	if upd.Message.IsCommand() {
		r.handleCommand(*upd.Message)
		return
	}
	if len(upd.Message.Photo) > 0 {
		r.acceptPhoto(*upd.Message)
	}
}

func (r *Router) handleCommand(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	switch msg.Command() {
	case "start", "help":
		r.send(cid, "傳送題目截圖，我會識別並存入題庫。\n"+
			"指令：\n"+
			"/search 關鍵字 — 搜尋題庫\n"+
			"/answer — 為未作答的題目批次答題\n"+
			"/export — 匯出題庫文字\n"+
			"/stats — 題庫統計\n"+
			"/engine [名稱] — 查看或切換識別引擎")
	case "search":
		kw := strings.TrimSpace(msg.CommandArguments())
		if kw == "" {
			r.send(cid, "用法：/search 關鍵字")
			return
		}
		r.sendSearchResults(cid, kw)
	case "answer":
		r.runAnswerBatch(cid)
	case "export":
		r.sendExport(cid)
	case "stats":
		st := r.Bank.Stats()
		r.send(cid, fmt.Sprintf("題庫共 %d 題，來源 %d 個。", st.Total, len(st.Sources)))
	case "engine":
		r.handleEngineCommand(cid, msg.CommandArguments())
	default:
		r.send(cid, "未知指令，/help 查看用法。")
	}
}

func (r *Router) handleEngineCommand(chatID int64, args string) {
	name := strings.ToLower(strings.TrimSpace(args))
	if name == "" {
		cur := r.EngManager.Get(chatID).Name()
		r.send(chatID, "目前引擎："+cur+"\n可用："+strings.Join(r.EngManager.Names(), " | "))
		return
	}
	if err := r.EngManager.Set(chatID, name); err != nil {
		r.send(chatID, "未知引擎。可用："+strings.Join(r.EngManager.Names(), " | "))
		return
	}
	r.send(chatID, "已切換引擎："+name)
}

func (r *Router) sendSearchResults(chatID int64, keyword string) {
	matches := r.Bank.Search(keyword)
	if len(matches) == 0 {
		r.send(chatID, "沒有找到符合的題目。")
		return
	}
	limit := len(matches)
	if limit > 5 {
		limit = 5
	}
	var b strings.Builder
	fmt.Fprintf(&b, "找到 %d 題，顯示前 %d 題：\n\n", len(matches), limit)
	for _, q := range matches[:limit] {
		b.WriteString(formatRecord(q))
		b.WriteString("\n")
	}
	r.send(chatID, b.String())
}

func (r *Router) runAnswerBatch(chatID int64) {
	eng := r.EngManager.Get(chatID)
	r.send(chatID, "開始批次答題（跳過已有答案的題目）…")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sum, err := r.Pipe.AnswerAll(ctx, eng, pipeline.AnswerOptions{
		SkipAnswered:  true,
		GenerateNotes: true,
		QuestionType:  r.QuestionType,
		NoteStyle:     r.NoteStyle,
		NoteMaxLen:    r.NoteMaxLen,
	})
	if err != nil {
		r.send(chatID, fmt.Sprintf("批次中斷：%v（已完成 %d 題）", err, sum.Answered))
		return
	}
	r.send(chatID, fmt.Sprintf("答題完成：%d 題已答，%d 題跳過，%d 題失敗。", sum.Answered, sum.Skipped, sum.Failed))
}

func (r *Router) sendExport(chatID int64) {
	var b strings.Builder
	if err := r.Bank.ExportText(&b, true, true); err != nil {
		r.SendError(chatID, err)
		return
	}
	text := b.String()
	if text == "" {
		r.send(chatID, "題庫是空的。")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "questions_export.txt",
		Bytes: []byte(text),
	})
	if _, err := r.Bot.Send(doc); err != nil {
		// Fall back to an inline message when document upload fails.
		r.send(chatID, util.Truncate(text, 3900))
	}
}

func (r *Router) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	_, _ = r.Bot.Send(msg)
}

func (r *Router) SendError(chatID int64, err error) {
	r.send(chatID, fmt.Sprintf("處理失敗：%v", err))
}
