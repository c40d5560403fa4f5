package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/pipeline"
)

func (r *Router) acceptPhoto(msg tgbotapi.Message) {
	cid := msg.Chat.ID
	ph := msg.Photo[len(msg.Photo)-1] // largest size
	file, err := r.Bot.GetFile(tgbotapi.FileConfig{FileID: ph.FileID})
	if err != nil {
		r.SendError(cid, err)
		return
	}
	url := fmt.Sprintf("https://api.telegram.org/file/bot%s/%s", r.Bot.Token, file.FilePath)
	imgBytes, err := download(url)
	if err != nil {
		r.SendError(cid, err)
		return
	}

	key := "chat:" + fmt.Sprint(cid)
	if msg.MediaGroupID != "" {
		key = "grp:" + msg.MediaGroupID
	}

	bi, _ := batches.LoadOrStore(key, &photoBatch{
		ChatID: cid, Key: key, MediaGroupID: msg.MediaGroupID, images: make([][]byte, 0, 4),
	})
	b := bi.(*photoBatch)

	b.mu.Lock()
	b.images = append(b.images, imgBytes)
	b.names = append(b.names, fmt.Sprintf("tg_%s_%d", msg.MediaGroupID, len(b.images)))
	if b.timer != nil {
		b.timer.Stop()
	}
	b.timer = time.AfterFunc(debounce, func() { r.processBatch(key) })
	b.mu.Unlock()

	if len(b.images) == 1 {
		r.send(cid, "收到圖片，開始識別…（同一相簿的圖片會一起處理）")
	}
}

func (r *Router) processBatch(key string) {
	bi, ok := batches.Load(key)
	if !ok {
		return
	}
	b := bi.(*photoBatch)

	b.mu.Lock()
	images := append([][]byte(nil), b.images...)
	names := append([]string(nil), b.names...)
	chatID := b.ChatID
	batches.Delete(key)
	b.mu.Unlock()

	if len(images) == 0 {
		return
	}

	inputs := make([]pipeline.ImageInput, len(images))
	for i := range images {
		inputs[i] = pipeline.ImageInput{Name: names[i], Data: images[i]}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	eng := r.EngManager.Get(chatID)
	res, err := r.Pipe.Ingest(ctx, eng, inputs)
	if err != nil {
		r.SendError(chatID, err)
		return
	}
	r.reportResult(chatID, res)
}

func (r *Router) reportResult(chatID int64, res pipeline.Result) {
	var b strings.Builder
	fmt.Fprintf(&b, "識別完成：新增 %d、重複 %d、相似 %d", res.New, res.Duplicates, res.Similar)
	if res.Invalid > 0 {
		fmt.Fprintf(&b, "、無效 %d", res.Invalid)
	}
	if res.Failed > 0 {
		fmt.Fprintf(&b, "、失敗 %d", res.Failed)
	}
	b.WriteString("。")
	for _, item := range res.Items {
		if item.Err != "" {
			fmt.Fprintf(&b, "\n%s：%s", item.Name, item.Err)
		}
	}
	r.send(chatID, b.String())

	// Each similar conflict gets its own message with resolution buttons.
	for _, item := range res.Items {
		for _, q := range item.Questions {
			if q.Status != bank.StatusSimilar || q.Token == "" {
				continue
			}
			msg := tgbotapi.NewMessage(chatID, formatConflict(q.Question, q.Similar))
			msg.ReplyMarkup = makeConflictKeyboard(q.Token)
			_, _ = r.Bot.Send(msg)
		}
	}
}

func download(url string) ([]byte, error) {
	httpc := &http.Client{Timeout: 60 * time.Second}
	resp, err := httpc.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(b))
	}
	return io.ReadAll(resp.Body)
}
