// Package openrouter implements the engine interface over the OpenRouter
// chat-completions API with vision-capable models.
package openrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"quizbank/api/internal/ocr"
	"quizbank/api/internal/util"
)

const apiURL = "https://openrouter.ai/api/v1/chat/completions"

const extractPrompt = `請識別圖片中的所有題目和選項，忽略其他無關內容。
請按以下JSON格式輸出，確保嚴格遵守格式：

{
    "questions": [
        {
            "question": "題目內容",
            "options": {
                "A": "選項A內容",
                "B": "選項B內容",
                "C": "選項C內容",
                "D": "選項D內容"
            }
        }
    ]
}

要求：
1. 只提取完整的題目（包含題目文字和選項），文字模糊難以判斷時以解剖學領域為推測標準
2. 忽略螢幕上的其他文字、UI元素、說明文字等
3. 如果有多道題目，請全部提取
4. 選項必須包含A、B、C、D四個選項（如果不足4個，請標註為"無"）
5. 只輸出JSON格式，不要添加任何其他文字說明
6. 確保JSON格式正確，可以被標準JSON解析器解析`

const recognizePrompt = `請輸出圖片中的所有文字內容，保持原有的行結構。
只輸出文字本身，不要添加任何說明或標記。`

type Config struct {
	APIKey      string
	Model       string // vision model for extraction and recognition
	AnswerModel string // defaults to Model
	NoteModel   string // defaults to AnswerModel
	SiteURL     string
	SiteName    string
}

type Engine struct {
	cfg   Config
	httpc *http.Client
}

func New(cfg Config) *Engine {
	if cfg.AnswerModel == "" {
		cfg.AnswerModel = cfg.Model
	}
	if cfg.NoteModel == "" {
		cfg.NoteModel = cfg.AnswerModel
	}
	return &Engine{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 60 * time.Second},
	}
}

func (e *Engine) Name() string  { return "openrouter" }
func (e *Engine) Model() string { return e.cfg.Model }

type message struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

// chat posts one completion request and returns the model text with any
// markdown fences stripped.
func (e *Engine) chat(ctx context.Context, model string, msgs []message) (string, error) {
	if e.cfg.APIKey == "" {
		return "", fmt.Errorf("openrouter: OPENROUTER_API_KEY is empty")
	}
	payload, err := json.Marshal(map[string]any{
		"model":    model,
		"messages": msgs,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	if e.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", e.cfg.SiteURL)
	}
	if e.cfg.SiteName != "" {
		req.Header.Set("X-Title", e.cfg.SiteName)
	}

	resp, err := e.httpc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		x, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("openrouter %d: %s", resp.StatusCode, util.Truncate(string(x), 500))
	}

	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if len(out.Choices) == 0 {
		return "", fmt.Errorf("openrouter: empty response")
	}
	return util.StripCodeFences(strings.TrimSpace(out.Choices[0].Message.Content)), nil
}

func imagePart(image []byte) contentPart {
	mime := util.SniffMimeHTTP(image)
	return contentPart{Type: "image_url", ImageURL: &imageURL{URL: util.MakeDataURL(mime, image)}}
}

func (e *Engine) ExtractQuestions(ctx context.Context, image []byte) ([]ocr.ParsedQuestion, error) {
	msgs := []message{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: extractPrompt},
			imagePart(image),
		},
	}}
	txt, err := e.chat(ctx, e.cfg.Model, msgs)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []ocr.ParsedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return nil, fmt.Errorf("openrouter extract: bad JSON: %w (%s)", err, util.Truncate(txt, 200))
	}
	return out.Questions, nil
}

func (e *Engine) RecognizeText(ctx context.Context, image []byte) (string, error) {
	msgs := []message{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: recognizePrompt},
			imagePart(image),
		},
	}}
	return e.chat(ctx, e.cfg.Model, msgs)
}

func optionsText(options map[string]string) string {
	letters := make([]string, 0, len(options))
	for k := range options {
		letters = append(letters, k)
	}
	sort.Strings(letters)
	lines := make([]string, 0, len(letters))
	for _, k := range letters {
		lines = append(lines, fmt.Sprintf("%s. %s", k, options[k]))
	}
	return strings.Join(lines, "\n")
}

func (e *Engine) Answer(ctx context.Context, req ocr.AnswerRequest) (ocr.AnswerResult, error) {
	var typeInstruction, answerFormat string
	if req.QuestionType == "multiple" {
		typeInstruction = "這可能是多選題，請選擇所有正確的答案。可以選擇一個或多個選項（如A、AB、ABC等）。"
		answerFormat = "答案選項（如A、AB、ABC等）"
	} else {
		typeInstruction = "這是單選題，請謹慎選擇唯一正確的答案。只能選擇一個選項（如A、B、C或D）。"
		answerFormat = "答案選項（單選，只能是A、B、C或D其中之一）"
	}

	var prompt string
	if req.GenerateNote {
		prompt = fmt.Sprintf(`請回答以下選擇題，並提供注釋說明。

題目：%s
選項：
%s

%s

請以以下JSON格式回答：
{
    "answer": "%s",
    "note": "注釋說明"
}

注釋要求：%s
注釋字數限制：%d字以內`, req.Question, optionsText(req.Options), typeInstruction, answerFormat, req.NoteStyle, req.NoteMaxLen)
	} else {
		prompt = fmt.Sprintf(`請回答以下選擇題。

題目：%s
選項：
%s

%s

請以以下JSON格式回答：
{
    "answer": "%s"
}`, req.Question, optionsText(req.Options), typeInstruction, answerFormat)
	}

	msgs := []message{userMessage(prompt, req.ImageData, req.IncludeImage)}
	txt, err := e.chat(ctx, e.cfg.AnswerModel, msgs)
	if err != nil {
		return ocr.AnswerResult{}, err
	}
	var res ocr.AnswerResult
	if err := json.Unmarshal([]byte(txt), &res); err != nil {
		return ocr.AnswerResult{}, fmt.Errorf("openrouter answer: bad JSON: %w (%s)", err, util.Truncate(txt, 200))
	}
	if !req.GenerateNote {
		res.Note = ""
	}
	return res, nil
}

func (e *Engine) Note(ctx context.Context, req ocr.NoteRequest) (string, error) {
	prompt := fmt.Sprintf(`請為以下選擇題提供注釋說明。

題目：%s
選項：
%s
正確答案：%s

請以以下JSON格式回答：
{
    "note": "注釋說明"
}

注釋要求：%s
注釋字數限制：%d字以內`, req.Question, optionsText(req.Options), req.Answer, req.NoteStyle, req.NoteMaxLen)

	msgs := []message{userMessage(prompt, req.ImageData, req.IncludeImage)}
	txt, err := e.chat(ctx, e.cfg.NoteModel, msgs)
	if err != nil {
		return "", err
	}
	var out struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return "", fmt.Errorf("openrouter note: bad JSON: %w (%s)", err, util.Truncate(txt, 200))
	}
	return out.Note, nil
}

// userMessage builds the single user turn; the image precedes the text when
// included, matching how vision models expect mixed content.
func userMessage(prompt string, image []byte, includeImage bool) message {
	if includeImage && len(image) > 0 {
		return message{Role: "user", Content: []contentPart{
			imagePart(image),
			{Type: "text", Text: prompt},
		}}
	}
	return message{Role: "user", Content: prompt}
}
