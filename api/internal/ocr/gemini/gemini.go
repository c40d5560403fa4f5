// Package gemini implements the engine interface with the Google generative
// AI SDK.
package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"quizbank/api/internal/ocr"
	"quizbank/api/internal/util"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Engine struct {
	APIKey    string
	ModelName string
}

func New(apiKey, model string) *Engine {
	return &Engine{
		APIKey:    strings.TrimSpace(apiKey),
		ModelName: strings.TrimSpace(model),
	}
}

func (e *Engine) Name() string  { return "gemini" }
func (e *Engine) Model() string { return e.ModelName }

const extractSystem = `你是一個題庫擷取模組。請識別圖片中的所有選擇題和選項，忽略其他無關內容。
輸出嚴格JSON：
{"questions":[{"question":"題目內容","options":{"A":"...","B":"...","C":"...","D":"..."}}]}
規則：
1) 只提取完整的題目（題目文字加選項）。
2) 忽略UI元素、頁眉頁腳、說明文字。
3) 多道題目全部提取。
4) 選項不足四個時以"無"補齊。
5) 只輸出JSON，不要任何其他文字。`

// generate runs one model call with JSON output and up to 3 attempts for
// transient failures.
func (e *Engine) generate(ctx context.Context, system string, parts []genai.Part) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("gemini: GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(e.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.ModelName)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: "application/json",
	}
	if system != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(system)}}
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return "", fmt.Errorf("gemini: empty response")
		}
		return util.StripCodeFences(strings.TrimSpace(txt)), nil
	}
	return "", lastErr
}

func (e *Engine) ExtractQuestions(ctx context.Context, image []byte) ([]ocr.ParsedQuestion, error) {
	parts := []genai.Part{
		genai.Text("擷取圖片中的所有題目，只輸出JSON。"),
		&genai.Blob{MIMEType: util.SniffMimeHTTP(image), Data: image},
	}
	txt, err := e.generate(ctx, extractSystem, parts)
	if err != nil {
		return nil, err
	}
	var out struct {
		Questions []ocr.ParsedQuestion `json:"questions"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return nil, fmt.Errorf("gemini extract: bad JSON: %w", err)
	}
	return out.Questions, nil
}

func (e *Engine) RecognizeText(ctx context.Context, image []byte) (string, error) {
	parts := []genai.Part{
		genai.Text(`輸出圖片中的所有文字，保持原有行結構。輸出JSON：{"text":"..."}`),
		&genai.Blob{MIMEType: util.SniffMimeHTTP(image), Data: image},
	}
	txt, err := e.generate(ctx, "", parts)
	if err != nil {
		return "", err
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		// Some models ignore the JSON instruction for pure OCR; take the raw text.
		return txt, nil
	}
	return out.Text, nil
}

func (e *Engine) Answer(ctx context.Context, req ocr.AnswerRequest) (ocr.AnswerResult, error) {
	typeInstruction := "這是單選題，只能選擇一個選項（A、B、C或D）。"
	if req.QuestionType == "multiple" {
		typeInstruction = "這可能是多選題，可以選擇一個或多個選項（如A、AB、ABC）。"
	}
	system := "你是一個答題模組。回答選擇題並輸出嚴格JSON：{\"answer\":\"...\",\"note\":\"...\"}。" + typeInstruction
	if req.GenerateNote {
		system += fmt.Sprintf("同時提供注釋說明。注釋要求：%s。注釋字數限制：%d字以內。", req.NoteStyle, req.NoteMaxLen)
	} else {
		system += "不需要注釋，note留空。"
	}

	parts := []genai.Part{genai.Text(fmt.Sprintf("題目：%s\n選項：\n%s", req.Question, optionsText(req.Options)))}
	if req.IncludeImage && len(req.ImageData) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: util.SniffMimeHTTP(req.ImageData), Data: req.ImageData})
	}

	txt, err := e.generate(ctx, system, parts)
	if err != nil {
		return ocr.AnswerResult{}, err
	}
	var res ocr.AnswerResult
	if err := json.Unmarshal([]byte(txt), &res); err != nil {
		return ocr.AnswerResult{}, fmt.Errorf("gemini answer: bad JSON: %w", err)
	}
	if !req.GenerateNote {
		res.Note = ""
	}
	return res, nil
}

func (e *Engine) Note(ctx context.Context, req ocr.NoteRequest) (string, error) {
	system := fmt.Sprintf("你是一個注釋模組。為已有正確答案的選擇題提供注釋說明，輸出嚴格JSON：{\"note\":\"...\"}。注釋要求：%s。注釋字數限制：%d字以內。",
		req.NoteStyle, req.NoteMaxLen)

	parts := []genai.Part{genai.Text(fmt.Sprintf("題目：%s\n選項：\n%s\n正確答案：%s",
		req.Question, optionsText(req.Options), req.Answer))}
	if req.IncludeImage && len(req.ImageData) > 0 {
		parts = append(parts, &genai.Blob{MIMEType: util.SniffMimeHTTP(req.ImageData), Data: req.ImageData})
	}

	txt, err := e.generate(ctx, system, parts)
	if err != nil {
		return "", err
	}
	var out struct {
		Note string `json:"note"`
	}
	if err := json.Unmarshal([]byte(txt), &out); err != nil {
		return "", fmt.Errorf("gemini note: bad JSON: %w", err)
	}
	return out.Note, nil
}

func optionsText(options map[string]string) string {
	keys := make([]string, 0, len(options))
	for k := range options {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s. %s\n", k, options[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
