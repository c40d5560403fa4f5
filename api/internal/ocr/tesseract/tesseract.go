// Package tesseract wraps the local tesseract OCR binary as a text-only
// engine. It recognizes slice text offline but cannot extract structured
// questions or answer them.
package tesseract

import (
	"context"
	"fmt"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"quizbank/api/internal/ocr"
)

type Engine struct {
	Languages string // tesseract language codes, e.g. "chi_tra+eng"
}

func New(languages string) *Engine {
	if languages == "" {
		languages = "chi_tra+eng"
	}
	return &Engine{Languages: languages}
}

func (e *Engine) Name() string { return "tesseract" }

// Model reports the language set; it keys cache entries the same way a model
// name does for the remote engines.
func (e *Engine) Model() string { return e.Languages }

func (e *Engine) RecognizeText(ctx context.Context, image []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Split(e.Languages, "+")...); err != nil {
		return "", fmt.Errorf("tesseract: set language %q: %w", e.Languages, err)
	}
	if err := client.SetImageFromBytes(image); err != nil {
		return "", fmt.Errorf("tesseract: set image: %w", err)
	}
	text, err := client.Text()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w", err)
	}
	return text, nil
}

func (e *Engine) ExtractQuestions(ctx context.Context, image []byte) ([]ocr.ParsedQuestion, error) {
	return nil, fmt.Errorf("tesseract: extract questions: %w", ocr.ErrUnsupported)
}

func (e *Engine) Answer(ctx context.Context, req ocr.AnswerRequest) (ocr.AnswerResult, error) {
	return ocr.AnswerResult{}, fmt.Errorf("tesseract: answer: %w", ocr.ErrUnsupported)
}

func (e *Engine) Note(ctx context.Context, req ocr.NoteRequest) (string, error) {
	return "", fmt.Errorf("tesseract: note: %w", ocr.ErrUnsupported)
}
