// Package handle exposes the question bank over HTTP.
package handle

import (
	"encoding/json"
	"net/http"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/ocr"
	"quizbank/api/internal/pipeline"
)

type Handle struct {
	engs *ocr.Engines
	pipe *pipeline.Pipeline
	bank *bank.Bank

	// Answer defaults from configuration; requests may override.
	questionType string
	noteStyle    string
	noteMaxLen   int
}

func New(engs *ocr.Engines, pipe *pipeline.Pipeline, b *bank.Bank, questionType, noteStyle string, noteMaxLen int) *Handle {
	return &Handle{
		engs:         engs,
		pipe:         pipe,
		bank:         b,
		questionType: questionType,
		noteStyle:    noteStyle,
		noteMaxLen:   noteMaxLen,
	}
}

// Register wires every endpoint onto the mux.
func (h *Handle) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/ingest", h.Ingest)
	mux.HandleFunc("POST /v1/ingest/resolve", h.Resolve)
	mux.HandleFunc("GET /v1/questions", h.List)
	mux.HandleFunc("DELETE /v1/questions", h.Clear)
	mux.HandleFunc("GET /v1/questions/{id}", h.Get)
	mux.HandleFunc("PATCH /v1/questions/{id}", h.Update)
	mux.HandleFunc("DELETE /v1/questions/{id}", h.Delete)
	mux.HandleFunc("POST /v1/questions/{id}/answer", h.AnswerOne)
	mux.HandleFunc("POST /v1/questions/{id}/note", h.Note)
	mux.HandleFunc("POST /v1/answer/batch", h.AnswerBatch)
	mux.HandleFunc("GET /v1/export", h.Export)
	mux.HandleFunc("POST /v1/import", h.Import)
	mux.HandleFunc("GET /v1/stats", h.StatsHandler)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
