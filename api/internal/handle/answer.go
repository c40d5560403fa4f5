package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/pipeline"
)

type AnswerRequest struct {
	LLMName      string `json:"llm_name"`
	IncludeImage bool   `json:"include_image"`
	GenerateNote bool   `json:"generate_note"`
	QuestionType string `json:"question_type"` // default from config
}

func (h *Handle) answerOptions(req AnswerRequest, skipAnswered bool) pipeline.AnswerOptions {
	qt := req.QuestionType
	if qt == "" {
		qt = h.questionType
	}
	return pipeline.AnswerOptions{
		SkipAnswered:  skipAnswered,
		GenerateNotes: req.GenerateNote,
		IncludeImage:  req.IncludeImage,
		QuestionType:  qt,
		NoteStyle:     h.noteStyle,
		NoteMaxLen:    h.noteMaxLen,
	}
}

func (h *Handle) AnswerOne(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	engine, err := h.engs.Get(req.LLMName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	q, err := h.pipe.AnswerOne(ctx, engine, id, h.answerOptions(req, false))
	if err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "answer error: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type AnswerBatchRequest struct {
	AnswerRequest
	SkipAnswered bool `json:"skip_answered"`
}

func (h *Handle) AnswerBatch(w http.ResponseWriter, r *http.Request) {
	var req AnswerBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	engine, err := h.engs.Get(req.LLMName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// The client going away cancels the batch; answered records stay.
	sum, err := h.pipe.AnswerAll(r.Context(), engine, h.answerOptions(req.AnswerRequest, req.SkipAnswered))
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{
			"summary":     sum,
			"interrupted": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"summary": sum})
}

func (h *Handle) Note(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	engine, err := h.engs.Get(req.LLMName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 120*time.Second)
	defer cancel()

	note, err := h.pipe.GenerateNote(ctx, engine, id, h.answerOptions(req, false))
	if err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, "note error: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"note": note})
}
