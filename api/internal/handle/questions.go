package handle

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"quizbank/api/internal/bank"
)

func (h *Handle) recordID(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		http.Error(w, "bad id", http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

type ListResponse struct {
	Total     int                   `json:"total"`
	Questions []bank.QuestionRecord `json:"questions"`
}

// List returns all questions, or the matches of ?q=keyword.
func (h *Handle) List(w http.ResponseWriter, r *http.Request) {
	var out []bank.QuestionRecord
	if q := r.URL.Query().Get("q"); q != "" {
		out = h.bank.Search(q)
	} else {
		out = h.bank.All()
	}
	writeJSON(w, http.StatusOK, ListResponse{Total: len(out), Questions: out})
}

func (h *Handle) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	q, err := h.bank.Get(id)
	if err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

type UpdateRequest struct {
	Question      *string           `json:"question"`
	Options       map[string]string `json:"options"`
	CorrectAnswer *string           `json:"correct_answer"`
	Note          *string           `json:"note"`
}

func (h *Handle) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	var req UpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Question == nil && req.Options == nil && req.CorrectAnswer == nil && req.Note == nil {
		http.Error(w, "empty update", http.StatusBadRequest)
		return
	}
	err := h.bank.Update(id, bank.RecordUpdate{
		Question:      req.Question,
		Options:       req.Options,
		CorrectAnswer: req.CorrectAnswer,
		Note:          req.Note,
	})
	if err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	q, err := h.bank.Get(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (h *Handle) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := h.recordID(w, r)
	if !ok {
		return
	}
	if err := h.bank.Delete(id); err != nil {
		if errors.Is(err, bank.ErrNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

// Clear wipes the whole bank and resets the id counter. Requires ?confirm=1.
func (h *Handle) Clear(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "1" {
		http.Error(w, "pass ?confirm=1 to clear the bank", http.StatusBadRequest)
		return
	}
	if err := h.bank.Clear(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}

func (h *Handle) StatsHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.bank.Stats())
}
