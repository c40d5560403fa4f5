package handle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"quizbank/api/internal/pipeline"
	"quizbank/api/internal/util"
)

type IngestRequest struct {
	LLMName string `json:"llm_name"`
	Images  []struct {
		Name    string `json:"name"`
		DataB64 string `json:"data_b64"` // raw base64 or a data URL
	} `json:"images"`
}

func (h *Handle) Ingest(w http.ResponseWriter, r *http.Request) {
	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Images) == 0 {
		http.Error(w, "no images", http.StatusBadRequest)
		return
	}

	engine, err := h.engs.Get(req.LLMName)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	inputs := make([]pipeline.ImageInput, 0, len(req.Images))
	for i, img := range req.Images {
		data, _, err := util.DecodeBase64MaybeDataURL(img.DataB64)
		if err != nil || len(data) == 0 {
			http.Error(w, fmt.Sprintf("bad data_b64 at index %d", i), http.StatusBadRequest)
			return
		}
		name := img.Name
		if name == "" {
			name = fmt.Sprintf("upload_%d", i)
		}
		inputs = append(inputs, pipeline.ImageInput{Name: name, Data: data})
	}

	// Generous ceiling; a sliced page can mean many model calls.
	ctx, cancel := context.WithTimeout(r.Context(), 300*time.Second)
	defer cancel()

	res, err := h.pipe.Ingest(ctx, engine, inputs)
	if err != nil {
		http.Error(w, "ingest error: "+err.Error(), http.StatusBadGateway)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type ResolveRequest struct {
	Token  string `json:"token"`
	Action string `json:"action"` // "force" or "skip"
}

type ResolveResponse struct {
	ID     int    `json:"id,omitempty"`
	Action string `json:"action"`
}

func (h *Handle) Resolve(w http.ResponseWriter, r *http.Request) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
		return
	}
	switch req.Action {
	case "force", "skip":
	default:
		http.Error(w, "action must be force or skip", http.StatusBadRequest)
		return
	}

	id, err := h.pipe.Resolve(req.Token, req.Action == "force")
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownToken) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, ResolveResponse{ID: id, Action: req.Action})
}
