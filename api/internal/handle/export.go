package handle

import (
	"io"
	"log"
	"net/http"
)

// Export streams the bank as plain text. ?answers=0 and ?notes=0 suppress the
// answer prefix and note lines; both default to on.
func (h *Handle) Export(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	includeAnswers := q.Get("answers") != "0"
	includeNotes := q.Get("notes") != "0"

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := h.bank.ExportText(w, includeAnswers, includeNotes); err != nil {
		// Headers already went out; nothing left but to drop the connection.
		log.Printf("handle: export: %v", err)
	}
}

// Import merges a bank file posted as the request body.
func (h *Handle) Import(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 64<<20))
	if err != nil {
		http.Error(w, "read body: "+err.Error(), http.StatusBadRequest)
		return
	}
	n, err := h.bank.ImportData(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"imported": n})
}
