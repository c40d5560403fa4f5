package bank

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
)

// ExportText writes the bank in the plain-text exchange format:
//
//	1.(A)題目內容
//	A.選項A B.選項B C.選項C D.選項D
//	注釋: ...
//
// The answer segment is omitted when the record has none or answers are
// suppressed; blocks are separated by one blank line, none after the last.
// Numbering is positional, not the record id.
func (b *Bank) ExportText(w io.Writer, includeAnswer, includeNote bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range b.questions {
		q := &b.questions[i]
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if includeAnswer && q.CorrectAnswer != "" {
			if _, err := fmt.Fprintf(w, "%d.(%s)%s\n", i+1, q.CorrectAnswer, q.Question); err != nil {
				return err
			}
		} else {
			if _, err := fmt.Fprintf(w, "%d.%s\n", i+1, q.Question); err != nil {
				return err
			}
		}
		if _, err := io.WriteString(w, optionsLine(q.Options)+"\n"); err != nil {
			return err
		}
		if includeNote && q.Note != "" {
			if _, err := fmt.Fprintf(w, "注釋: %s\n", q.Note); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExportFile is ExportText to a file path.
func (b *Bank) ExportFile(path string, includeAnswer, includeNote bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("bank: export: %w", err)
	}
	if err := b.ExportText(f, includeAnswer, includeNote); err != nil {
		f.Close()
		return fmt.Errorf("bank: export: %w", err)
	}
	return f.Close()
}

func optionsLine(options map[string]string) string {
	letters := make([]string, 0, len(options))
	for k := range options {
		letters = append(letters, k)
	}
	sort.Strings(letters)
	parts := make([]string, 0, len(letters))
	for _, k := range letters {
		parts = append(parts, k+"."+options[k])
	}
	return strings.Join(parts, " ")
}
