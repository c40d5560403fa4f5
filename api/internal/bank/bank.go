package bank

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"quizbank/api/internal/fingerprint"
)

var ErrNotFound = errors.New("bank: question not found")

// ImportedMarker is appended to the source of records merged in from another
// bank file.
const ImportedMarker = " (已匯入)"

type Options struct {
	SimilarityThreshold float64
	QuestionWeight      float64
	OptionsWeight       float64
	PunctuationMode     string
	MaxShortSide        int
}

func DefaultOptions() Options {
	return Options{
		SimilarityThreshold: 0.75,
		QuestionWeight:      0.6,
		OptionsWeight:       0.4,
		PunctuationMode:     PunctDisabled,
		MaxShortSide:        1200,
	}
}

// Bank owns the record list, the id counter and the backing file. All
// mutation is serialized under one mutex; reads hand out copies. Model calls
// are never made under this lock.
type Bank struct {
	mu       sync.Mutex
	file     string
	imageDir string
	opts     Options

	questions []QuestionRecord
	nextID    int
}

// Open loads the bank from file. A missing or corrupt file is not fatal: the
// bank starts empty with the counter at 1.
func Open(file, imageDir string, opts Options) (*Bank, error) {
	if imageDir != "" {
		if err := os.MkdirAll(imageDir, 0o755); err != nil {
			return nil, fmt.Errorf("bank: create image dir: %w", err)
		}
	}
	b := &Bank{file: file, imageDir: imageDir, opts: opts, nextID: 1}
	b.loadLocked(file)
	return b, nil
}

func (b *Bank) loadLocked(file string) {
	b.questions = nil
	b.nextID = 1

	data, err := os.ReadFile(file)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("bank: load %s: %v (starting empty)", file, err)
		}
		return
	}
	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		log.Printf("bank: load %s: bad JSON: %v (starting empty)", file, err)
		return
	}
	b.questions = f.Questions
	if f.NextID > 0 {
		b.nextID = f.NextID
		return
	}
	// Older files lack next_id; fall back to max(id)+1.
	for _, q := range b.questions {
		if q.ID >= b.nextID {
			b.nextID = q.ID + 1
		}
	}
}

// saveLocked rewrites the whole backing file. The caller holds b.mu and is
// responsible for rolling back in-memory changes if this fails.
func (b *Bank) saveLocked() error {
	f := bankFile{
		Questions:   b.questions,
		NextID:      b.nextID,
		LastUpdated: time.Now(),
	}
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("bank: marshal: %w", err)
	}
	if err := os.WriteFile(b.file, data, 0o644); err != nil {
		return fmt.Errorf("bank: write %s: %w", b.file, err)
	}
	return nil
}

func (b *Bank) normalize(c Candidate) Candidate {
	if b.opts.PunctuationMode == PunctDisabled || b.opts.PunctuationMode == "" {
		return c
	}
	c.Question = NormalizePunctuation(c.Question, b.opts.PunctuationMode)
	opts := make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		opts[k] = NormalizePunctuation(v, b.opts.PunctuationMode)
	}
	c.Options = opts
	return c
}

// Add classifies and possibly inserts a candidate.
//
//   - duplicate: an existing record has the same combined hash; its id is
//     returned and nothing changes.
//   - similar: at least one record scores in [threshold, 0.999); the matches
//     are returned sorted by score descending, nothing is inserted, and the
//     id is ProvisionalID. Scores >= 0.999 land here too rather than in
//     duplicate, a safety margin against normalization edge cases.
//   - new: the record is appended under a fresh id and the bank persisted.
func (b *Bank) Add(c Candidate) (int, Status, []SimilarMatch, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c = b.normalize(c)
	combined := fingerprint.CombinedHash(c.Question, c.Options)

	for i := range b.questions {
		if b.questions[i].CombinedHash == combined {
			return b.questions[i].ID, StatusDuplicate, nil, nil
		}
	}

	var similar []SimilarMatch
	for i := range b.questions {
		score := fingerprint.Similarity(c.Question, c.Options,
			b.questions[i].Question, b.questions[i].Options,
			b.opts.QuestionWeight, b.opts.OptionsWeight)
		if score >= b.opts.SimilarityThreshold {
			similar = append(similar, SimilarMatch{Record: b.questions[i].clone(), Score: score})
		}
	}
	if len(similar) > 0 {
		sort.SliceStable(similar, func(i, j int) bool { return similar[i].Score > similar[j].Score })
		return ProvisionalID, StatusSimilar, similar, nil
	}

	id, err := b.appendLocked(c, combined)
	if err != nil {
		return 0, "", nil, err
	}
	return id, StatusNew, nil, nil
}

// ForceAdd inserts without duplicate or similarity checks. Used once the
// caller has resolved a similar-conflict in favor of keeping the new item.
func (b *Bank) ForceAdd(c Candidate) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c = b.normalize(c)
	return b.appendLocked(c, fingerprint.CombinedHash(c.Question, c.Options))
}

func (b *Bank) appendLocked(c Candidate, combined string) (int, error) {
	opts := make(map[string]string, len(c.Options))
	for k, v := range c.Options {
		opts[k] = v
	}
	rec := QuestionRecord{
		ID:            b.nextID,
		Question:      c.Question,
		QuestionHash:  fingerprint.QuestionHash(c.Question),
		Options:       opts,
		OptionsHash:   fingerprint.OptionsHash(c.Options),
		CombinedHash:  combined,
		CorrectAnswer: c.CorrectAnswer,
		Source:        c.Source,
		ImagePath:     c.ImagePath,
		Note:          c.Note,
		CreatedAt:     time.Now(),
	}
	b.questions = append(b.questions, rec)
	b.nextID++
	if err := b.saveLocked(); err != nil {
		// Failed persist must not leave a phantom record in memory.
		b.questions = b.questions[:len(b.questions)-1]
		b.nextID--
		return 0, err
	}
	return rec.ID, nil
}

func (b *Bank) Get(id int) (QuestionRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == id {
			return b.questions[i].clone(), nil
		}
	}
	return QuestionRecord{}, ErrNotFound
}

func (b *Bank) All() []QuestionRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]QuestionRecord, 0, len(b.questions))
	for i := range b.questions {
		out = append(out, b.questions[i].clone())
	}
	return out
}

// Search matches the keyword case-insensitively against question text and
// option values, preserving bank order.
func (b *Bank) Search(keyword string) []QuestionRecord {
	kw := strings.ToLower(keyword)
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []QuestionRecord
	for i := range b.questions {
		q := &b.questions[i]
		if strings.Contains(strings.ToLower(q.Question), kw) {
			out = append(out, q.clone())
			continue
		}
		for _, v := range q.Options {
			if strings.Contains(strings.ToLower(v), kw) {
				out = append(out, q.clone())
				break
			}
		}
	}
	return out
}

// Update applies a partial edit and persists. Only updated_at is recomputed;
// fingerprints keep their original values (see RecordUpdate).
func (b *Bank) Update(id int, upd RecordUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID != id {
			continue
		}
		prev := b.questions[i].clone()
		q := &b.questions[i]
		if upd.Question != nil {
			q.Question = *upd.Question
		}
		if upd.Options != nil {
			opts := make(map[string]string, len(upd.Options))
			for k, v := range upd.Options {
				opts[k] = v
			}
			q.Options = opts
		}
		if upd.CorrectAnswer != nil {
			q.CorrectAnswer = *upd.CorrectAnswer
		}
		if upd.Note != nil {
			q.Note = *upd.Note
		}
		q.UpdatedAt = time.Now()
		if err := b.saveLocked(); err != nil {
			b.questions[i] = prev
			return err
		}
		return nil
	}
	return ErrNotFound
}

// SetAnswer stores an answer (and optional note) for one record in a single
// persist call, so a cancelled batch never leaves a half-applied update.
func (b *Bank) SetAnswer(id int, answer, note string) error {
	upd := RecordUpdate{CorrectAnswer: &answer}
	if note != "" {
		upd.Note = &note
	}
	return b.Update(id, upd)
}

// Delete removes by id. Later ids are not compacted and never reused.
func (b *Bank) Delete(id int) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.questions {
		if b.questions[i].ID == id {
			prev := b.questions
			b.questions = append(b.questions[:i:i], b.questions[i+1:]...)
			if err := b.saveLocked(); err != nil {
				b.questions = prev
				return err
			}
			return nil
		}
	}
	return ErrNotFound
}

// Clear empties the bank and resets the id counter to 1.
func (b *Bank) Clear() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prevQ, prevID := b.questions, b.nextID
	b.questions = nil
	b.nextID = 1
	if err := b.saveLocked(); err != nil {
		b.questions, b.nextID = prevQ, prevID
		return err
	}
	return nil
}

func (b *Bank) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.questions)
}

func (b *Bank) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	seen := map[string]bool{}
	var sources []string
	for i := range b.questions {
		s := b.questions[i].Source
		if s != "" && !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}
	return Stats{Total: len(b.questions), Sources: sources}
}

// CurrentFile returns the path of the backing file.
func (b *Bank) CurrentFile() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file
}

// SaveAs rewrites the bank into a new backing file and switches to it.
func (b *Bank) SaveAs(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	prev := b.file
	b.file = path
	if err := b.saveLocked(); err != nil {
		b.file = prev
		return err
	}
	return nil
}

// LoadFrom replaces the in-memory bank with the contents of path and makes
// path the backing file.
func (b *Bank) LoadFrom(path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("bank: %w", err)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.loadLocked(path)
	b.file = path
	return nil
}

// Import merges records from another bank file. Every imported record gets a
// fresh id from the counter and a source marker; hashes and timestamps travel
// as-is, so duplicates of existing questions are possible and left to the
// operator.
func (b *Bank) Import(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("bank: import: %w", err)
	}
	return b.ImportData(data)
}

// ImportData merges records from raw bank-file JSON.
func (b *Bank) ImportData(data []byte) (int, error) {
	var f bankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("bank: import: bad JSON: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	prevQ := b.questions
	prevID := b.nextID
	for _, q := range f.Questions {
		q = q.clone()
		q.ID = b.nextID
		q.Source += ImportedMarker
		b.questions = append(b.questions, q)
		b.nextID++
	}
	if err := b.saveLocked(); err != nil {
		b.questions, b.nextID = prevQ, prevID
		return 0, err
	}
	return len(f.Questions), nil
}
