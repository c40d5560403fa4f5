// Package ocr defines the vision/LLM engine interface and the registry of
// configured engines. Engines turn question images into structured data and
// answer stored questions; the rest of the system only sees this interface.
package ocr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrUnsupported is returned by engines that do not implement an operation,
// e.g. a plain OCR engine asked to answer a question.
var ErrUnsupported = errors.New("ocr: operation not supported by this engine")

// ParsedQuestion is one question block as extracted by a vision model.
type ParsedQuestion struct {
	Question string            `json:"question"`
	Options  map[string]string `json:"options"`
}

// AnswerRequest asks an engine to solve one stored question.
type AnswerRequest struct {
	Question     string
	Options      map[string]string
	ImageData    []byte // original question image, sent when IncludeImage
	IncludeImage bool
	GenerateNote bool
	QuestionType string // "single" or "multiple"
	NoteStyle    string
	NoteMaxLen   int
}

type AnswerResult struct {
	Answer string `json:"answer"`
	Note   string `json:"note,omitempty"`
}

// NoteRequest asks for an explanation of a question whose answer is known.
type NoteRequest struct {
	Question     string
	Options      map[string]string
	Answer       string
	ImageData    []byte
	IncludeImage bool
	NoteStyle    string
	NoteMaxLen   int
}

type Engine interface {
	Name() string
	Model() string
	// ExtractQuestions reads all question blocks off a page image.
	ExtractQuestions(ctx context.Context, image []byte) ([]ParsedQuestion, error)
	// RecognizeText returns the raw text of an image slice.
	RecognizeText(ctx context.Context, image []byte) (string, error)
	Answer(ctx context.Context, req AnswerRequest) (AnswerResult, error)
	Note(ctx context.Context, req NoteRequest) (string, error)
}

// Engines is a registry of configured engines keyed by name.
type Engines struct {
	def string
	m   map[string]Engine
}

func NewEngines(defaultName string) *Engines {
	return &Engines{def: defaultName, m: map[string]Engine{}}
}

func (e *Engines) Register(eng Engine) { e.m[eng.Name()] = eng }

// Get resolves a name to an engine; the empty name means the default.
func (e *Engines) Get(name string) (Engine, error) {
	if name == "" {
		name = e.def
	}
	if eng, ok := e.m[name]; ok {
		return eng, nil
	}
	return nil, fmt.Errorf("ocr: unknown engine %q", name)
}

func (e *Engines) Default() Engine {
	eng, _ := e.Get("")
	return eng
}

func (e *Engines) Names() []string {
	names := make([]string, 0, len(e.m))
	for n := range e.m {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Manager tracks a per-chat engine choice on top of the registry default.
type Manager struct {
	engines *Engines
	m       sync.Map // chatID -> engine name
}

func NewManager(engines *Engines) *Manager {
	return &Manager{engines: engines}
}

func (m *Manager) Get(chatID int64) Engine {
	if v, ok := m.m.Load(chatID); ok {
		if eng, err := m.engines.Get(v.(string)); err == nil {
			return eng
		}
	}
	return m.engines.Default()
}

func (m *Manager) Set(chatID int64, name string) error {
	if _, err := m.engines.Get(name); err != nil {
		return err
	}
	m.m.Store(chatID, name)
	return nil
}

func (m *Manager) Names() []string { return m.engines.Names() }
