package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/ocr"
)

type AnswerOptions struct {
	SkipAnswered  bool
	GenerateNotes bool
	IncludeImage  bool
	QuestionType  string // "single" or "multiple"
	NoteStyle     string
	NoteMaxLen    int
}

type AnswerSummary struct {
	Answered int `json:"answered"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// AnswerAll runs the model over every stored question. Cancellation stops the
// batch between questions; records answered so far stay answered.
func (p *Pipeline) AnswerAll(ctx context.Context, eng ocr.Engine, opts AnswerOptions) (AnswerSummary, error) {
	var sum AnswerSummary
	for _, q := range p.Bank.All() {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		if opts.SkipAnswered && q.CorrectAnswer != "" {
			sum.Skipped++
			continue
		}
		if err := p.answerOne(ctx, eng, q, opts); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return sum, err
			}
			log.Printf("pipeline: answer question %d: %v", q.ID, err)
			sum.Failed++
			continue
		}
		sum.Answered++
	}
	return sum, nil
}

// AnswerOne answers a single stored question by id.
func (p *Pipeline) AnswerOne(ctx context.Context, eng ocr.Engine, id int, opts AnswerOptions) (bank.QuestionRecord, error) {
	q, err := p.Bank.Get(id)
	if err != nil {
		return bank.QuestionRecord{}, err
	}
	if err := p.answerOne(ctx, eng, q, opts); err != nil {
		return bank.QuestionRecord{}, err
	}
	return p.Bank.Get(id)
}

func (p *Pipeline) answerOne(ctx context.Context, eng ocr.Engine, q bank.QuestionRecord, opts AnswerOptions) error {
	if p.AnswerCache != nil {
		row, err := p.AnswerCache.FindByHash(ctx, q.CombinedHash, eng.Name(), eng.Model(), p.CacheMaxAge)
		if err == nil && row.Answer != "" {
			return p.Bank.SetAnswer(q.ID, row.Answer, row.Note)
		}
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			log.Printf("pipeline: answer cache read: %v", err)
		}
	}

	req := ocr.AnswerRequest{
		Question:     q.Question,
		Options:      q.Options,
		GenerateNote: opts.GenerateNotes,
		QuestionType: opts.QuestionType,
		NoteStyle:    opts.NoteStyle,
		NoteMaxLen:   opts.NoteMaxLen,
	}
	if opts.IncludeImage && q.ImagePath != "" {
		if data, err := os.ReadFile(q.ImagePath); err == nil {
			req.ImageData = data
			req.IncludeImage = true
		} else {
			log.Printf("pipeline: read image for question %d: %v", q.ID, err)
		}
	}

	res, err := eng.Answer(ctx, req)
	if err != nil {
		return err
	}
	if res.Answer == "" {
		return fmt.Errorf("empty answer")
	}
	if err := p.Bank.SetAnswer(q.ID, res.Answer, res.Note); err != nil {
		return err
	}

	if p.AnswerCache != nil {
		if err := p.AnswerCache.Upsert(ctx, q.CombinedHash, eng.Name(), eng.Model(), res.Answer, res.Note); err != nil {
			log.Printf("pipeline: answer cache write: %v", err)
		}
	}
	return nil
}

// GenerateNote produces an explanation for a question that already has an
// answer and stores it on the record.
func (p *Pipeline) GenerateNote(ctx context.Context, eng ocr.Engine, id int, opts AnswerOptions) (string, error) {
	q, err := p.Bank.Get(id)
	if err != nil {
		return "", err
	}
	if q.CorrectAnswer == "" {
		return "", fmt.Errorf("pipeline: question %d has no answer yet", id)
	}

	req := ocr.NoteRequest{
		Question:   q.Question,
		Options:    q.Options,
		Answer:     q.CorrectAnswer,
		NoteStyle:  opts.NoteStyle,
		NoteMaxLen: opts.NoteMaxLen,
	}
	if opts.IncludeImage && q.ImagePath != "" {
		if data, err := os.ReadFile(q.ImagePath); err == nil {
			req.ImageData = data
			req.IncludeImage = true
		}
	}

	note, err := eng.Note(ctx, req)
	if err != nil {
		return "", err
	}
	if note == "" {
		return "", fmt.Errorf("empty note")
	}
	return note, p.Bank.Update(id, bank.RecordUpdate{Note: &note})
}
