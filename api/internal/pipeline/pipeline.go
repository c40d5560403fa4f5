// Package pipeline drives an image batch through slicing, recognition,
// parsing, dedup and storage. One bad image never aborts the batch; its
// failure is reported alongside the other results.
package pipeline

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"sync"
	"time"

	"github.com/disintegration/imaging"

	"quizbank/api/internal/bank"
	"quizbank/api/internal/extract"
	"quizbank/api/internal/fingerprint"
	"quizbank/api/internal/ocr"
	"quizbank/api/internal/slicer"
	"quizbank/api/internal/stitch"
	"quizbank/api/internal/store"
	"quizbank/api/internal/util"
)

const pendingTTL = 30 * time.Minute

var ErrUnknownToken = errors.New("pipeline: unknown or expired conflict token")

type Pipeline struct {
	Bank         *bank.Bank
	SlicerCfg    slicer.Config
	Stitcher     *stitch.Stitcher
	MaxShortSide int

	// Optional Postgres caches; nil disables caching.
	ExtractCache *store.ExtractRepo
	AnswerCache  *store.AnswerRepo
	CacheMaxAge  time.Duration

	pending sync.Map // token -> *pendingConflict
}

type ImageInput struct {
	Name string
	Data []byte
}

// Outcome describes what happened to one extracted question.
type Outcome struct {
	Status   bank.Status         `json:"status,omitempty"` // empty when invalid
	ID       int                 `json:"id,omitempty"`
	Question string              `json:"question"`
	Options  map[string]string   `json:"options"`
	Invalid  string              `json:"invalid,omitempty"` // rejection reason
	Similar  []bank.SimilarMatch `json:"similar,omitempty"`
	Token    string              `json:"token,omitempty"` // resolve handle for similar conflicts
}

type ItemResult struct {
	Name      string    `json:"name"`
	Err       string    `json:"error,omitempty"`
	Sliced    bool      `json:"sliced,omitempty"`
	Questions []Outcome `json:"questions,omitempty"`
}

type Result struct {
	Items      []ItemResult `json:"items"`
	New        int          `json:"new"`
	Duplicates int          `json:"duplicates"`
	Similar    int          `json:"similar"`
	Invalid    int          `json:"invalid"`
	Failed     int          `json:"failed"`
}

type pendingConflict struct {
	candidate bank.Candidate
	imageData []byte
	expires   time.Time
}

// Ingest runs the batch left to right under one engine.
func (p *Pipeline) Ingest(ctx context.Context, eng ocr.Engine, images []ImageInput) (Result, error) {
	var res Result
	for _, in := range images {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		item := p.ingestOne(ctx, eng, in)
		if item.Err != "" {
			res.Failed++
		}
		for i := range item.Questions {
			switch {
			case item.Questions[i].Invalid != "":
				res.Invalid++
			case item.Questions[i].Status == bank.StatusNew:
				res.New++
			case item.Questions[i].Status == bank.StatusDuplicate:
				res.Duplicates++
			case item.Questions[i].Status == bank.StatusSimilar:
				res.Similar++
			}
		}
		res.Items = append(res.Items, item)
	}
	return res, nil
}

func (p *Pipeline) ingestOne(ctx context.Context, eng ocr.Engine, in ImageInput) ItemResult {
	item := ItemResult{Name: in.Name}

	img, err := imaging.Decode(bytes.NewReader(in.Data), imaging.AutoOrientation(true))
	if err != nil {
		item.Err = fmt.Sprintf("unreadable image: %v", err)
		return item
	}

	session, err := slicer.NewSession(p.SlicerCfg)
	if err != nil {
		item.Err = err.Error()
		return item
	}
	defer session.Cleanup()

	var parsed []ocr.ParsedQuestion
	if session.ShouldSplit(img) {
		item.Sliced = true
		parsed, err = p.extractSliced(ctx, eng, session, img, in.Name)
	} else {
		parsed, err = p.extractDirect(ctx, eng, in.Data)
	}
	if err != nil {
		item.Err = err.Error()
		return item
	}

	for _, q := range parsed {
		item.Questions = append(item.Questions, p.storeOne(bank.Candidate{
			Question: q.Question,
			Options:  extract.FillOptions(q.Options),
			Source:   in.Name,
		}, in.Data))
	}
	return item
}

// extractDirect sends the whole image to the vision model, via the cache when
// one is configured.
func (p *Pipeline) extractDirect(ctx context.Context, eng ocr.Engine, data []byte) ([]ocr.ParsedQuestion, error) {
	imageHash := util.SHA256Hex(data)
	if p.ExtractCache != nil {
		row, err := p.ExtractCache.FindByHash(ctx, imageHash, eng.Name(), eng.Model(), p.CacheMaxAge)
		if err == nil {
			log.Printf("pipeline: extract cache hit %s/%s", eng.Name(), imageHash[:12])
			return row.Questions, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			log.Printf("pipeline: extract cache read: %v", err)
		}
	}

	normalized, err := bank.NormalizeJPEG(data, p.MaxShortSide)
	if err != nil {
		// Decode succeeded earlier, so this is an encoder problem; send the
		// original bytes rather than failing the item.
		normalized = data
	}
	parsed, err := eng.ExtractQuestions(ctx, normalized)
	if err != nil {
		return nil, err
	}

	if p.ExtractCache != nil {
		if err := p.ExtractCache.Upsert(ctx, imageHash, eng.Name(), eng.Model(), parsed); err != nil {
			log.Printf("pipeline: extract cache write: %v", err)
		}
	}
	return parsed, nil
}

// extractSliced OCRs each band, stitches the texts back together and parses
// questions out of the combined stream.
func (p *Pipeline) extractSliced(ctx context.Context, eng ocr.Engine, session *slicer.Session, img image.Image, name string) ([]ocr.ParsedQuestion, error) {
	slices, err := session.Split(img)
	if err != nil {
		return nil, err
	}

	fragments := make([]string, 0, len(slices))
	for _, sl := range slices {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(sl.Path)
		if err != nil {
			return nil, fmt.Errorf("read slice %d: %w", sl.Index, err)
		}
		text, err := eng.RecognizeText(ctx, data)
		if err != nil {
			return nil, fmt.Errorf("recognize slice %d: %w", sl.Index, err)
		}
		fragments = append(fragments, text)
	}

	merged := p.Stitcher.Merge(fragments)
	log.Printf("pipeline: %s stitched %d slices into %d bytes", name, len(slices), len(merged))

	blocks := extract.Extract(merged)
	parsed := make([]ocr.ParsedQuestion, 0, len(blocks))
	for _, b := range blocks {
		parsed = append(parsed, ocr.ParsedQuestion{Question: b.Question, Options: b.Options})
	}
	return parsed, nil
}

// storeOne validates a candidate, persists its image and runs it through the
// bank's dedup gate. Similar conflicts are parked under a token so a later
// call can force or drop them.
func (p *Pipeline) storeOne(c bank.Candidate, imageData []byte) Outcome {
	out := Outcome{Question: c.Question, Options: c.Options}

	if ok, reason := extract.Validate(c); !ok {
		out.Invalid = reason
		return out
	}

	combined := fingerprint.CombinedHash(c.Question, c.Options)
	if path, err := p.Bank.SaveImage(imageData, combined); err != nil {
		log.Printf("pipeline: save image: %v", err)
	} else {
		c.ImagePath = path
	}

	id, status, similar, err := p.Bank.Add(c)
	if err != nil {
		out.Invalid = err.Error()
		return out
	}
	out.Status = status
	out.ID = id
	out.Similar = similar
	if status == bank.StatusSimilar {
		out.Token = p.park(c, imageData)
	}
	return out
}

func (p *Pipeline) park(c bank.Candidate, imageData []byte) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		// Token only needs uniqueness within the TTL window.
		buf = []byte(fmt.Sprintf("%d", time.Now().UnixNano()))
	}
	token := hex.EncodeToString(buf)
	p.pending.Store(token, &pendingConflict{
		candidate: c,
		imageData: imageData,
		expires:   time.Now().Add(pendingTTL),
	})
	return token
}

// Resolve settles a parked similar-conflict. force inserts the candidate
// bypassing all checks; otherwise it is dropped. Either way the token is
// spent.
func (p *Pipeline) Resolve(token string, force bool) (int, error) {
	v, ok := p.pending.LoadAndDelete(token)
	if !ok {
		return 0, ErrUnknownToken
	}
	pc := v.(*pendingConflict)
	if time.Now().After(pc.expires) {
		return 0, ErrUnknownToken
	}
	if !force {
		return 0, nil
	}
	return p.Bank.ForceAdd(pc.candidate)
}

// PendingCandidate returns a parked candidate without consuming the token.
func (p *Pipeline) PendingCandidate(token string) (bank.Candidate, bool) {
	v, ok := p.pending.Load(token)
	if !ok {
		return bank.Candidate{}, false
	}
	pc := v.(*pendingConflict)
	if time.Now().After(pc.expires) {
		p.pending.Delete(token)
		return bank.Candidate{}, false
	}
	return pc.candidate, true
}
