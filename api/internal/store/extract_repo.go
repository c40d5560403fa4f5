// Package store caches model results in Postgres so repeated uploads of the
// same image skip the vision call. The cache is optional; the engine layer
// works without it.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"quizbank/api/internal/ocr"
)

var ErrNotFound = sql.ErrNoRows

// ExtractRepo caches question-extraction results keyed by
// (image_hash, engine, model).
type ExtractRepo struct{ DB *sql.DB }

func NewExtractRepo(db *sql.DB) *ExtractRepo { return &ExtractRepo{DB: db} }

type ExtractRow struct {
	ID        int64
	CreatedAt time.Time
	ImageHash string
	Engine    string
	Model     string
	Questions []ocr.ParsedQuestion
}

// FindByHash returns the freshest cached extraction for the key. A maxAge of
// zero disables the staleness check.
func (r *ExtractRepo) FindByHash(ctx context.Context, imageHash, engine, model string, maxAge time.Duration) (*ExtractRow, error) {
	const q = `
select id, created_at, image_hash, engine, model, result_json
from extracted_pages
where image_hash = $1 and engine = $2 and model = $3
order by created_at desc
limit 1`
	row := r.DB.QueryRowContext(ctx, q, imageHash, engine, model)

	var (
		id      int64
		ts      time.Time
		imgHash string
		engName string
		mdl     string
		js      []byte
	)
	if err := row.Scan(&id, &ts, &imgHash, &engName, &mdl, &js); err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(ts) > maxAge {
		return nil, ErrNotFound
	}
	var questions []ocr.ParsedQuestion
	if err := json.Unmarshal(js, &questions); err != nil {
		// Broken JSON in the cache counts as a miss.
		return nil, ErrNotFound
	}
	return &ExtractRow{
		ID:        id,
		CreatedAt: ts,
		ImageHash: imgHash,
		Engine:    engName,
		Model:     mdl,
		Questions: questions,
	}, nil
}

// Upsert stores an extraction result, replacing any previous row for the key.
func (r *ExtractRepo) Upsert(ctx context.Context, imageHash, engine, model string, questions []ocr.ParsedQuestion) error {
	js, _ := json.Marshal(questions)
	const q = `
insert into extracted_pages (image_hash, engine, model, result_json)
values ($1,$2,$3,$4)
on conflict (image_hash, engine, model) do update
set result_json = excluded.result_json,
    created_at = now()`
	_, err := r.DB.ExecContext(ctx, q, imageHash, engine, model, js)
	return err
}

// PurgeOlderThan trims old cache rows.
func (r *ExtractRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := time.Now().Add(-olderThan)
	const q = `delete from extracted_pages where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}
