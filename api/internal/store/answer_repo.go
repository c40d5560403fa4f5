package store

import (
	"context"
	"database/sql"
	"time"
)

// AnswerRepo caches answer/note generations keyed by
// (combined_hash, engine, model).
type AnswerRepo struct{ DB *sql.DB }

func NewAnswerRepo(db *sql.DB) *AnswerRepo { return &AnswerRepo{DB: db} }

type AnswerRow struct {
	ID           int64
	CreatedAt    time.Time
	CombinedHash string
	Engine       string
	Model        string
	Answer       string
	Note         string
}

func (r *AnswerRepo) FindByHash(ctx context.Context, combinedHash, engine, model string, maxAge time.Duration) (*AnswerRow, error) {
	const q = `
select id, created_at, combined_hash, engine, model, answer, coalesce(note,'') as note
from answered_questions
where combined_hash = $1 and engine = $2 and model = $3
order by created_at desc
limit 1`
	row := r.DB.QueryRowContext(ctx, q, combinedHash, engine, model)

	var out AnswerRow
	if err := row.Scan(&out.ID, &out.CreatedAt, &out.CombinedHash, &out.Engine, &out.Model, &out.Answer, &out.Note); err != nil {
		return nil, err
	}
	if maxAge > 0 && time.Since(out.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	return &out, nil
}

func (r *AnswerRepo) Upsert(ctx context.Context, combinedHash, engine, model, answer, note string) error {
	const q = `
insert into answered_questions (combined_hash, engine, model, answer, note)
values ($1,$2,$3,$4,$5)
on conflict (combined_hash, engine, model) do update
set answer = excluded.answer,
    note = excluded.note,
    created_at = now()`
	_, err := r.DB.ExecContext(ctx, q, combinedHash, engine, model, answer, note)
	return err
}
