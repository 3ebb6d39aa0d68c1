package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"image-to-text/api/internal/ocr"

	"github.com/google/uuid"
)

var ErrNotFound = sql.ErrNoRows

var schema = []string{`
create table if not exists recognitions (
  id          uuid primary key,
  created_at  timestamptz not null default now(),
  chat_id     bigint not null default 0,
  image_hash  text not null,
  engine      text not null,
  file_name   text not null default '',
  kind        text not null,
  text        text not null default '',
  error       text not null default ''
)`,
	`create index if not exists recognitions_hash_idx on recognitions (image_hash, engine, created_at desc)`,
}

type RecognitionRepo struct {
	DB  *sql.DB
	now func() time.Time
}

func NewRecognitionRepo(db *sql.DB) *RecognitionRepo {
	return &RecognitionRepo{DB: db, now: time.Now}
}

// Recognition — одна запись истории распознаваний.
type Recognition struct {
	ID        string
	CreatedAt time.Time
	ChatID    int64
	ImageHash string
	Engine    string
	FileName  string
	Kind      ocr.OutcomeKind
	Text      string
	Error     string
}

// Migrate создаёт таблицу, если её ещё нет.
func (r *RecognitionRepo) Migrate(ctx context.Context) error {
	for _, q := range schema {
		if _, err := r.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Insert сохраняет итог распознавания. ID и CreatedAt заполняются, если пусты.
func (r *RecognitionRepo) Insert(ctx context.Context, rec *Recognition) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}
	const q = `
insert into recognitions (id, created_at, chat_id, image_hash, engine, file_name, kind, text, error)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
	_, err := r.DB.ExecContext(ctx, q,
		rec.ID, rec.CreatedAt, rec.ChatID, rec.ImageHash, rec.Engine,
		rec.FileName, string(rec.Kind), rec.Text, rec.Error,
	)
	return err
}

// FindByHash достаёт самый свежий успешный (или пустой) результат по (image_hash, engine).
// Если maxAge > 0 — проверяет "свежесть", иначе игнорирует возраст.
func (r *RecognitionRepo) FindByHash(ctx context.Context, imageHash, engine string, maxAge time.Duration) (*Recognition, error) {
	const q = `
select id, created_at, chat_id, image_hash, engine, file_name, kind, text, error
from recognitions
where image_hash = $1 and engine = $2 and kind in ('success','empty')
order by created_at desc
limit 1`
	var (
		rec  Recognition
		kind string
	)
	err := r.DB.QueryRowContext(ctx, q, imageHash, engine).Scan(
		&rec.ID, &rec.CreatedAt, &rec.ChatID, &rec.ImageHash, &rec.Engine,
		&rec.FileName, &kind, &rec.Text, &rec.Error,
	)
	if err != nil {
		return nil, err
	}
	if maxAge > 0 && r.now().Sub(rec.CreatedAt) > maxAge {
		return nil, ErrNotFound
	}
	rec.Kind = ocr.OutcomeKind(kind)
	return &rec, nil
}

// PurgeOlderThan удаляет старые записи, чтобы не раздувать БД.
func (r *RecognitionRepo) PurgeOlderThan(ctx context.Context, olderThan time.Duration) (int64, error) {
	if olderThan <= 0 {
		return 0, errors.New("olderThan must be > 0")
	}
	cutoff := r.now().Add(-olderThan)
	const q = `delete from recognitions where created_at < $1`
	res, err := r.DB.ExecContext(ctx, q, cutoff)
	if err != nil {
		return 0, err
	}
	aff, _ := res.RowsAffected()
	return aff, nil
}

// Outcome restores a cached record as an ocr.Outcome.
func (rec *Recognition) Outcome() ocr.Outcome {
	if rec.Kind == ocr.OutcomeSuccess && rec.Text != "" {
		return ocr.Success(rec.Text)
	}
	return ocr.Empty()
}

// FromOutcome builds a history record; the error text is kept for failures.
func FromOutcome(chatID int64, imageHash, engine, fileName string, out ocr.Outcome) *Recognition {
	rec := &Recognition{
		ChatID:    chatID,
		ImageHash: imageHash,
		Engine:    engine,
		FileName:  fileName,
		Kind:      out.Kind,
		Text:      out.Text,
	}
	if err := out.Err(); err != nil {
		rec.Error = err.Error()
	}
	return rec
}
