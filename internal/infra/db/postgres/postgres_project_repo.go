package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"canvascast/internal/domain"
	"canvascast/internal/domain/model"
	"canvascast/internal/domain/ports/repository"
)

var _ repository.ProjectRepository = (*projectRepo)(nil)

type projectRepo struct {
	pool *pgxpool.Pool
}

func NewProjectRepo(pool *pgxpool.Pool) *projectRepo {
	return &projectRepo{pool: pool}
}

func (r *projectRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Project, error) {
	row, err := pickRow(ctx, r.pool, tx, `
SELECT id, user_id, title, prompt, style, voice, target_secs, created_at, updated_at
  FROM projects WHERE id=$1;`, id)
	if err != nil {
		return nil, err
	}

	var p model.Project
	if err := row.Scan(&p.ID, &p.UserID, &p.Title, &p.Prompt, &p.Style, &p.Voice, &p.TargetSecs, &p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &p, nil
}

func (r *projectRepo) Save(ctx context.Context, tx repository.Tx, p *model.Project) error {
	p.UpdatedAt = time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = p.UpdatedAt
	}

	const q = `
INSERT INTO projects (id, user_id, title, prompt, style, voice, target_secs, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
  title = EXCLUDED.title,
  prompt = EXCLUDED.prompt,
  style = EXCLUDED.style,
  voice = EXCLUDED.voice,
  target_secs = EXCLUDED.target_secs,
  updated_at = EXCLUDED.updated_at;`

	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.UserID, p.Title, p.Prompt, p.Style, p.Voice, p.TargetSecs, p.CreatedAt, p.UpdatedAt)
	return err
}
