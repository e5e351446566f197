package repository

import (
	"context"

	"canvascast/internal/domain/model"
)

type ProjectRepository interface {
	FindByID(ctx context.Context, tx Tx, id string) (*model.Project, error)
	Save(ctx context.Context, tx Tx, p *model.Project) error
}
