package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, params ListParams) ([]*Patient, int, error)
	// FindByPhone returns non-deleted patients whose normalised phone equals phone.
	FindByPhone(ctx context.Context, phone string) ([]*Patient, error)
	SoftDelete(ctx context.Context, id uuid.UUID) error
}
