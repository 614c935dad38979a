package diagnostics

import (
	"context"

	"github.com/google/uuid"
)

type LabTestRepository interface {
	Create(ctx context.Context, t *LabTest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error)
	GetByCode(ctx context.Context, code string) (*LabTest, error)
	List(ctx context.Context) ([]*LabTest, error)
}

type LabRequestRepository interface {
	Create(ctx context.Context, r *LabRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*LabRequest, error)
	// Update persists status, result and timestamps.
	Update(ctx context.Context, r *LabRequest) error
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabRequest, error)
}
