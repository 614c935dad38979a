package pharmacy

import (
	"context"

	"github.com/google/uuid"
)

type InventoryRepository interface {
	Create(ctx context.Context, item *InventoryItem) error
	GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error)
	List(ctx context.Context, lowStockOnly bool) ([]*InventoryItem, error)
	// FindByDrugName matches the name case-insensitively. The oldest item
	// wins when several share a name.
	FindByDrugName(ctx context.Context, name string) (*InventoryItem, error)
	// AdjustStock adds delta to the stock, failing with ErrInvalidState when
	// the result would be negative.
	AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*InventoryItem, error)
}

type DispenseRepository interface {
	Create(ctx context.Context, rec *DispenseRecord) error
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*DispenseRecord, error)
}
