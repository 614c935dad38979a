package pharmacy

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

type Service struct {
	inventory InventoryRepository
	dispenses DispenseRepository
	tx        db.Transactor
}

func NewService(inventory InventoryRepository, dispenses DispenseRepository, tx db.Transactor) *Service {
	return &Service{inventory: inventory, dispenses: dispenses, tx: tx}
}

func (s *Service) CreateItem(ctx context.Context, item *InventoryItem) error {
	item.DrugName = strings.TrimSpace(item.DrugName)
	if item.DrugName == "" {
		return apperr.Validation("drug_name is required")
	}
	if item.Stock < 0 || item.ReorderLevel < 0 {
		return apperr.Validation("stock and reorder_level must not be negative")
	}
	if item.UnitPrice < 0 {
		return apperr.Validation("unit_price must not be negative")
	}
	return s.inventory.Create(ctx, item)
}

func (s *Service) GetItem(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	return s.inventory.GetByID(ctx, id)
}

func (s *Service) ListItems(ctx context.Context, lowStockOnly bool) ([]*InventoryItem, error) {
	return s.inventory.List(ctx, lowStockOnly)
}

func (s *Service) FindItemByName(ctx context.Context, name string) (*InventoryItem, error) {
	return s.inventory.FindByDrugName(ctx, name)
}

func (s *Service) Restock(ctx context.Context, id uuid.UUID, quantity int) (*InventoryItem, error) {
	if quantity <= 0 {
		return nil, apperr.Validation("quantity must be positive")
	}
	return s.inventory.AdjustStock(ctx, id, quantity)
}

// Dispense decrements stock for every line and records the fulfilment. Lines
// for the same item are merged. Either every line is dispensed or none is.
func (s *Service) Dispense(ctx context.Context, visitID, patientID uuid.UUID, lines []DispenseLine, actor string) (*DispenseRecord, error) {
	if len(lines) == 0 {
		return nil, apperr.Validation("nothing to dispense")
	}
	merged := make(map[uuid.UUID]int)
	var order []uuid.UUID
	for _, l := range lines {
		if l.Quantity <= 0 {
			return nil, apperr.Validation("quantity must be positive")
		}
		if _, seen := merged[l.InventoryItemID]; !seen {
			order = append(order, l.InventoryItemID)
		}
		merged[l.InventoryItemID] += l.Quantity
	}

	rec := &DispenseRecord{VisitID: visitID, PatientID: patientID, DispensedBy: actor, Items: []DispenseItem{}}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for _, id := range order {
			qty := merged[id]
			item, err := s.inventory.AdjustStock(ctx, id, -qty)
			if err != nil {
				return err
			}
			line := DispenseItem{
				InventoryItemID: id,
				DrugName:        item.DrugName,
				Quantity:        qty,
				UnitPrice:       item.UnitPrice,
				LineTotal:       float64(qty) * item.UnitPrice,
			}
			rec.Items = append(rec.Items, line)
			rec.TotalCost += line.LineTotal
		}
		return s.dispenses.Create(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Service) ListDispenses(ctx context.Context, visitID uuid.UUID) ([]*DispenseRecord, error) {
	return s.dispenses.ListByVisit(ctx, visitID)
}
