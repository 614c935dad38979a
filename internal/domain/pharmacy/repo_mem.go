package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
)

type inventoryRepoMem struct {
	items *memstore.Table[uuid.UUID, InventoryItem]
}

func NewInventoryRepoMem(store *memstore.Store) InventoryRepository {
	return &inventoryRepoMem{items: memstore.NewTable[uuid.UUID, InventoryItem](store, nil)}
}

func (r *inventoryRepoMem) Create(ctx context.Context, item *InventoryItem) error {
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	r.items.Put(ctx, item.ID, *item)
	return nil
}

func (r *inventoryRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	item, ok := r.items.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("inventory item", id)
	}
	return &item, nil
}

func (r *inventoryRepoMem) List(ctx context.Context, lowStockOnly bool) ([]*InventoryItem, error) {
	all := r.items.Filter(ctx, func(i InventoryItem) bool { return !lowStockOnly || i.LowStock() },
		func(a, b InventoryItem) bool { return a.DrugName < b.DrugName })
	out := make([]*InventoryItem, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

func (r *inventoryRepoMem) FindByDrugName(ctx context.Context, name string) (*InventoryItem, error) {
	name = strings.TrimSpace(name)
	found := r.items.Filter(ctx, func(i InventoryItem) bool { return strings.EqualFold(i.DrugName, name) },
		func(a, b InventoryItem) bool { return a.CreatedAt.Before(b.CreatedAt) })
	if len(found) == 0 {
		return nil, apperr.NotFound("inventory item", name)
	}
	return &found[0], nil
}

func (r *inventoryRepoMem) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*InventoryItem, error) {
	var out InventoryItem
	found, err := r.items.Update(ctx, id, func(i InventoryItem) (InventoryItem, error) {
		if i.Stock+delta < 0 {
			return i, apperr.InvalidState("insufficient stock for %s: have %d, need %d", i.DrugName, i.Stock, -delta)
		}
		i.Stock += delta
		i.UpdatedAt = time.Now().UTC()
		out = i
		return i, nil
	})
	if !found {
		return nil, apperr.NotFound("inventory item", id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type dispenseRepoMem struct {
	records *memstore.Table[uuid.UUID, DispenseRecord]
}

func NewDispenseRepoMem(store *memstore.Store) DispenseRepository {
	return &dispenseRepoMem{records: memstore.NewTable[uuid.UUID, DispenseRecord](store, cloneRecord)}
}

func cloneRecord(rec DispenseRecord) DispenseRecord {
	rec.Items = append([]DispenseItem(nil), rec.Items...)
	return rec
}

func (r *dispenseRepoMem) Create(ctx context.Context, rec *DispenseRecord) error {
	rec.ID = uuid.New()
	rec.DispensedAt = time.Now().UTC()
	r.records.Put(ctx, rec.ID, *rec)
	return nil
}

func (r *dispenseRepoMem) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*DispenseRecord, error) {
	all := r.records.Filter(ctx, func(rec DispenseRecord) bool { return rec.VisitID == visitID },
		func(a, b DispenseRecord) bool { return a.DispensedAt.Before(b.DispensedAt) })
	out := make([]*DispenseRecord, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}
