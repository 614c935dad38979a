package pharmacy

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

// =========== Inventory Repository ===========

type inventoryRepoPG struct{ pool *pgxpool.Pool }

func NewInventoryRepoPG(pool *pgxpool.Pool) InventoryRepository { return &inventoryRepoPG{pool: pool} }

const itemCols = `id, drug_name, stock, unit_price, reorder_level, created_at, updated_at`

func scanItem(row pgx.Row) (*InventoryItem, error) {
	var i InventoryItem
	if err := row.Scan(&i.ID, &i.DrugName, &i.Stock, &i.UnitPrice, &i.ReorderLevel, &i.CreatedAt, &i.UpdatedAt); err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *inventoryRepoPG) Create(ctx context.Context, item *InventoryItem) error {
	item.ID = uuid.New()
	now := time.Now().UTC()
	item.CreatedAt, item.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx,
		`INSERT INTO inventory_items (`+itemCols+`) VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		item.ID, item.DrugName, item.Stock, item.UnitPrice, item.ReorderLevel, now)
	return err
}

func (r *inventoryRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*InventoryItem, error) {
	item, err := scanItem(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+itemCols+` FROM inventory_items WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("inventory item", id)
	}
	return item, err
}

func (r *inventoryRepoPG) List(ctx context.Context, lowStockOnly bool) ([]*InventoryItem, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE (NOT $1 OR stock <= reorder_level) ORDER BY drug_name`, lowStockOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*InventoryItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *inventoryRepoPG) FindByDrugName(ctx context.Context, name string) (*InventoryItem, error) {
	item, err := scanItem(db.QuerierFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT `+itemCols+` FROM inventory_items WHERE lower(drug_name) = lower($1) ORDER BY created_at LIMIT 1`,
		strings.TrimSpace(name)))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("inventory item", name)
	}
	return item, err
}

func (r *inventoryRepoPG) AdjustStock(ctx context.Context, id uuid.UUID, delta int) (*InventoryItem, error) {
	item, err := scanItem(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `
		UPDATE inventory_items SET stock = stock + $2, updated_at = NOW()
		WHERE id = $1 AND stock + $2 >= 0
		RETURNING `+itemCols, id, delta))
	if !db.IsNoRows(err) {
		return item, err
	}
	cur, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return nil, apperr.InvalidState("insufficient stock for %s: have %d, need %d", cur.DrugName, cur.Stock, -delta)
}

// =========== Dispense Repository ===========

type dispenseRepoPG struct{ pool *pgxpool.Pool }

func NewDispenseRepoPG(pool *pgxpool.Pool) DispenseRepository { return &dispenseRepoPG{pool: pool} }

func (r *dispenseRepoPG) Create(ctx context.Context, rec *DispenseRecord) error {
	rec.ID = uuid.New()
	rec.DispensedAt = time.Now().UTC()
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO dispense_records (id, visit_id, patient_id, items, total_cost, dispensed_by, dispensed_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		rec.ID, rec.VisitID, rec.PatientID, rec.Items, rec.TotalCost, rec.DispensedBy, rec.DispensedAt)
	return err
}

func (r *dispenseRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*DispenseRecord, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT id, visit_id, patient_id, items, total_cost, dispensed_by, dispensed_at
		FROM dispense_records WHERE visit_id = $1 ORDER BY dispensed_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*DispenseRecord
	for rows.Next() {
		var rec DispenseRecord
		if err := rows.Scan(&rec.ID, &rec.VisitID, &rec.PatientID, &rec.Items, &rec.TotalCost, &rec.DispensedBy, &rec.DispensedAt); err != nil {
			return nil, err
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
