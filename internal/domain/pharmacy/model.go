package pharmacy

import (
	"time"

	"github.com/google/uuid"
)

type InventoryItem struct {
	ID           uuid.UUID `db:"id" json:"id"`
	DrugName     string    `db:"drug_name" json:"drug_name"`
	Stock        int       `db:"stock" json:"stock"`
	UnitPrice    float64   `db:"unit_price" json:"unit_price"`
	ReorderLevel int       `db:"reorder_level" json:"reorder_level"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LowStock reports whether the item is at or below its reorder level.
func (i *InventoryItem) LowStock() bool {
	return i.Stock <= i.ReorderLevel
}

// DispenseLine asks for quantity units of one inventory item.
type DispenseLine struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	Quantity        int       `json:"quantity"`
}

type DispenseItem struct {
	InventoryItemID uuid.UUID `json:"inventory_item_id"`
	DrugName        string    `json:"drug_name"`
	Quantity        int       `json:"quantity"`
	UnitPrice       float64   `json:"unit_price"`
	LineTotal       float64   `json:"line_total"`
}

// DispenseRecord is one fulfilment of a visit's prescriptions. Items is stored
// as JSONB.
type DispenseRecord struct {
	ID          uuid.UUID      `db:"id" json:"id"`
	VisitID     uuid.UUID      `db:"visit_id" json:"visit_id"`
	PatientID   uuid.UUID      `db:"patient_id" json:"patient_id"`
	Items       []DispenseItem `db:"items" json:"items"`
	TotalCost   float64        `db:"total_cost" json:"total_cost"`
	DispensedBy string         `db:"dispensed_by" json:"dispensed_by,omitempty"`
	DispensedAt time.Time      `db:"dispensed_at" json:"dispensed_at"`
}
