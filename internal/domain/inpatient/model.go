package inpatient

import (
	"math"
	"time"

	"github.com/google/uuid"
)

const (
	BedAvailable   = "available"
	BedOccupied    = "occupied"
	BedMaintenance = "maintenance"
	BedCleaning    = "cleaning"
)

// BedStatuses lists every bed status in census order.
var BedStatuses = []string{BedAvailable, BedOccupied, BedCleaning, BedMaintenance}

var bedTransitions = map[string][]string{
	BedAvailable:   {BedOccupied, BedMaintenance},
	BedOccupied:    {BedCleaning},
	BedCleaning:    {BedAvailable},
	BedMaintenance: {BedAvailable},
}

// CanMoveBed reports whether a bed may go from one status to another.
func CanMoveBed(from, to string) bool {
	for _, s := range bedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

const (
	AdmissionAdmitted   = "admitted"
	AdmissionDischarged = "discharged"
)

type Ward struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Name       string    `db:"name" json:"name"`
	Department string    `db:"department" json:"department,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

type Bed struct {
	ID          uuid.UUID `db:"id" json:"id"`
	WardID      uuid.UUID `db:"ward_id" json:"ward_id"`
	BedNumber   string    `db:"bed_number" json:"bed_number"`
	Status      string    `db:"status" json:"status"`
	PricePerDay float64   `db:"price_per_day" json:"price_per_day"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

type Admission struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	PatientID    uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName  string     `db:"patient_name" json:"patient_name"`
	PatientPhone string     `db:"patient_phone" json:"-"`
	VisitID      *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	WardID       uuid.UUID  `db:"ward_id" json:"ward_id"`
	BedID        uuid.UUID  `db:"bed_id" json:"bed_id"`
	Reason       string     `db:"reason" json:"reason,omitempty"`
	Status       string     `db:"status" json:"status"`
	AdmittedAt   time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	InvoiceID    *uuid.UUID `db:"invoice_id" json:"invoice_id,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// DischargeSummary is the bill preview for an admission, computed on read.
type DischargeSummary struct {
	AdmissionID     uuid.UUID `json:"admission_id"`
	PatientID       uuid.UUID `json:"patient_id"`
	PatientName     string    `json:"patient_name"`
	WardName        string    `json:"ward_name"`
	BedNumber       string    `json:"bed_number"`
	AdmittedAt      time.Time `json:"admitted_at"`
	DischargeAt     time.Time `json:"discharge_at"`
	TotalDays       int       `json:"total_days"`
	PricePerDay     float64   `json:"price_per_day"`
	TotalBedCharges float64   `json:"total_bed_charges"`
	OtherCharges    float64   `json:"other_charges"`
	GrandTotal      float64   `json:"grand_total"`
}

// BilledDays counts started days between admission and now, at least one.
func BilledDays(admittedAt, now time.Time) int {
	d := now.Sub(admittedAt)
	if d < 0 {
		d = -d
	}
	days := int(math.Ceil(d.Hours() / 24))
	if days < 1 {
		days = 1
	}
	return days
}

// CalculateDischargeSummary prices an admission as of now.
func CalculateDischargeSummary(a *Admission, bed *Bed, ward *Ward, now time.Time, otherCharges float64) *DischargeSummary {
	days := BilledDays(a.AdmittedAt, now)
	bedCharges := float64(days) * bed.PricePerDay
	return &DischargeSummary{
		AdmissionID:     a.ID,
		PatientID:       a.PatientID,
		PatientName:     a.PatientName,
		WardName:        ward.Name,
		BedNumber:       bed.BedNumber,
		AdmittedAt:      a.AdmittedAt,
		DischargeAt:     now,
		TotalDays:       days,
		PricePerDay:     bed.PricePerDay,
		TotalBedCharges: bedCharges,
		OtherCharges:    otherCharges,
		GrandTotal:      bedCharges + otherCharges,
	}
}

// WardCensus counts a ward's beds by status.
type WardCensus struct {
	WardID   uuid.UUID      `json:"ward_id"`
	WardName string         `json:"ward_name"`
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}
