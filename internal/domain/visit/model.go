package visit

import (
	"time"

	"github.com/google/uuid"
)

// Visit statuses.
const (
	StatusBooked                = "booked"
	StatusCheckedIn             = "checked-in"
	StatusVitalsPending         = "vitals-pending"
	StatusVitalsCompleted       = "vitals-completed"
	StatusWaitingQueue          = "waiting-queue"
	StatusCalled                = "called"
	StatusInConsultation        = "in-consultation"
	StatusConsultationCompleted = "consultation-completed"
	StatusOrdersPending         = "orders-pending"
	StatusPharmacyPending       = "pharmacy-pending"
	StatusBillingPending        = "billing-pending"
	StatusPaid                  = "paid"
	StatusClosed                = "closed"
	StatusCancelled             = "cancelled"
)

const (
	TypeOnline = "online"
	TypeWalkIn = "walk-in"
)

const (
	PriorityRoutine   = "routine"
	PriorityUrgent    = "urgent"
	PriorityEmergency = "emergency"
)

var priorityRank = map[string]int{PriorityEmergency: 0, PriorityUrgent: 1, PriorityRoutine: 2}

const (
	DispositionCompleted = "completed"
	DispositionAdmitted  = "admitted"
	DispositionReferred  = "referred"
)

var validDispositions = map[string]bool{DispositionCompleted: true, DispositionAdmitted: true, DispositionReferred: true}

// Visit is one outpatient encounter. VersionID increases with every write and
// guards against lost updates.
type Visit struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	VisitNumber    string     `db:"visit_number" json:"visit_number"`
	PatientID      uuid.UUID  `db:"patient_id" json:"patient_id"`
	PatientName    string     `db:"patient_name" json:"patient_name"`
	PatientPhone   string     `db:"patient_phone" json:"patient_phone"`
	Department     string     `db:"department" json:"department"`
	DoctorID       *uuid.UUID `db:"doctor_id" json:"doctor_id,omitempty"`
	DoctorName     string     `db:"doctor_name" json:"doctor_name,omitempty"`
	Date           time.Time  `db:"visit_date" json:"date"`
	Time           string     `db:"visit_time" json:"time,omitempty"`
	Type           string     `db:"visit_type" json:"type"`
	ReasonForVisit string     `db:"reason_for_visit" json:"reason_for_visit,omitempty"`
	Priority       string     `db:"priority" json:"priority"`
	Status         string     `db:"status" json:"status"`
	QueueToken     string     `db:"queue_token" json:"queue_token,omitempty"`
	QueueSequence  int64      `db:"queue_sequence" json:"queue_sequence,omitempty"`
	VersionID      int        `db:"version_id" json:"version_id"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// StatusChange is one row of a visit's status history.
type StatusChange struct {
	ID         uuid.UUID `db:"id" json:"id"`
	VisitID    uuid.UUID `db:"visit_id" json:"visit_id"`
	FromStatus string    `db:"from_status" json:"from_status"`
	ToStatus   string    `db:"to_status" json:"to_status"`
	Actor      string    `db:"actor" json:"actor"`
	ChangedAt  time.Time `db:"changed_at" json:"changed_at"`
}

// VitalsRecord is immutable; a visit may collect several.
type VitalsRecord struct {
	ID              uuid.UUID `db:"id" json:"id"`
	VisitID         uuid.UUID `db:"visit_id" json:"visit_id"`
	PatientID       uuid.UUID `db:"patient_id" json:"patient_id"`
	BloodPressure   string    `db:"blood_pressure" json:"blood_pressure,omitempty"`
	Pulse           *int      `db:"pulse" json:"pulse,omitempty"`
	Temperature     *float64  `db:"temperature" json:"temperature,omitempty"`
	RespiratoryRate *int      `db:"respiratory_rate" json:"respiratory_rate,omitempty"`
	SpO2            *int      `db:"spo2" json:"spo2,omitempty"`
	Weight          *float64  `db:"weight" json:"weight,omitempty"`
	Height          *float64  `db:"height" json:"height,omitempty"`
	RecordedBy      string    `db:"recorded_by" json:"recorded_by,omitempty"`
	RecordedAt      time.Time `db:"recorded_at" json:"recorded_at"`
}

func (v *VitalsRecord) empty() bool {
	return v.BloodPressure == "" && v.Pulse == nil && v.Temperature == nil && v.RespiratoryRate == nil &&
		v.SpO2 == nil && v.Weight == nil && v.Height == nil
}

type Prescription struct {
	DrugName        string     `json:"drug_name"`
	Dosage          string     `json:"dosage,omitempty"`
	Frequency       string     `json:"frequency,omitempty"`
	Duration        string     `json:"duration,omitempty"`
	Quantity        int        `json:"quantity,omitempty"`
	InventoryItemID *uuid.UUID `json:"inventory_item_id,omitempty"`
}

// ConsultationRecord is written once per visit when the doctor finishes.
// Prescriptions and LabTestIDs are stored as JSONB.
type ConsultationRecord struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	VisitID       uuid.UUID      `db:"visit_id" json:"visit_id"`
	PatientID     uuid.UUID      `db:"patient_id" json:"patient_id"`
	DoctorName    string         `db:"doctor_name" json:"doctor_name,omitempty"`
	Diagnosis     string         `db:"diagnosis" json:"diagnosis"`
	Notes         string         `db:"notes" json:"notes,omitempty"`
	Prescriptions []Prescription `db:"prescriptions" json:"prescriptions"`
	LabTestIDs    []uuid.UUID    `db:"lab_test_ids" json:"lab_test_ids"`
	Disposition   string         `db:"disposition" json:"disposition"`
	Dispensed     bool           `db:"dispensed" json:"dispensed"`
	CreatedAt     time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at" json:"updated_at"`
}

// AwaitingPharmacy reports whether the prescriptions still need dispensing.
func (c *ConsultationRecord) AwaitingPharmacy() bool {
	return c != nil && !c.Dispensed && len(c.Prescriptions) > 0
}

type ListParams struct {
	Status     string
	Department string
	PatientID  *uuid.UUID
	Limit      int
	Offset     int
}

// QueuePosition is a visit's place in its department queue.
type QueuePosition struct {
	VisitID              uuid.UUID `json:"visit_id"`
	QueueToken           string    `json:"queue_token"`
	Department           string    `json:"department"`
	Position             int       `json:"position"`
	Ahead                int       `json:"ahead"`
	EstimatedWaitMinutes int       `json:"estimated_wait_minutes"`
}
