package billing

import (
	"time"

	"github.com/google/uuid"
)

const (
	BillRegistration = "Registration"
	BillConsultation = "Consultation"
	BillPharmacy     = "Pharmacy"
	BillLab          = "Lab"
	BillIPD          = "IPD Bill"
)

var validBillTypes = map[string]bool{
	BillRegistration: true, BillConsultation: true, BillPharmacy: true, BillLab: true, BillIPD: true,
}

const (
	StatusPending = "pending"
	StatusPaid    = "paid"
)

const (
	MethodCash = "Cash"
	MethodCard = "Card"
)

// Invoice belongs to exactly one visit or one admission. Amount never changes
// after issue.
type Invoice struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	Number        string     `db:"number" json:"number"`
	VisitID       *uuid.UUID `db:"visit_id" json:"visit_id,omitempty"`
	AdmissionID   *uuid.UUID `db:"admission_id" json:"admission_id,omitempty"`
	PatientID     uuid.UUID  `db:"patient_id" json:"patient_id"`
	BillType      string     `db:"bill_type" json:"bill_type"`
	Amount        float64    `db:"amount" json:"amount"`
	Status        string     `db:"status" json:"status"`
	PaymentMethod string     `db:"payment_method" json:"payment_method,omitempty"`
	PaidAt        *time.Time `db:"paid_at" json:"paid_at,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Summary totals the invoices of one visit.
type Summary struct {
	VisitID     uuid.UUID  `json:"visit_id"`
	Invoices    []*Invoice `json:"invoices"`
	Total       float64    `json:"total"`
	Paid        float64    `json:"paid"`
	Outstanding float64    `json:"outstanding"`
}

func summarize(visitID uuid.UUID, invoices []*Invoice) *Summary {
	s := &Summary{VisitID: visitID, Invoices: invoices}
	if s.Invoices == nil {
		s.Invoices = []*Invoice{}
	}
	for _, inv := range invoices {
		s.Total += inv.Amount
		if inv.Status == StatusPaid {
			s.Paid += inv.Amount
		}
	}
	s.Outstanding = s.Total - s.Paid
	return s
}

type ListParams struct {
	PatientID *uuid.UUID
	Status    string
	Limit     int
	Offset    int
}
