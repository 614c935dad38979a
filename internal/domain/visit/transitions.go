package visit

import (
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/diagnostics"
)

// transitionMap lists the legal status moves. Post-consultation statuses move
// among each other as satellite records change.
var transitionMap = map[string][]string{
	StatusBooked:                {StatusCheckedIn, StatusCancelled},
	StatusCheckedIn:             {StatusVitalsPending, StatusVitalsCompleted, StatusCancelled},
	StatusVitalsPending:         {StatusVitalsCompleted, StatusCancelled},
	StatusVitalsCompleted:       {StatusWaitingQueue, StatusCancelled},
	StatusWaitingQueue:          {StatusCalled, StatusCancelled},
	StatusCalled:                {StatusInConsultation},
	StatusInConsultation:        {StatusConsultationCompleted},
	StatusConsultationCompleted: {StatusOrdersPending, StatusPharmacyPending, StatusBillingPending, StatusPaid},
	StatusOrdersPending:         {StatusPharmacyPending, StatusBillingPending, StatusPaid},
	StatusPharmacyPending:       {StatusOrdersPending, StatusBillingPending, StatusPaid},
	StatusBillingPending:        {StatusOrdersPending, StatusPharmacyPending, StatusPaid},
	StatusPaid:                  {StatusOrdersPending, StatusPharmacyPending, StatusBillingPending, StatusClosed},
	StatusCancelled:             {StatusCheckedIn},
	StatusClosed:                {},
}

// CanTransition reports whether a visit may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitionMap[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a visit still counts against the one active visit
// per department rule.
func IsActive(status string) bool {
	switch status {
	case StatusClosed, StatusCancelled, StatusPaid:
		return false
	}
	return true
}

// postConsultation is the set of statuses derived from satellite records.
func postConsultation(status string) bool {
	switch status {
	case StatusConsultationCompleted, StatusOrdersPending, StatusPharmacyPending, StatusBillingPending, StatusPaid:
		return true
	}
	return false
}

// DeriveStatus picks the post-consultation status: open labs first, then
// undispensed prescriptions, then unpaid invoices.
func DeriveStatus(labsOpen, pharmacyOpen, invoicesOpen bool) string {
	switch {
	case labsOpen:
		return StatusOrdersPending
	case pharmacyOpen:
		return StatusPharmacyPending
	case invoicesOpen:
		return StatusBillingPending
	default:
		return StatusPaid
	}
}

// Next step labels.
const (
	StepCheckIn            = "Check-in Patient"
	StepRecordVitals       = "Record Vitals"
	StepAssignQueue        = "Assign Queue"
	StepGoToConsultation   = "Go to Consultation"
	StepFinishConsultation = "Finish Consultation"
	StepProcessLabs        = "Process Lab Orders"
	StepDispense           = "Dispense Medicines"
	StepCollectPayment     = "Collect Payment"
	StepCloseVisit         = "Close Visit & Print Report"
	StepViewDashboard      = "View Dashboard"
)

// CalculateNextStep names the action the visit needs next. The stored status
// decides the early steps; after the consultation the satellite records
// decide, in clinical order.
func CalculateNextStep(v *Visit, labs []*diagnostics.LabRequest, c *ConsultationRecord, invoices []*billing.Invoice) string {
	switch {
	case v.Status == StatusBooked || v.Status == StatusCancelled:
		return StepCheckIn
	case v.Status == StatusCheckedIn || v.Status == StatusVitalsPending:
		return StepRecordVitals
	case v.Status == StatusVitalsCompleted || (v.Status == StatusWaitingQueue && v.QueueToken == ""):
		return StepAssignQueue
	case v.Status == StatusWaitingQueue || v.Status == StatusCalled:
		return StepGoToConsultation
	case v.Status == StatusInConsultation:
		return StepFinishConsultation
	}
	for _, lr := range labs {
		if lr.Open() {
			return StepProcessLabs
		}
	}
	if c.AwaitingPharmacy() {
		return StepDispense
	}
	for _, inv := range invoices {
		if inv.Status == billing.StatusPending {
			return StepCollectPayment
		}
	}
	if v.Status == StatusPaid {
		return StepCloseVisit
	}
	return StepViewDashboard
}
