package inpatient

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/billing"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/domain/patient"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/notification"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/websocket"
)

type PatientLookup interface {
	GetActive(ctx context.Context, id uuid.UUID) (*patient.Patient, error)
}

type Publisher interface {
	Publish(ctx context.Context, ev websocket.Event) error
}

type Notifier interface {
	Notify(ctx context.Context, templateID, recipient string, data map[string]string) (*notification.Notification, error)
}

type Metrics interface {
	BedCount(ward, status string, n int)
	Notification(template string, err error)
}

// Deps wires a Service. Events, Notifier and Metrics are optional.
type Deps struct {
	Wards        WardRepository
	Beds         BedRepository
	Admissions   AdmissionRepository
	Patients     PatientLookup
	Billing      *billing.Service
	Tx           db.Transactor
	Events       Publisher
	Notifier     Notifier
	Metrics      Metrics
	Logger       zerolog.Logger
	OtherCharges float64
}

// Service runs the inpatient track: wards, beds, admissions and discharge.
type Service struct {
	wards        WardRepository
	beds         BedRepository
	admissions   AdmissionRepository
	patients     PatientLookup
	billing      *billing.Service
	tx           db.Transactor
	events       Publisher
	notifier     Notifier
	metrics      Metrics
	logger       zerolog.Logger
	otherCharges float64
	now          func() time.Time
}

func NewService(d Deps) *Service {
	return &Service{
		wards:        d.Wards,
		beds:         d.Beds,
		admissions:   d.Admissions,
		patients:     d.Patients,
		billing:      d.Billing,
		tx:           d.Tx,
		events:       d.Events,
		notifier:     d.Notifier,
		metrics:      d.Metrics,
		logger:       d.Logger,
		otherCharges: d.OtherCharges,
		now:          time.Now,
	}
}

func (s *Service) CreateWard(ctx context.Context, w *Ward) error {
	w.Name = strings.TrimSpace(w.Name)
	if w.Name == "" {
		return apperr.Validation("name is required")
	}
	return s.wards.Create(ctx, w)
}

func (s *Service) ListWards(ctx context.Context) ([]*Ward, error) {
	return s.wards.List(ctx)
}

// CreateBed adds an available bed to a ward.
func (s *Service) CreateBed(ctx context.Context, b *Bed) error {
	b.BedNumber = strings.TrimSpace(b.BedNumber)
	if b.BedNumber == "" {
		return apperr.Validation("bed_number is required")
	}
	if b.PricePerDay < 0 {
		return apperr.Validation("price_per_day must not be negative")
	}
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.wards.GetByID(ctx, b.WardID); err != nil {
			return err
		}
		existing, err := s.beds.ListByWard(ctx, &b.WardID)
		if err != nil {
			return err
		}
		for _, e := range existing {
			if strings.EqualFold(e.BedNumber, b.BedNumber) {
				return apperr.InvalidState("bed %s already exists in this ward", b.BedNumber)
			}
		}
		b.Status = BedAvailable
		return s.beds.Create(ctx, b)
	})
	if err != nil {
		return err
	}
	s.bedChanged(ctx, b)
	return nil
}

func (s *Service) GetBed(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.beds.GetByID(ctx, id)
}

func (s *Service) ListBeds(ctx context.Context, wardID *uuid.UUID) ([]*Bed, error) {
	return s.beds.ListByWard(ctx, wardID)
}

type AdmitRequest struct {
	PatientID uuid.UUID  `json:"patient_id"`
	BedID     uuid.UUID  `json:"bed_id"`
	VisitID   *uuid.UUID `json:"visit_id,omitempty"`
	Reason    string     `json:"reason,omitempty"`
}

// Admit puts a patient in an available bed. The bed is claimed with a
// compare-and-set so two admissions cannot share it.
func (s *Service) Admit(ctx context.Context, req AdmitRequest) (*Admission, error) {
	if req.PatientID == uuid.Nil || req.BedID == uuid.Nil {
		return nil, apperr.Validation("patient_id and bed_id are required")
	}
	var (
		a   *Admission
		bed *Bed
	)
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		p, err := s.patients.GetActive(ctx, req.PatientID)
		if err != nil {
			return err
		}
		active, err := s.admissions.FindActiveByPatient(ctx, p.ID)
		if err != nil {
			return err
		}
		if active != nil {
			return apperr.InvalidState("patient %s is already admitted", p.MRN)
		}
		if bed, err = s.beds.SetStatus(ctx, req.BedID, BedAvailable, BedOccupied); err != nil {
			return err
		}
		a = &Admission{
			PatientID:    p.ID,
			PatientName:  p.Name,
			PatientPhone: p.Phone,
			VisitID:      req.VisitID,
			WardID:       bed.WardID,
			BedID:        bed.ID,
			Reason:       strings.TrimSpace(req.Reason),
			Status:       AdmissionAdmitted,
			AdmittedAt:   s.now().UTC(),
		}
		return s.admissions.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.bedChanged(ctx, bed)
	return a, nil
}

func (s *Service) GetAdmission(ctx context.Context, id uuid.UUID) (*Admission, error) {
	return s.admissions.GetByID(ctx, id)
}

func (s *Service) ListAdmissions(ctx context.Context, status string) ([]*Admission, error) {
	return s.admissions.List(ctx, status)
}

// DischargeSummary prices an admission as of now without changing anything.
// A discharged admission is priced at its discharge time.
func (s *Service) DischargeSummary(ctx context.Context, id uuid.UUID) (*DischargeSummary, error) {
	var sum *DischargeSummary
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.admissions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		at := s.now().UTC()
		if a.DischargedAt != nil {
			at = *a.DischargedAt
		}
		sum, err = s.summarize(ctx, a, at)
		return err
	})
	return sum, err
}

func (s *Service) summarize(ctx context.Context, a *Admission, at time.Time) (*DischargeSummary, error) {
	bed, err := s.beds.GetByID(ctx, a.BedID)
	if err != nil {
		return nil, err
	}
	ward, err := s.wards.GetByID(ctx, a.WardID)
	if err != nil {
		return nil, err
	}
	return CalculateDischargeSummary(a, bed, ward, at, s.otherCharges), nil
}

// Discharge is the outcome of FinalizeDischarge.
type Discharge struct {
	Admission *Admission        `json:"admission"`
	Summary   *DischargeSummary `json:"summary"`
	Invoice   *billing.Invoice  `json:"invoice"`
}

// FinalizeDischarge discharges the patient, sends the bed to cleaning and
// raises the IPD bill for the grand total, all or nothing. It cannot be
// undone.
func (s *Service) FinalizeDischarge(ctx context.Context, id uuid.UUID) (*Discharge, error) {
	out := &Discharge{}
	var bed *Bed
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		a, err := s.admissions.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if a.Status != AdmissionAdmitted {
			return apperr.InvalidState("admission %s is already discharged", a.ID)
		}
		now := s.now().UTC()
		if out.Summary, err = s.summarize(ctx, a, now); err != nil {
			return err
		}
		if bed, err = s.beds.SetStatus(ctx, a.BedID, BedOccupied, BedCleaning); err != nil {
			return err
		}
		admissionID := a.ID
		out.Invoice = &billing.Invoice{
			AdmissionID: &admissionID,
			PatientID:   a.PatientID,
			BillType:    billing.BillIPD,
			Amount:      out.Summary.GrandTotal,
		}
		if err := s.billing.Issue(ctx, out.Invoice); err != nil {
			return err
		}
		a.DischargedAt = &now
		a.InvoiceID = &out.Invoice.ID
		if err := s.admissions.Discharge(ctx, a); err != nil {
			return err
		}
		out.Admission = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.bedChanged(ctx, bed)
	s.notify(ctx, notification.TemplateDischargeBill, out.Admission.PatientPhone, map[string]string{
		"patient_name": out.Admission.PatientName,
		"days":         fmt.Sprint(out.Summary.TotalDays),
		"amount":       fmt.Sprintf("%.2f", out.Summary.GrandTotal),
	})
	return out, nil
}

// MarkBedClean returns a cleaned bed to service.
func (s *Service) MarkBedClean(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.moveBed(ctx, id, BedCleaning, BedAvailable)
}

func (s *Service) SetBedMaintenance(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.moveBed(ctx, id, BedAvailable, BedMaintenance)
}

func (s *Service) ReleaseBedFromMaintenance(ctx context.Context, id uuid.UUID) (*Bed, error) {
	return s.moveBed(ctx, id, BedMaintenance, BedAvailable)
}

func (s *Service) moveBed(ctx context.Context, id uuid.UUID, from, to string) (*Bed, error) {
	if !CanMoveBed(from, to) {
		return nil, apperr.InvalidState("bed cannot move from %s to %s", from, to)
	}
	b, err := s.beds.SetStatus(ctx, id, from, to)
	if err != nil {
		return nil, err
	}
	s.bedChanged(ctx, b)
	return b, nil
}

// Census counts beds by status for every ward.
func (s *Service) Census(ctx context.Context) ([]*WardCensus, error) {
	var out []*WardCensus
	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		wards, err := s.wards.List(ctx)
		if err != nil {
			return err
		}
		beds, err := s.beds.ListByWard(ctx, nil)
		if err != nil {
			return err
		}
		byWard := make(map[uuid.UUID]*WardCensus, len(wards))
		for _, w := range wards {
			c := newCensus(w)
			byWard[w.ID] = c
			out = append(out, c)
		}
		for _, b := range beds {
			if c, ok := byWard[b.WardID]; ok {
				c.Total++
				c.ByStatus[b.Status]++
			}
		}
		return nil
	})
	return out, err
}

func newCensus(w *Ward) *WardCensus {
	c := &WardCensus{WardID: w.ID, WardName: w.Name, ByStatus: make(map[string]int, len(BedStatuses))}
	for _, st := range BedStatuses {
		c.ByStatus[st] = 0
	}
	return c
}

// bedChanged refreshes the ward's bed gauges and announces the bed on the
// ward topic. Failures are logged.
func (s *Service) bedChanged(ctx context.Context, b *Bed) {
	if b == nil {
		return
	}
	if s.metrics != nil {
		ward, err := s.wards.GetByID(ctx, b.WardID)
		if err == nil {
			var beds []*Bed
			if beds, err = s.beds.ListByWard(ctx, &b.WardID); err == nil {
				c := newCensus(ward)
				for _, wb := range beds {
					c.ByStatus[wb.Status]++
				}
				for st, n := range c.ByStatus {
					s.metrics.BedCount(ward.Name, st, n)
				}
			}
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("bed_id", b.ID.String()).Msg("refresh bed gauges")
		}
	}
	if s.events != nil {
		topic := websocket.WardTopic(b.WardID.String())
		ev, err := websocket.NewEvent("bed.status", topic, b.ID.String(), b)
		if err == nil {
			err = s.events.Publish(ctx, ev)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("topic", topic).Msg("publish bed event")
		}
	}
}

func (s *Service) notify(ctx context.Context, template, recipient string, data map[string]string) {
	if s.notifier == nil || recipient == "" {
		return
	}
	_, err := s.notifier.Notify(ctx, template, recipient, data)
	if s.metrics != nil {
		s.metrics.Notification(template, err)
	}
	if err != nil {
		s.logger.Warn().Err(err).Str("template", template).Msg("patient notification failed")
	}
}
