package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/sequence"
)

type Service struct {
	invoices InvoiceRepository
	seq      sequence.Generator
	now      func() time.Time
}

func NewService(invoices InvoiceRepository, seq sequence.Generator) *Service {
	return &Service{invoices: invoices, seq: seq, now: time.Now}
}

// Issue validates and stores a new pending invoice with the next number of
// the day, INV-yyyymmdd-NNNN.
func (s *Service) Issue(ctx context.Context, inv *Invoice) error {
	if !validBillTypes[inv.BillType] {
		return apperr.Validation("invalid bill type: %s", inv.BillType)
	}
	if inv.Amount < 0 {
		return apperr.Validation("amount must not be negative")
	}
	if (inv.VisitID == nil) == (inv.AdmissionID == nil) {
		return apperr.Validation("invoice needs exactly one of visit_id or admission_id")
	}

	day := s.now().UTC()
	n, err := s.seq.Next(ctx, sequence.DailyScope("invoice", "all", day))
	if err != nil {
		return err
	}
	inv.Number = fmt.Sprintf("INV-%s-%04d", day.Format("20060102"), n)
	inv.Status = StatusPending
	inv.PaymentMethod = ""
	inv.PaidAt = nil
	return s.invoices.Create(ctx, inv)
}

// Pay settles a pending invoice. Callers that need the owning visit to follow
// wrap this in their own transaction.
func (s *Service) Pay(ctx context.Context, id uuid.UUID, method string) (*Invoice, error) {
	if method != MethodCash && method != MethodCard {
		return nil, apperr.Validation("payment method must be %s or %s", MethodCash, MethodCard)
	}
	return s.invoices.MarkPaid(ctx, id, method, s.now().UTC())
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	return s.invoices.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, params ListParams) ([]*Invoice, int, error) {
	return s.invoices.List(ctx, params)
}

func (s *Service) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	return s.invoices.ListByVisit(ctx, visitID)
}

func (s *Service) ListByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*Invoice, error) {
	return s.invoices.ListByAdmission(ctx, admissionID)
}

// HasPending reports whether the visit has an unpaid invoice.
func (s *Service) HasPending(ctx context.Context, visitID uuid.UUID) (bool, error) {
	list, err := s.invoices.ListByVisit(ctx, visitID)
	if err != nil {
		return false, err
	}
	for _, inv := range list {
		if inv.Status == StatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) Summary(ctx context.Context, visitID uuid.UUID) (*Summary, error) {
	list, err := s.invoices.ListByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	return summarize(visitID, list), nil
}
