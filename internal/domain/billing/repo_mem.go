package billing

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

type invoiceRepoMem struct {
	invoices *memstore.Table[uuid.UUID, Invoice]
}

func NewInvoiceRepoMem(store *memstore.Store) InvoiceRepository {
	return &invoiceRepoMem{invoices: memstore.NewTable[uuid.UUID, Invoice](store, nil)}
}

func (r *invoiceRepoMem) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	r.invoices.Put(ctx, inv.ID, *inv)
	return nil
}

func (r *invoiceRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, ok := r.invoices.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("invoice", id)
	}
	return &inv, nil
}

func (r *invoiceRepoMem) filter(ctx context.Context, keep func(Invoice) bool) []*Invoice {
	all := r.invoices.Filter(ctx, keep, func(a, b Invoice) bool { return a.CreatedAt.Before(b.CreatedAt) })
	out := make([]*Invoice, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out
}

func (r *invoiceRepoMem) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	return r.filter(ctx, func(inv Invoice) bool { return inv.VisitID != nil && *inv.VisitID == visitID }), nil
}

func (r *invoiceRepoMem) ListByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*Invoice, error) {
	return r.filter(ctx, func(inv Invoice) bool { return inv.AdmissionID != nil && *inv.AdmissionID == admissionID }), nil
}

func (r *invoiceRepoMem) List(ctx context.Context, params ListParams) ([]*Invoice, int, error) {
	all := r.filter(ctx, func(inv Invoice) bool {
		if params.PatientID != nil && inv.PatientID != *params.PatientID {
			return false
		}
		return params.Status == "" || inv.Status == params.Status
	})
	// newest first
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return pagination.Window(all, pagination.Params{Limit: params.Limit, Offset: params.Offset}), len(all), nil
}

func (r *invoiceRepoMem) MarkPaid(ctx context.Context, id uuid.UUID, method string, at time.Time) (*Invoice, error) {
	var out Invoice
	found, err := r.invoices.Update(ctx, id, func(inv Invoice) (Invoice, error) {
		if inv.Status != StatusPending {
			return inv, apperr.InvalidState("invoice %s is already paid", id)
		}
		inv.Status = StatusPaid
		inv.PaymentMethod = method
		inv.PaidAt = &at
		inv.UpdatedAt = at
		out = inv
		return inv, nil
	})
	if !found {
		return nil, apperr.NotFound("invoice", id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}
