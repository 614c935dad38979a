package inpatient

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
)

func ptrs[T any](list []T) []*T {
	out := make([]*T, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}

type wardRepoMem struct {
	wards *memstore.Table[uuid.UUID, Ward]
}

func NewWardRepoMem(store *memstore.Store) WardRepository {
	return &wardRepoMem{wards: memstore.NewTable[uuid.UUID, Ward](store, nil)}
}

func (r *wardRepoMem) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now().UTC()
	r.wards.Put(ctx, w.ID, *w)
	return nil
}

func (r *wardRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	w, ok := r.wards.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("ward", id)
	}
	return &w, nil
}

func (r *wardRepoMem) List(ctx context.Context) ([]*Ward, error) {
	return ptrs(r.wards.Filter(ctx, nil, func(a, b Ward) bool { return a.Name < b.Name })), nil
}

type bedRepoMem struct {
	beds *memstore.Table[uuid.UUID, Bed]
}

func NewBedRepoMem(store *memstore.Store) BedRepository {
	return &bedRepoMem{beds: memstore.NewTable[uuid.UUID, Bed](store, nil)}
}

func (r *bedRepoMem) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	r.beds.Put(ctx, b.ID, *b)
	return nil
}

func (r *bedRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	b, ok := r.beds.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("bed", id)
	}
	return &b, nil
}

func (r *bedRepoMem) ListByWard(ctx context.Context, wardID *uuid.UUID) ([]*Bed, error) {
	return ptrs(r.beds.Filter(ctx, func(b Bed) bool {
		return wardID == nil || b.WardID == *wardID
	}, func(a, b Bed) bool { return a.BedNumber < b.BedNumber })), nil
}

func (r *bedRepoMem) SetStatus(ctx context.Context, id uuid.UUID, from, to string) (*Bed, error) {
	var out Bed
	found, err := r.beds.Update(ctx, id, func(b Bed) (Bed, error) {
		if b.Status != from {
			return b, apperr.InvalidState("bed %s is %s, not %s", b.BedNumber, b.Status, from)
		}
		b.Status = to
		b.UpdatedAt = time.Now().UTC()
		out = b
		return b, nil
	})
	if !found {
		return nil, apperr.NotFound("bed", id)
	}
	if err != nil {
		return nil, err
	}
	return &out, nil
}

type admissionRepoMem struct {
	admissions *memstore.Table[uuid.UUID, Admission]
}

func NewAdmissionRepoMem(store *memstore.Store) AdmissionRepository {
	return &admissionRepoMem{admissions: memstore.NewTable[uuid.UUID, Admission](store, nil)}
}

func (r *admissionRepoMem) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.AdmittedAt.IsZero() {
		a.AdmittedAt = now
	}
	r.admissions.Put(ctx, a.ID, *a)
	return nil
}

func (r *admissionRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, ok := r.admissions.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("admission", id)
	}
	return &a, nil
}

func (r *admissionRepoMem) Discharge(ctx context.Context, a *Admission) error {
	a.UpdatedAt = time.Now().UTC()
	found, err := r.admissions.Update(ctx, a.ID, func(cur Admission) (Admission, error) {
		if cur.Status != AdmissionAdmitted {
			return cur, apperr.InvalidState("admission %s is not admitted", a.ID)
		}
		cur.Status = AdmissionDischarged
		cur.DischargedAt = a.DischargedAt
		cur.InvoiceID = a.InvoiceID
		cur.UpdatedAt = a.UpdatedAt
		return cur, nil
	})
	if !found {
		return apperr.NotFound("admission", a.ID)
	}
	if err != nil {
		return err
	}
	a.Status = AdmissionDischarged
	return nil
}

func (r *admissionRepoMem) List(ctx context.Context, status string) ([]*Admission, error) {
	return ptrs(r.admissions.Filter(ctx, func(a Admission) bool {
		return status == "" || a.Status == status
	}, func(a, b Admission) bool { return a.AdmittedAt.After(b.AdmittedAt) })), nil
}

func (r *admissionRepoMem) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	found := r.admissions.Filter(ctx, func(a Admission) bool {
		return a.PatientID == patientID && a.Status == AdmissionAdmitted
	}, nil)
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}
