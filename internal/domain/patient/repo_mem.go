package patient

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

type repoMem struct {
	patients *memstore.Table[uuid.UUID, Patient]
}

// NewMemRepo keeps patients in store.
func NewMemRepo(store *memstore.Store) Repository {
	return &repoMem{patients: memstore.NewTable[uuid.UUID, Patient](store, clonePatient)}
}

func clonePatient(p Patient) Patient {
	if p.DateOfBirth != nil {
		dob := *p.DateOfBirth
		p.DateOfBirth = &dob
	}
	return p
}

func (r *repoMem) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	r.patients.Put(ctx, p.ID, *p)
	return nil
}

func (r *repoMem) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, ok := r.patients.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("patient", id)
	}
	return &p, nil
}

func (r *repoMem) List(ctx context.Context, params ListParams) ([]*Patient, int, error) {
	q := strings.ToLower(strings.TrimSpace(params.Query))
	digits := NormalizePhone(q)
	all := r.patients.Filter(ctx, func(p Patient) bool {
		if p.IsDeleted {
			return false
		}
		return q == "" ||
			strings.Contains(strings.ToLower(p.Name), q) ||
			strings.EqualFold(p.MRN, q) ||
			(digits != "" && NormalizePhone(p.Phone) == digits)
	}, func(a, b Patient) bool { return a.CreatedAt.After(b.CreatedAt) })

	page := pagination.Window(all, pagination.Params{Limit: params.Limit, Offset: params.Offset})
	out := make([]*Patient, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, len(all), nil
}

func (r *repoMem) FindByPhone(ctx context.Context, phone string) ([]*Patient, error) {
	matches := r.patients.Filter(ctx, func(p Patient) bool {
		return !p.IsDeleted && NormalizePhone(p.Phone) == phone
	}, func(a, b Patient) bool { return a.CreatedAt.Before(b.CreatedAt) })
	out := make([]*Patient, len(matches))
	for i := range matches {
		out[i] = &matches[i]
	}
	return out, nil
}

func (r *repoMem) SoftDelete(ctx context.Context, id uuid.UUID) error {
	found, err := r.patients.Update(ctx, id, func(p Patient) (Patient, error) {
		if p.IsDeleted {
			return p, apperr.NotFound("patient", id)
		}
		p.IsDeleted = true
		p.UpdatedAt = time.Now().UTC()
		return p, nil
	})
	if !found {
		return apperr.NotFound("patient", id)
	}
	return err
}
