package practitioner

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
	doctors *memstore.Table[uuid.UUID, Doctor]
}

func NewMemRepo(store *memstore.Store) Repository {
	return &repoMem{doctors: memstore.NewTable[uuid.UUID, Doctor](store, nil)}
}

func (r *repoMem) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	r.doctors.Put(ctx, d.ID, *d)
	return nil
}

func (r *repoMem) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := r.doctors.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("doctor", id)
	}
	return &d, nil
}

func (r *repoMem) List(ctx context.Context, params ListParams) ([]*Doctor, int, error) {
	all := r.doctors.Filter(ctx, func(d Doctor) bool {
		if params.Department != "" && !strings.EqualFold(d.Department, params.Department) {
			return false
		}
		return !params.ActiveOnly || d.Active
	}, func(a, b Doctor) bool { return a.Name < b.Name })

	page := pagination.Window(all, pagination.Params{Limit: params.Limit, Offset: params.Offset})
	out := make([]*Doctor, len(page))
	for i := range page {
		out[i] = &page[i]
	}
	return out, len(all), nil
}
