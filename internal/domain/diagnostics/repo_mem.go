package diagnostics

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
)

type labTestRepoMem struct {
	tests *memstore.Table[uuid.UUID, LabTest]
}

func NewLabTestRepoMem(store *memstore.Store) LabTestRepository {
	return &labTestRepoMem{tests: memstore.NewTable[uuid.UUID, LabTest](store, nil)}
}

func (r *labTestRepoMem) Create(ctx context.Context, t *LabTest) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	r.tests.Put(ctx, t.ID, *t)
	return nil
}

func (r *labTestRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	t, ok := r.tests.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("lab test", id)
	}
	return &t, nil
}

func (r *labTestRepoMem) GetByCode(ctx context.Context, code string) (*LabTest, error) {
	found := r.tests.Filter(ctx, func(t LabTest) bool { return strings.EqualFold(t.Code, code) }, nil)
	if len(found) == 0 {
		return nil, apperr.NotFound("lab test", code)
	}
	return &found[0], nil
}

func (r *labTestRepoMem) List(ctx context.Context) ([]*LabTest, error) {
	all := r.tests.Filter(ctx, nil, func(a, b LabTest) bool { return a.Code < b.Code })
	out := make([]*LabTest, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

type labRequestRepoMem struct {
	requests *memstore.Table[uuid.UUID, LabRequest]
}

func NewLabRequestRepoMem(store *memstore.Store) LabRequestRepository {
	return &labRequestRepoMem{requests: memstore.NewTable[uuid.UUID, LabRequest](store, nil)}
}

func (r *labRequestRepoMem) Create(ctx context.Context, lr *LabRequest) error {
	lr.ID = uuid.New()
	now := time.Now().UTC()
	lr.CreatedAt, lr.UpdatedAt = now, now
	r.requests.Put(ctx, lr.ID, *lr)
	return nil
}

func (r *labRequestRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*LabRequest, error) {
	lr, ok := r.requests.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("lab request", id)
	}
	return &lr, nil
}

func (r *labRequestRepoMem) Update(ctx context.Context, lr *LabRequest) error {
	lr.UpdatedAt = time.Now().UTC()
	found, err := r.requests.Update(ctx, lr.ID, func(LabRequest) (LabRequest, error) { return *lr, nil })
	if !found {
		return apperr.NotFound("lab request", lr.ID)
	}
	return err
}

func (r *labRequestRepoMem) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabRequest, error) {
	all := r.requests.Filter(ctx, func(lr LabRequest) bool { return lr.VisitID == visitID },
		func(a, b LabRequest) bool { return a.CreatedAt.Before(b.CreatedAt) })
	out := make([]*LabRequest, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}
