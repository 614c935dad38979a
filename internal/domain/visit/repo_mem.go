package visit

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/memstore"
	"github.com/imakhan79/Hospital-Management-System-sub000/pkg/pagination"
)

type visitRepoMem struct {
	visits *memstore.Table[uuid.UUID, Visit]
	// history rows per visit, in insertion order
	history *memstore.Table[uuid.UUID, []StatusChange]
}

func NewVisitRepoMem(store *memstore.Store) Repository {
	return &visitRepoMem{
		visits: memstore.NewTable[uuid.UUID, Visit](store, cloneVisit),
		history: memstore.NewTable[uuid.UUID, []StatusChange](store, func(rows []StatusChange) []StatusChange {
			return append([]StatusChange(nil), rows...)
		}),
	}
}

func cloneVisit(v Visit) Visit {
	if v.DoctorID != nil {
		id := *v.DoctorID
		v.DoctorID = &id
	}
	return v
}

func toPtrs(list []Visit) []*Visit {
	out := make([]*Visit, len(list))
	for i := range list {
		out[i] = &list[i]
	}
	return out
}

func (r *visitRepoMem) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	v.VersionID = 1
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.UpdatedAt = v.CreatedAt
	r.visits.Put(ctx, v.ID, *v)
	return nil
}

func (r *visitRepoMem) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, ok := r.visits.Get(ctx, id)
	if !ok {
		return nil, apperr.NotFound("visit", id)
	}
	return &v, nil
}

func (r *visitRepoMem) Update(ctx context.Context, v *Visit) error {
	found, err := r.visits.Update(ctx, v.ID, func(cur Visit) (Visit, error) {
		if cur.VersionID != v.VersionID {
			return cur, apperr.Conflict("visit", v.ID)
		}
		next := *v
		next.VersionID++
		return next, nil
	})
	if !found {
		return apperr.NotFound("visit", v.ID)
	}
	if err != nil {
		return err
	}
	v.VersionID++
	return nil
}

func (r *visitRepoMem) List(ctx context.Context, params ListParams) ([]*Visit, int, error) {
	all := r.visits.Filter(ctx, func(v Visit) bool {
		if params.Status != "" && v.Status != params.Status {
			return false
		}
		if params.Department != "" && !strings.EqualFold(v.Department, params.Department) {
			return false
		}
		return params.PatientID == nil || v.PatientID == *params.PatientID
	}, func(a, b Visit) bool { return a.CreatedAt.After(b.CreatedAt) })
	return toPtrs(pagination.Window(all, pagination.Params{Limit: params.Limit, Offset: params.Offset})), len(all), nil
}

func (r *visitRepoMem) ListWaiting(ctx context.Context, department string, doctorID *uuid.UUID) ([]*Visit, error) {
	return toPtrs(r.visits.Filter(ctx, func(v Visit) bool {
		if v.Status != StatusWaitingQueue || v.QueueToken == "" || !strings.EqualFold(v.Department, department) {
			return false
		}
		return doctorID == nil || (v.DoctorID != nil && *v.DoctorID == *doctorID)
	}, nil)), nil
}

func (r *visitRepoMem) FindActive(ctx context.Context, patientID uuid.UUID, department string) ([]*Visit, error) {
	return toPtrs(r.visits.Filter(ctx, func(v Visit) bool {
		return v.PatientID == patientID && strings.EqualFold(v.Department, department) && IsActive(v.Status)
	}, nil)), nil
}

func (r *visitRepoMem) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	sc.ID = uuid.New()
	r.history.Upsert(ctx, sc.VisitID, func(rows []StatusChange, _ bool) []StatusChange {
		return append(rows, *sc)
	})
	return nil
}

func (r *visitRepoMem) ListStatusChanges(ctx context.Context, visitID uuid.UUID) ([]*StatusChange, error) {
	rows, _ := r.history.Get(ctx, visitID)
	out := make([]*StatusChange, len(rows))
	for i := range rows {
		out[i] = &rows[i]
	}
	return out, nil
}

type recordRepoMem struct {
	vitals        *memstore.Table[uuid.UUID, VitalsRecord]
	consultations *memstore.Table[uuid.UUID, ConsultationRecord]
}

func NewRecordRepoMem(store *memstore.Store) RecordRepository {
	return &recordRepoMem{
		vitals:        memstore.NewTable[uuid.UUID, VitalsRecord](store, nil),
		consultations: memstore.NewTable[uuid.UUID, ConsultationRecord](store, cloneConsultation),
	}
}

func cloneConsultation(c ConsultationRecord) ConsultationRecord {
	c.Prescriptions = append([]Prescription(nil), c.Prescriptions...)
	c.LabTestIDs = append([]uuid.UUID(nil), c.LabTestIDs...)
	return c
}

func (r *recordRepoMem) AddVitals(ctx context.Context, v *VitalsRecord) error {
	v.ID = uuid.New()
	v.RecordedAt = time.Now().UTC()
	r.vitals.Put(ctx, v.ID, *v)
	return nil
}

func (r *recordRepoMem) ListVitals(ctx context.Context, visitID uuid.UUID) ([]*VitalsRecord, error) {
	all := r.vitals.Filter(ctx, func(v VitalsRecord) bool { return v.VisitID == visitID },
		func(a, b VitalsRecord) bool { return a.RecordedAt.Before(b.RecordedAt) })
	out := make([]*VitalsRecord, len(all))
	for i := range all {
		out[i] = &all[i]
	}
	return out, nil
}

// consultations are keyed by visit id; one per visit
func (r *recordRepoMem) CreateConsultation(ctx context.Context, c *ConsultationRecord) error {
	if _, exists := r.consultations.Get(ctx, c.VisitID); exists {
		return apperr.InvalidState("visit %s already has a consultation", c.VisitID)
	}
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	r.consultations.Put(ctx, c.VisitID, *c)
	return nil
}

func (r *recordRepoMem) GetConsultation(ctx context.Context, visitID uuid.UUID) (*ConsultationRecord, error) {
	c, ok := r.consultations.Get(ctx, visitID)
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (r *recordRepoMem) MarkDispensed(ctx context.Context, consultationID uuid.UUID) error {
	found := r.consultations.Filter(ctx, func(c ConsultationRecord) bool { return c.ID == consultationID }, nil)
	if len(found) == 0 {
		return apperr.NotFound("consultation", consultationID)
	}
	_, err := r.consultations.Update(ctx, found[0].VisitID, func(c ConsultationRecord) (ConsultationRecord, error) {
		if c.Dispensed {
			return c, apperr.InvalidState("consultation %s is already dispensed", consultationID)
		}
		c.Dispensed = true
		c.UpdatedAt = time.Now().UTC()
		return c, nil
	})
	return err
}
