package inpatient

import (
	"context"

	"github.com/google/uuid"
)

type WardRepository interface {
	Create(ctx context.Context, w *Ward) error
	GetByID(ctx context.Context, id uuid.UUID) (*Ward, error)
	List(ctx context.Context) ([]*Ward, error)
}

type BedRepository interface {
	Create(ctx context.Context, b *Bed) error
	GetByID(ctx context.Context, id uuid.UUID) (*Bed, error)
	// ListByWard lists the beds of a ward, or every bed when wardID is nil.
	ListByWard(ctx context.Context, wardID *uuid.UUID) ([]*Bed, error)
	// SetStatus moves a bed from one status to another only when it is still
	// in from; otherwise it fails with ErrInvalidState.
	SetStatus(ctx context.Context, id uuid.UUID, from, to string) (*Bed, error)
}

type AdmissionRepository interface {
	Create(ctx context.Context, a *Admission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Admission, error)
	// Discharge flips an admitted admission to discharged.
	Discharge(ctx context.Context, a *Admission) error
	List(ctx context.Context, status string) ([]*Admission, error)
	FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error)
}
