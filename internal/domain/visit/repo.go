package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// Update writes v if its VersionID still matches the stored row, then
	// bumps v.VersionID. A mismatch yields ErrConflict.
	Update(ctx context.Context, v *Visit) error
	List(ctx context.Context, params ListParams) ([]*Visit, int, error)
	// ListWaiting returns visits of a department in waiting-queue that hold a
	// token, optionally narrowed to one doctor. Order is unspecified.
	ListWaiting(ctx context.Context, department string, doctorID *uuid.UUID) ([]*Visit, error)
	// FindActive returns the patient's visits in department whose status is
	// still active.
	FindActive(ctx context.Context, patientID uuid.UUID, department string) ([]*Visit, error)

	AddStatusChange(ctx context.Context, sc *StatusChange) error
	ListStatusChanges(ctx context.Context, visitID uuid.UUID) ([]*StatusChange, error)
}

type RecordRepository interface {
	AddVitals(ctx context.Context, v *VitalsRecord) error
	ListVitals(ctx context.Context, visitID uuid.UUID) ([]*VitalsRecord, error)

	CreateConsultation(ctx context.Context, c *ConsultationRecord) error
	// GetConsultation returns nil, nil when the visit has none.
	GetConsultation(ctx context.Context, visitID uuid.UUID) (*ConsultationRecord, error)
	MarkDispensed(ctx context.Context, consultationID uuid.UUID) error
}
