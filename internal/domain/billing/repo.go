package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type InvoiceRepository interface {
	Create(ctx context.Context, inv *Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error)
	ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error)
	ListByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*Invoice, error)
	List(ctx context.Context, params ListParams) ([]*Invoice, int, error)
	// MarkPaid flips a pending invoice to paid. A paid invoice yields
	// ErrInvalidState.
	MarkPaid(ctx context.Context, id uuid.UUID, method string, at time.Time) (*Invoice, error)
}
