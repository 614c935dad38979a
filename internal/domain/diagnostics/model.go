package diagnostics

import (
	"time"

	"github.com/google/uuid"
)

// LabTest is a catalog entry that can be ordered during a consultation.
type LabTest struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Price     float64   `db:"price" json:"price"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

const (
	StatusPending         = "pending"
	StatusSampleCollected = "sample-collected"
	StatusCompleted       = "completed"
)

// labTransitions lists the forward moves of a LabRequest.
var labTransitions = map[string][]string{
	StatusPending:         {StatusSampleCollected, StatusCompleted},
	StatusSampleCollected: {StatusCompleted},
	StatusCompleted:       {},
}

// ValidateTransition reports whether a request may move from one status to another.
func ValidateTransition(from, to string) bool {
	for _, s := range labTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// LabRequest is one ordered test for one visit. The test name and price are
// copied from the catalog when ordered.
type LabRequest struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	VisitID     uuid.UUID  `db:"visit_id" json:"visit_id"`
	PatientID   uuid.UUID  `db:"patient_id" json:"patient_id"`
	TestID      uuid.UUID  `db:"test_id" json:"test_id"`
	TestName    string     `db:"test_name" json:"test_name"`
	Price       float64    `db:"price" json:"price"`
	Status      string     `db:"status" json:"status"`
	Result      string     `db:"result" json:"result,omitempty"`
	RequestedBy string     `db:"requested_by" json:"requested_by,omitempty"`
	CollectedAt *time.Time `db:"collected_at" json:"collected_at,omitempty"`
	CompletedAt *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Open reports whether the request still blocks the visit.
func (r *LabRequest) Open() bool {
	return r.Status != StatusCompleted
}
