package practitioner

import (
	"time"

	"github.com/google/uuid"
)

// Doctor is a consulting practitioner. ConsultationFee of zero means the
// facility default applies.
type Doctor struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	Department      string    `db:"department" json:"department"`
	ConsultationFee float64   `db:"consultation_fee" json:"consultation_fee"`
	Active          bool      `db:"active" json:"active"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

type ListParams struct {
	Department string
	ActiveOnly bool
	Limit      int
	Offset     int
}
