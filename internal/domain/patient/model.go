package patient

import (
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
)

// Patient maps to the patients table. Patients are never hard-deleted.
type Patient struct {
	ID          uuid.UUID  `db:"id" json:"id"`
	MRN         string     `db:"mrn" json:"mrn"`
	Name        string     `db:"name" json:"name"`
	Phone       string     `db:"phone" json:"phone"`
	Gender      string     `db:"gender" json:"gender,omitempty"`
	DateOfBirth *time.Time `db:"date_of_birth" json:"date_of_birth,omitempty"`
	Address     string     `db:"address" json:"address,omitempty"`
	IsDeleted   bool       `db:"is_deleted" json:"is_deleted"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

var validGenders = map[string]bool{"": true, "male": true, "female": true, "other": true, "unknown": true}

// NormalizePhone keeps only the digits of a phone number.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Matches reports whether p collides with a registration for name and phone.
// A joint name and phone match implies a phone match, so the phone number is
// the deciding key and a shared name alone never matches.
func (p *Patient) Matches(name, phone string) bool {
	want := NormalizePhone(phone)
	return want != "" && !p.IsDeleted && NormalizePhone(p.Phone) == want
}

// DuplicateError is returned by Register when likely duplicates exist and
// the caller did not force creation.
type DuplicateError struct {
	Candidates []*Patient
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("%d existing patient(s) share this phone number", len(e.Candidates))
}

func (e *DuplicateError) Unwrap() error { return apperr.ErrDuplicate }

// ListParams filters patient listings.
type ListParams struct {
	Query  string // matches name, phone or MRN
	Limit  int
	Offset int
}

func formatMRN(n int64) string {
	return fmt.Sprintf("MRN-%06d", n)
}
