package inpatient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

// =========== Ward Repository ===========

type wardRepoPG struct{ pool *pgxpool.Pool }

func NewWardRepoPG(pool *pgxpool.Pool) WardRepository { return &wardRepoPG{pool: pool} }

const wardCols = `id, name, department, created_at`

func scanWard(row pgx.Row) (*Ward, error) {
	var w Ward
	if err := row.Scan(&w.ID, &w.Name, &w.Department, &w.CreatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func (r *wardRepoPG) Create(ctx context.Context, w *Ward) error {
	w.ID = uuid.New()
	w.CreatedAt = time.Now().UTC()
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `INSERT INTO wards (`+wardCols+`) VALUES ($1,$2,$3,$4)`,
		w.ID, w.Name, w.Department, w.CreatedAt)
	return err
}

func (r *wardRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Ward, error) {
	w, err := scanWard(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+wardCols+` FROM wards WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("ward", id)
	}
	return w, err
}

func (r *wardRepoPG) List(ctx context.Context) ([]*Ward, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `SELECT `+wardCols+` FROM wards ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Ward
	for rows.Next() {
		w, err := scanWard(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// =========== Bed Repository ===========

type bedRepoPG struct{ pool *pgxpool.Pool }

func NewBedRepoPG(pool *pgxpool.Pool) BedRepository { return &bedRepoPG{pool: pool} }

const bedCols = `id, ward_id, bed_number, status, price_per_day, created_at, updated_at`

func scanBed(row pgx.Row) (*Bed, error) {
	var b Bed
	if err := row.Scan(&b.ID, &b.WardID, &b.BedNumber, &b.Status, &b.PricePerDay, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bedRepoPG) Create(ctx context.Context, b *Bed) error {
	b.ID = uuid.New()
	now := time.Now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `INSERT INTO beds (`+bedCols+`) VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		b.ID, b.WardID, b.BedNumber, b.Status, b.PricePerDay, b.CreatedAt, b.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.InvalidState("bed %s already exists in this ward", b.BedNumber)
	}
	return err
}

func (r *bedRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Bed, error) {
	b, err := scanBed(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+bedCols+` FROM beds WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("bed", id)
	}
	return b, err
}

func (r *bedRepoPG) ListByWard(ctx context.Context, wardID *uuid.UUID) ([]*Bed, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT `+bedCols+` FROM beds
		WHERE ($1::uuid IS NULL OR ward_id = $1)
		ORDER BY ward_id, bed_number`, wardID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Bed
	for rows.Next() {
		b, err := scanBed(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SetStatus is a compare-and-set on the current status.
func (r *bedRepoPG) SetStatus(ctx context.Context, id uuid.UUID, from, to string) (*Bed, error) {
	b, err := scanBed(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `
		UPDATE beds SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
		RETURNING `+bedCols, id, from, to, time.Now().UTC()))
	if db.IsNoRows(err) {
		cur, gerr := r.GetByID(ctx, id)
		if gerr != nil {
			return nil, gerr
		}
		return nil, apperr.InvalidState("bed %s is %s, not %s", cur.BedNumber, cur.Status, from)
	}
	return b, err
}

// =========== Admission Repository ===========

type admissionRepoPG struct{ pool *pgxpool.Pool }

func NewAdmissionRepoPG(pool *pgxpool.Pool) AdmissionRepository { return &admissionRepoPG{pool: pool} }

const admissionCols = `id, patient_id, patient_name, patient_phone, visit_id, ward_id, bed_id, reason, status,
	admitted_at, discharged_at, invoice_id, created_at, updated_at`

func scanAdmission(row pgx.Row) (*Admission, error) {
	var a Admission
	err := row.Scan(&a.ID, &a.PatientID, &a.PatientName, &a.PatientPhone, &a.VisitID, &a.WardID, &a.BedID, &a.Reason, &a.Status,
		&a.AdmittedAt, &a.DischargedAt, &a.InvoiceID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *admissionRepoPG) Create(ctx context.Context, a *Admission) error {
	a.ID = uuid.New()
	now := time.Now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.AdmittedAt.IsZero() {
		a.AdmittedAt = now
	}
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO admissions (`+admissionCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		a.ID, a.PatientID, a.PatientName, a.PatientPhone, a.VisitID, a.WardID, a.BedID, a.Reason, a.Status,
		a.AdmittedAt, a.DischargedAt, a.InvoiceID, a.CreatedAt, a.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.InvalidState("patient %s is already admitted", a.PatientID)
	}
	return err
}

func (r *admissionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+admissionCols+` FROM admissions WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("admission", id)
	}
	return a, err
}

func (r *admissionRepoPG) Discharge(ctx context.Context, a *Admission) error {
	a.UpdatedAt = time.Now().UTC()
	tag, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		UPDATE admissions SET status = $2, discharged_at = $3, invoice_id = $4, updated_at = $5
		WHERE id = $1 AND status = 'admitted'`,
		a.ID, AdmissionDischarged, a.DischargedAt, a.InvoiceID, a.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("admission %s is not admitted", a.ID)
	}
	a.Status = AdmissionDischarged
	return nil
}

func (r *admissionRepoPG) List(ctx context.Context, status string) ([]*Admission, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT `+admissionCols+` FROM admissions
		WHERE ($1 = '' OR status = $1)
		ORDER BY admitted_at DESC`, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*Admission
	for rows.Next() {
		a, err := scanAdmission(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *admissionRepoPG) FindActiveByPatient(ctx context.Context, patientID uuid.UUID) (*Admission, error) {
	a, err := scanAdmission(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `
		SELECT `+admissionCols+` FROM admissions WHERE patient_id = $1 AND status = 'admitted'`, patientID))
	if db.IsNoRows(err) {
		return nil, nil
	}
	return a, err
}
