package visit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

// =========== Visit Repository ===========

type visitRepoPG struct{ pool *pgxpool.Pool }

func NewVisitRepoPG(pool *pgxpool.Pool) Repository { return &visitRepoPG{pool: pool} }

const visitCols = `id, visit_number, patient_id, patient_name, patient_phone, department, doctor_id, doctor_name,
	visit_date, visit_time, visit_type, reason_for_visit, priority, status, queue_token, queue_sequence,
	version_id, created_at, updated_at`

func scanVisit(row pgx.Row) (*Visit, error) {
	var v Visit
	err := row.Scan(&v.ID, &v.VisitNumber, &v.PatientID, &v.PatientName, &v.PatientPhone, &v.Department, &v.DoctorID, &v.DoctorName,
		&v.Date, &v.Time, &v.Type, &v.ReasonForVisit, &v.Priority, &v.Status, &v.QueueToken, &v.QueueSequence,
		&v.VersionID, &v.CreatedAt, &v.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func collectVisits(rows pgx.Rows) ([]*Visit, error) {
	defer rows.Close()
	var out []*Visit
	for rows.Next() {
		v, err := scanVisit(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *visitRepoPG) Create(ctx context.Context, v *Visit) error {
	v.ID = uuid.New()
	v.VersionID = 1
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	v.UpdatedAt = v.CreatedAt
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO visits (`+visitCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		v.ID, v.VisitNumber, v.PatientID, v.PatientName, v.PatientPhone, v.Department, v.DoctorID, v.DoctorName,
		v.Date, v.Time, v.Type, v.ReasonForVisit, v.Priority, v.Status, v.QueueToken, v.QueueSequence,
		v.VersionID, v.CreatedAt, v.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.InvalidState("patient already has an active visit in %s", v.Department)
	}
	return err
}

func (r *visitRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Visit, error) {
	v, err := scanVisit(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+visitCols+` FROM visits WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("visit", id)
	}
	return v, err
}

func (r *visitRepoPG) Update(ctx context.Context, v *Visit) error {
	tag, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		UPDATE visits SET status = $3, queue_token = $4, queue_sequence = $5, doctor_id = $6, doctor_name = $7,
			priority = $8, updated_at = $9, version_id = version_id + 1
		WHERE id = $1 AND version_id = $2`,
		v.ID, v.VersionID, v.Status, v.QueueToken, v.QueueSequence, v.DoctorID, v.DoctorName, v.Priority, v.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return apperr.InvalidState("patient already has an active visit in %s", v.Department)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, v.ID); err != nil {
			return err
		}
		return apperr.Conflict("visit", v.ID)
	}
	v.VersionID++
	return nil
}

func (r *visitRepoPG) List(ctx context.Context, params ListParams) ([]*Visit, int, error) {
	q := db.QuerierFrom(ctx, r.pool)
	where := `WHERE ($1 = '' OR status = $1) AND ($2 = '' OR lower(department) = lower($2)) AND ($3::uuid IS NULL OR patient_id = $3)`

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM visits `+where, params.Status, params.Department, params.PatientID).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+visitCols+` FROM visits `+where+` ORDER BY created_at DESC LIMIT $4 OFFSET $5`,
		params.Status, params.Department, params.PatientID, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectVisits(rows)
	return out, total, err
}

func (r *visitRepoPG) ListWaiting(ctx context.Context, department string, doctorID *uuid.UUID) ([]*Visit, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT `+visitCols+` FROM visits
		WHERE status = 'waiting-queue' AND queue_token <> '' AND lower(department) = lower($1)
			AND ($2::uuid IS NULL OR doctor_id = $2)`, department, doctorID)
	if err != nil {
		return nil, err
	}
	return collectVisits(rows)
}

func (r *visitRepoPG) FindActive(ctx context.Context, patientID uuid.UUID, department string) ([]*Visit, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT `+visitCols+` FROM visits
		WHERE patient_id = $1 AND lower(department) = lower($2) AND status NOT IN ('closed', 'cancelled', 'paid')`,
		patientID, department)
	if err != nil {
		return nil, err
	}
	return collectVisits(rows)
}

func (r *visitRepoPG) AddStatusChange(ctx context.Context, sc *StatusChange) error {
	sc.ID = uuid.New()
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO visit_status_history (id, visit_id, from_status, to_status, actor, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		sc.ID, sc.VisitID, sc.FromStatus, sc.ToStatus, sc.Actor, sc.ChangedAt)
	return err
}

func (r *visitRepoPG) ListStatusChanges(ctx context.Context, visitID uuid.UUID) ([]*StatusChange, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT id, visit_id, from_status, to_status, actor, changed_at
		FROM visit_status_history WHERE visit_id = $1 ORDER BY changed_at, seq`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*StatusChange
	for rows.Next() {
		var sc StatusChange
		if err := rows.Scan(&sc.ID, &sc.VisitID, &sc.FromStatus, &sc.ToStatus, &sc.Actor, &sc.ChangedAt); err != nil {
			return nil, err
		}
		out = append(out, &sc)
	}
	return out, rows.Err()
}

// =========== Clinical Record Repository ===========

type recordRepoPG struct{ pool *pgxpool.Pool }

func NewRecordRepoPG(pool *pgxpool.Pool) RecordRepository { return &recordRepoPG{pool: pool} }

func (r *recordRepoPG) AddVitals(ctx context.Context, v *VitalsRecord) error {
	v.ID = uuid.New()
	v.RecordedAt = time.Now().UTC()
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO vitals (id, visit_id, patient_id, blood_pressure, pulse, temperature, respiratory_rate,
			spo2, weight, height, recorded_by, recorded_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		v.ID, v.VisitID, v.PatientID, v.BloodPressure, v.Pulse, v.Temperature, v.RespiratoryRate,
		v.SpO2, v.Weight, v.Height, v.RecordedBy, v.RecordedAt)
	return err
}

func (r *recordRepoPG) ListVitals(ctx context.Context, visitID uuid.UUID) ([]*VitalsRecord, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `
		SELECT id, visit_id, patient_id, blood_pressure, pulse, temperature, respiratory_rate,
			spo2, weight, height, recorded_by, recorded_at
		FROM vitals WHERE visit_id = $1 ORDER BY recorded_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*VitalsRecord
	for rows.Next() {
		var v VitalsRecord
		if err := rows.Scan(&v.ID, &v.VisitID, &v.PatientID, &v.BloodPressure, &v.Pulse, &v.Temperature, &v.RespiratoryRate,
			&v.SpO2, &v.Weight, &v.Height, &v.RecordedBy, &v.RecordedAt); err != nil {
			return nil, err
		}
		out = append(out, &v)
	}
	return out, rows.Err()
}

const consultCols = `id, visit_id, patient_id, doctor_name, diagnosis, notes, prescriptions, lab_test_ids,
	disposition, dispensed, created_at, updated_at`

func (r *recordRepoPG) CreateConsultation(ctx context.Context, c *ConsultationRecord) error {
	c.ID = uuid.New()
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO consultations (`+consultCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$11)`,
		c.ID, c.VisitID, c.PatientID, c.DoctorName, c.Diagnosis, c.Notes, c.Prescriptions, c.LabTestIDs,
		c.Disposition, c.Dispensed, now)
	return err
}

func (r *recordRepoPG) GetConsultation(ctx context.Context, visitID uuid.UUID) (*ConsultationRecord, error) {
	var c ConsultationRecord
	err := db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+consultCols+` FROM consultations WHERE visit_id = $1`, visitID).
		Scan(&c.ID, &c.VisitID, &c.PatientID, &c.DoctorName, &c.Diagnosis, &c.Notes, &c.Prescriptions, &c.LabTestIDs,
			&c.Disposition, &c.Dispensed, &c.CreatedAt, &c.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *recordRepoPG) MarkDispensed(ctx context.Context, consultationID uuid.UUID) error {
	tag, err := db.QuerierFrom(ctx, r.pool).Exec(ctx,
		`UPDATE consultations SET dispensed = true, updated_at = NOW() WHERE id = $1 AND NOT dispensed`, consultationID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.InvalidState("consultation %s is already dispensed", consultationID)
	}
	return nil
}
