package diagnostics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

// =========== Lab Test Repository ===========

type labTestRepoPG struct{ pool *pgxpool.Pool }

func NewLabTestRepoPG(pool *pgxpool.Pool) LabTestRepository { return &labTestRepoPG{pool: pool} }

const testCols = `id, code, name, price, created_at`

func scanTest(row pgx.Row) (*LabTest, error) {
	var t LabTest
	if err := row.Scan(&t.ID, &t.Code, &t.Name, &t.Price, &t.CreatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *labTestRepoPG) Create(ctx context.Context, t *LabTest) error {
	t.ID = uuid.New()
	t.CreatedAt = time.Now().UTC()
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx,
		`INSERT INTO lab_tests (`+testCols+`) VALUES ($1,$2,$3,$4,$5)`,
		t.ID, t.Code, t.Name, t.Price, t.CreatedAt)
	return err
}

func (r *labTestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabTest, error) {
	t, err := scanTest(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM lab_tests WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("lab test", id)
	}
	return t, err
}

func (r *labTestRepoPG) GetByCode(ctx context.Context, code string) (*LabTest, error) {
	t, err := scanTest(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+testCols+` FROM lab_tests WHERE upper(code) = upper($1)`, code))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("lab test", code)
	}
	return t, err
}

func (r *labTestRepoPG) List(ctx context.Context) ([]*LabTest, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx, `SELECT `+testCols+` FROM lab_tests ORDER BY code`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*LabTest
	for rows.Next() {
		t, err := scanTest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// =========== Lab Request Repository ===========

type labRequestRepoPG struct{ pool *pgxpool.Pool }

func NewLabRequestRepoPG(pool *pgxpool.Pool) LabRequestRepository {
	return &labRequestRepoPG{pool: pool}
}

const requestCols = `id, visit_id, patient_id, test_id, test_name, price, status, result,
	requested_by, collected_at, completed_at, created_at, updated_at`

func scanRequest(row pgx.Row) (*LabRequest, error) {
	var lr LabRequest
	err := row.Scan(&lr.ID, &lr.VisitID, &lr.PatientID, &lr.TestID, &lr.TestName, &lr.Price, &lr.Status, &lr.Result,
		&lr.RequestedBy, &lr.CollectedAt, &lr.CompletedAt, &lr.CreatedAt, &lr.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &lr, nil
}

func (r *labRequestRepoPG) Create(ctx context.Context, lr *LabRequest) error {
	lr.ID = uuid.New()
	now := time.Now().UTC()
	lr.CreatedAt, lr.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO lab_requests (`+requestCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$12)`,
		lr.ID, lr.VisitID, lr.PatientID, lr.TestID, lr.TestName, lr.Price, lr.Status, lr.Result,
		lr.RequestedBy, lr.CollectedAt, lr.CompletedAt, now)
	return err
}

func (r *labRequestRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*LabRequest, error) {
	lr, err := scanRequest(db.QuerierFrom(ctx, r.pool).QueryRow(ctx,
		`SELECT `+requestCols+` FROM lab_requests WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("lab request", id)
	}
	return lr, err
}

func (r *labRequestRepoPG) Update(ctx context.Context, lr *LabRequest) error {
	lr.UpdatedAt = time.Now().UTC()
	tag, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		UPDATE lab_requests SET status = $2, result = $3, collected_at = $4, completed_at = $5, updated_at = $6
		WHERE id = $1`,
		lr.ID, lr.Status, lr.Result, lr.CollectedAt, lr.CompletedAt, lr.UpdatedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("lab request", lr.ID)
	}
	return nil
}

func (r *labRequestRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*LabRequest, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+requestCols+` FROM lab_requests WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*LabRequest
	for rows.Next() {
		lr, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lr)
	}
	return out, rows.Err()
}
