package patient

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const patientCols = `id, mrn, name, phone, gender, date_of_birth, address, is_deleted, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	now := time.Now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO patients (id, mrn, name, phone, phone_normalized, gender, date_of_birth, address, is_deleted, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,false,$9,$9)`,
		p.ID, p.MRN, p.Name, p.Phone, NormalizePhone(p.Phone), p.Gender, p.DateOfBirth, p.Address, now)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("patient", id)
	}
	return p, err
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Patient, int, error) {
	q := db.QuerierFrom(ctx, r.pool)
	where := `WHERE NOT is_deleted AND ($1 = '' OR name ILIKE '%' || $1 || '%' OR mrn = $1 OR phone_normalized = $2)`
	query, digits := params.Query, NormalizePhone(params.Query)
	if digits == "" {
		digits = "-"
	}

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients `+where, query, digits).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patients `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		query, digits, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	out, err := collectPatients(rows)
	return out, total, err
}

func (r *repoPG) FindByPhone(ctx context.Context, phone string) ([]*Patient, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+patientCols+` FROM patients WHERE phone_normalized = $1 AND NOT is_deleted ORDER BY created_at`, phone)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectPatients(rows)
}

func (r *repoPG) SoftDelete(ctx context.Context, id uuid.UUID) error {
	tag, err := db.QuerierFrom(ctx, r.pool).Exec(ctx,
		`UPDATE patients SET is_deleted = true, updated_at = NOW() WHERE id = $1 AND NOT is_deleted`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apperr.NotFound("patient", id)
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.Name, &p.Phone, &p.Gender, &p.DateOfBirth, &p.Address, &p.IsDeleted, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func collectPatients(rows pgx.Rows) ([]*Patient, error) {
	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
