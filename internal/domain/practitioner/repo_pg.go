package practitioner

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

const doctorCols = `id, name, department, consultation_fee, active, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	now := time.Now().UTC()
	d.CreatedAt, d.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO doctors (`+doctorCols+`) VALUES ($1,$2,$3,$4,$5,$6,$6)`,
		d.ID, d.Name, d.Department, d.ConsultationFee, d.Active, now)
	return err
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("doctor", id)
	}
	return d, err
}

func (r *repoPG) List(ctx context.Context, params ListParams) ([]*Doctor, int, error) {
	q := db.QuerierFrom(ctx, r.pool)
	where := `WHERE ($1 = '' OR lower(department) = lower($1)) AND (NOT $2 OR active)`

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM doctors `+where, params.Department, params.ActiveOnly).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+doctorCols+` FROM doctors `+where+` ORDER BY name LIMIT $3 OFFSET $4`,
		params.Department, params.ActiveOnly, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	if err := row.Scan(&d.ID, &d.Name, &d.Department, &d.ConsultationFee, &d.Active, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	return &d, nil
}
