package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/apperr"
	"github.com/imakhan79/Hospital-Management-System-sub000/internal/platform/db"
)

type invoiceRepoPG struct{ pool *pgxpool.Pool }

func NewInvoiceRepoPG(pool *pgxpool.Pool) InvoiceRepository { return &invoiceRepoPG{pool: pool} }

const invCols = `id, number, visit_id, admission_id, patient_id, bill_type, amount, status,
	payment_method, paid_at, created_at, updated_at`

func scanInvoice(row pgx.Row) (*Invoice, error) {
	var inv Invoice
	var method *string
	err := row.Scan(&inv.ID, &inv.Number, &inv.VisitID, &inv.AdmissionID, &inv.PatientID, &inv.BillType, &inv.Amount, &inv.Status,
		&method, &inv.PaidAt, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if method != nil {
		inv.PaymentMethod = *method
	}
	return &inv, nil
}

func collectInvoices(rows pgx.Rows) ([]*Invoice, error) {
	defer rows.Close()
	var out []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, inv)
	}
	return out, rows.Err()
}

func (r *invoiceRepoPG) Create(ctx context.Context, inv *Invoice) error {
	inv.ID = uuid.New()
	now := time.Now().UTC()
	inv.CreatedAt, inv.UpdatedAt = now, now
	_, err := db.QuerierFrom(ctx, r.pool).Exec(ctx, `
		INSERT INTO invoices (id, number, visit_id, admission_id, patient_id, bill_type, amount, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$9)`,
		inv.ID, inv.Number, inv.VisitID, inv.AdmissionID, inv.PatientID, inv.BillType, inv.Amount, inv.Status, now)
	return err
}

func (r *invoiceRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Invoice, error) {
	inv, err := scanInvoice(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `SELECT `+invCols+` FROM invoices WHERE id = $1`, id))
	if db.IsNoRows(err) {
		return nil, apperr.NotFound("invoice", id)
	}
	return inv, err
}

func (r *invoiceRepoPG) ListByVisit(ctx context.Context, visitID uuid.UUID) ([]*Invoice, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+invCols+` FROM invoices WHERE visit_id = $1 ORDER BY created_at`, visitID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *invoiceRepoPG) ListByAdmission(ctx context.Context, admissionID uuid.UUID) ([]*Invoice, error) {
	rows, err := db.QuerierFrom(ctx, r.pool).Query(ctx,
		`SELECT `+invCols+` FROM invoices WHERE admission_id = $1 ORDER BY created_at`, admissionID)
	if err != nil {
		return nil, err
	}
	return collectInvoices(rows)
}

func (r *invoiceRepoPG) List(ctx context.Context, params ListParams) ([]*Invoice, int, error) {
	q := db.QuerierFrom(ctx, r.pool)
	where := `WHERE ($1::uuid IS NULL OR patient_id = $1) AND ($2 = '' OR status = $2)`

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM invoices `+where, params.PatientID, params.Status).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := q.Query(ctx, `SELECT `+invCols+` FROM invoices `+where+` ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		params.PatientID, params.Status, params.Limit, params.Offset)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectInvoices(rows)
	return out, total, err
}

func (r *invoiceRepoPG) MarkPaid(ctx context.Context, id uuid.UUID, method string, at time.Time) (*Invoice, error) {
	inv, err := scanInvoice(db.QuerierFrom(ctx, r.pool).QueryRow(ctx, `
		UPDATE invoices SET status = 'paid', payment_method = $2, paid_at = $3, updated_at = $3
		WHERE id = $1 AND status = 'pending'
		RETURNING `+invCols, id, method, at))
	if !db.IsNoRows(err) {
		return inv, err
	}
	if _, err := r.GetByID(ctx, id); err != nil {
		return nil, err
	}
	return nil, apperr.InvalidState("invoice %s is already paid", id)
}
