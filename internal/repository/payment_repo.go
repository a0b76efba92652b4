package repository

import (
	"context"
	"errors"
	"fmt"

	"fiscal-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// uniqueViolation is the postgres error code backing both dedup invariants:
// payments(company_id, external_id) and receipts(payment_id).
const uniqueViolation = "23505"

type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	GetByID(ctx context.Context, id int64) (*domain.Payment, error)
	GetByExternalID(ctx context.Context, companyID int64, externalID string) (*domain.Payment, error)
	ListByCompany(ctx context.Context, companyID int64, limit int) ([]*domain.Payment, error)
}

type paymentRepo struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) PaymentRepository {
	return &paymentRepo{db: db}
}

// Create inserts a new payment. A duplicate (company_id, external_id) from
// a concurrent ingestion surfaces as domain.ErrPersistenceConflict; the
// pipeline counts it as a duplicate, the index is the source of truth.
func (r *paymentRepo) Create(ctx context.Context, payment *domain.Payment) error {
	if err := payment.Validate(); err != nil {
		return err
	}

	query := `
		INSERT INTO payments (
			company_id, external_id, amount, currency, description,
			sender_account, sender_name, sender_tax_id, document_number,
			paid_at, is_target, receipt_issued
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, false)
		RETURNING id, created_at
	`

	err := r.db.QueryRow(ctx, query,
		payment.CompanyID,
		payment.ExternalID,
		payment.Amount,
		payment.Currency,
		payment.Description,
		payment.SenderAccount,
		payment.SenderName,
		payment.SenderTaxID,
		payment.DocumentNumber,
		payment.PaidAt,
		payment.IsTarget,
	).Scan(&payment.ID, &payment.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("payment %s: %w", payment.ExternalID, domain.ErrPersistenceConflict)
		}
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

const paymentColumns = `
	id, company_id, external_id, amount, currency,
	COALESCE(description, ''), COALESCE(sender_account, ''), COALESCE(sender_name, ''),
	COALESCE(sender_tax_id, ''), COALESCE(document_number, ''),
	paid_at, is_target, receipt_issued, receipt_id, created_at`

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(
		&p.ID,
		&p.CompanyID,
		&p.ExternalID,
		&p.Amount,
		&p.Currency,
		&p.Description,
		&p.SenderAccount,
		&p.SenderName,
		&p.SenderTaxID,
		&p.DocumentNumber,
		&p.PaidAt,
		&p.IsTarget,
		&p.ReceiptIssued,
		&p.ReceiptID,
		&p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *paymentRepo) GetByID(ctx context.Context, id int64) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %d: %w", id, domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepo) GetByExternalID(ctx context.Context, companyID int64, externalID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE company_id = $1 AND external_id = $2`

	payment, err := scanPayment(r.db.QueryRow(ctx, query, companyID, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment %s: %w", externalID, domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return payment, nil
}

func (r *paymentRepo) ListByCompany(ctx context.Context, companyID int64, limit int) ([]*domain.Payment, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT ` + paymentColumns + ` FROM payments
		WHERE company_id = $1 ORDER BY paid_at DESC LIMIT $2`

	rows, err := r.db.Query(ctx, query, companyID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer rows.Close()

	var payments []*domain.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
