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

type ReceiptRepository interface {
	// CreateIssued inserts the receipt and flips the payment's issued flag
	// in one transaction. The unique index on receipts.payment_id makes a
	// concurrent double-issue surface as domain.ErrAlreadyIssued.
	CreateIssued(ctx context.Context, receipt *domain.Receipt) error
	GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Receipt, error)
	// ListUnflagged returns receipts whose payment still has
	// receipt_issued = false — the crash window between the two writes.
	ListUnflagged(ctx context.Context) ([]*domain.Receipt, error)
	// ReapplyFlag re-applies only the payment flag update for one receipt.
	ReapplyFlag(ctx context.Context, receipt *domain.Receipt) error
}

type receiptRepo struct {
	db *pgxpool.Pool
}

func NewReceiptRepository(db *pgxpool.Pool) ReceiptRepository {
	return &receiptRepo{db: db}
}

func (r *receiptRepo) CreateIssued(ctx context.Context, receipt *domain.Receipt) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO receipts (
			company_id, payment_id, external_id, local_code, fiscal_code,
			amount, status, view_url, pdf_url, issued_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at
	`

	err = tx.QueryRow(ctx, insert,
		receipt.CompanyID,
		receipt.PaymentID,
		receipt.ExternalID,
		receipt.LocalCode,
		receipt.FiscalCode,
		receipt.Amount,
		receipt.Status,
		receipt.ViewURL,
		receipt.PDFURL,
		receipt.IssuedAt,
	).Scan(&receipt.ID, &receipt.CreatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("payment %d: %w", receipt.PaymentID, domain.ErrAlreadyIssued)
		}
		return fmt.Errorf("failed to create receipt: %w", err)
	}

	update := `
		UPDATE payments SET receipt_issued = true, receipt_id = $1
		WHERE id = $2 AND receipt_issued = false
	`
	tag, err := tx.Exec(ctx, update, receipt.ID, receipt.PaymentID)
	if err != nil {
		return fmt.Errorf("failed to flag payment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Payment vanished or was flagged by someone else; the insert
		// above would have hit the unique index in the latter case, so
		// treat this as a conflict and roll everything back.
		return fmt.Errorf("payment %d: %w", receipt.PaymentID, domain.ErrPersistenceConflict)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit receipt: %w", err)
	}
	return nil
}

const receiptColumns = `
	id, company_id, payment_id, external_id, COALESCE(local_code, ''),
	COALESCE(fiscal_code, ''), amount, status,
	COALESCE(view_url, ''), COALESCE(pdf_url, ''), issued_at, created_at`

func scanReceipt(row pgx.Row) (*domain.Receipt, error) {
	var rc domain.Receipt
	err := row.Scan(
		&rc.ID,
		&rc.CompanyID,
		&rc.PaymentID,
		&rc.ExternalID,
		&rc.LocalCode,
		&rc.FiscalCode,
		&rc.Amount,
		&rc.Status,
		&rc.ViewURL,
		&rc.PDFURL,
		&rc.IssuedAt,
		&rc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rc, nil
}

func (r *receiptRepo) GetByPaymentID(ctx context.Context, paymentID int64) (*domain.Receipt, error) {
	query := `SELECT ` + receiptColumns + ` FROM receipts WHERE payment_id = $1`

	receipt, err := scanReceipt(r.db.QueryRow(ctx, query, paymentID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("receipt for payment %d: %w", paymentID, domain.ErrPaymentNotFound)
		}
		return nil, fmt.Errorf("failed to get receipt: %w", err)
	}
	return receipt, nil
}

func (r *receiptRepo) ListUnflagged(ctx context.Context) ([]*domain.Receipt, error) {
	query := `
		SELECT ` + receiptColumns + `
		FROM receipts r
		WHERE EXISTS (
			SELECT 1 FROM payments p
			WHERE p.id = r.payment_id AND p.receipt_issued = false
		)
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list unflagged receipts: %w", err)
	}
	defer rows.Close()

	var receipts []*domain.Receipt
	for rows.Next() {
		rc, err := scanReceipt(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan receipt: %w", err)
		}
		receipts = append(receipts, rc)
	}
	return receipts, rows.Err()
}

func (r *receiptRepo) ReapplyFlag(ctx context.Context, receipt *domain.Receipt) error {
	query := `
		UPDATE payments SET receipt_issued = true, receipt_id = $1
		WHERE id = $2 AND receipt_issued = false
	`
	if _, err := r.db.Exec(ctx, query, receipt.ID, receipt.PaymentID); err != nil {
		return fmt.Errorf("failed to reapply issued flag: %w", err)
	}
	return nil
}
