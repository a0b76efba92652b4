package repository

import (
	"context"
	"errors"
	"fmt"

	"fiscal-service/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type CompanyRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Company, error)
	List(ctx context.Context) ([]*domain.Company, error)
}

type companyRepo struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) CompanyRepository {
	return &companyRepo{db: db}
}

const companyColumns = `
	id, name, tax_id,
	COALESCE(merchant_id, ''), COALESCE(bank_token_enc, ''),
	COALESCE(fiscal_license_enc, ''), COALESCE(fiscal_cashier_login, ''), COALESCE(fiscal_pin_enc, ''),
	created_at, updated_at`

func scanCompany(row pgx.Row) (*domain.Company, error) {
	var c domain.Company
	err := row.Scan(
		&c.ID,
		&c.Name,
		&c.TaxID,
		&c.MerchantID,
		&c.BankTokenEnc,
		&c.FiscalLicenseEnc,
		&c.FiscalCashierLogin,
		&c.FiscalPINEnc,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *companyRepo) GetByID(ctx context.Context, id int64) (*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies WHERE id = $1`

	company, err := scanCompany(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("company %d: %w", id, domain.ErrCompanyNotFound)
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return company, nil
}

func (r *companyRepo) List(ctx context.Context) ([]*domain.Company, error) {
	query := `SELECT ` + companyColumns + ` FROM companies ORDER BY id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []*domain.Company
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	return companies, rows.Err()
}
