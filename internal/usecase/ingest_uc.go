package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fiscal-service/internal/classifier"
	"fiscal-service/internal/domain"
	"fiscal-service/internal/provider/bank"
	"fiscal-service/internal/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// defaultCurrency is assumed when the bank omits the currency code; all
// amounts are already in the tenant's settlement currency.
const defaultCurrency = "UAH"

var (
	ingestTransactions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ingest_transactions_total",
			Help: "Ingested bank transactions by outcome",
		},
		[]string{"outcome"},
	)

	ingestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ingest_duration_seconds",
			Help:    "Duration of ingestion runs",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// BankClient lists a merchant's transactions for a date range.
type BankClient interface {
	ListTransactions(ctx context.Context, merchantID, token string, from, to time.Time) ([]bank.Transaction, error)
}

// CredentialDecrypter is the slice of the vault ingestion needs.
type CredentialDecrypter interface {
	Decrypt(ciphertext string) (string, error)
}

// IngestUsecase fetches a tenant's bank transactions, normalizes them into
// payments, deduplicates against the store and persists the new ones.
type IngestUsecase struct {
	companyRepo repository.CompanyRepository
	paymentRepo repository.PaymentRepository
	bankClient  BankClient
	vault       CredentialDecrypter
	classifier  *classifier.Classifier
	logger      *zap.Logger
}

func NewIngestUsecase(
	companyRepo repository.CompanyRepository,
	paymentRepo repository.PaymentRepository,
	bankClient BankClient,
	vault CredentialDecrypter,
	cls *classifier.Classifier,
	logger *zap.Logger,
) *IngestUsecase {
	return &IngestUsecase{
		companyRepo: companyRepo,
		paymentRepo: paymentRepo,
		bankClient:  bankClient,
		vault:       vault,
		classifier:  cls,
		logger:      logger,
	}
}

// Ingest runs one ingestion for a tenant over an inclusive date range.
// Per-record failures land in the summary and never abort the batch;
// credential and upstream failures abort the whole run. Every fetched
// transaction is accounted for as created, duplicate or error.
func (uc *IngestUsecase) Ingest(ctx context.Context, companyID int64, from, to time.Time) (*domain.IngestSummary, error) {
	start := time.Now()
	defer func() {
		ingestDuration.Observe(time.Since(start).Seconds())
	}()

	company, err := uc.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if !company.HasBankCredentials() {
		uc.logger.Warn("ingestion skipped, bank credentials missing",
			zap.Int64("company_id", companyID))
		return nil, fmt.Errorf("company %d: bank merchant id or token: %w", companyID, domain.ErrCredentialsMissing)
	}

	token, err := uc.vault.Decrypt(company.BankTokenEnc)
	if err != nil {
		// Configuration failure for this tenant only; other tenants'
		// ingestions keep working.
		uc.logger.Error("failed to decrypt bank token",
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return nil, fmt.Errorf("company %d bank token: %w", companyID, err)
	}

	uc.logger.Info("starting ingestion",
		zap.Int64("company_id", companyID),
		zap.Time("from", from),
		zap.Time("to", to))

	transactions, err := uc.bankClient.ListTransactions(ctx, company.MerchantID, token, from, to)
	if err != nil {
		uc.logger.Error("bank transaction listing failed",
			zap.Int64("company_id", companyID),
			zap.Error(err))
		return nil, err
	}

	summary := &domain.IngestSummary{
		CompanyID: companyID,
		From:      from,
		To:        to,
		Fetched:   len(transactions),
	}

	for _, tx := range transactions {
		// Cancellation is safe between records: already-persisted
		// payments remain valid.
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		uc.ingestOne(ctx, company, tx, summary)
	}

	uc.logger.Info("ingestion finished",
		zap.Int64("company_id", companyID),
		zap.Int("fetched", summary.Fetched),
		zap.Int("created", summary.Created),
		zap.Int("duplicates", summary.Duplicates),
		zap.Int("errors", len(summary.Errors)))

	return summary, nil
}

func (uc *IngestUsecase) ingestOne(ctx context.Context, company *domain.Company, tx bank.Transaction, summary *domain.IngestSummary) {
	payment, err := uc.normalize(company, tx)
	if err != nil {
		ingestTransactions.WithLabelValues("error").Inc()
		summary.Errors = append(summary.Errors, domain.IngestError{
			ExternalID: tx.ID,
			Reason:     err.Error(),
		})
		uc.logger.Warn("skipping malformed transaction",
			zap.Int64("company_id", company.ID),
			zap.String("external_id", tx.ID),
			zap.Error(err))
		return
	}

	// Application-level duplicate check; the unique index on
	// (company_id, external_id) stays the source of truth under races.
	if _, err := uc.paymentRepo.GetByExternalID(ctx, company.ID, payment.ExternalID); err == nil {
		ingestTransactions.WithLabelValues("duplicate").Inc()
		summary.Duplicates++
		return
	} else if !errors.Is(err, domain.ErrPaymentNotFound) {
		ingestTransactions.WithLabelValues("error").Inc()
		summary.Errors = append(summary.Errors, domain.IngestError{
			ExternalID: payment.ExternalID,
			Reason:     fmt.Sprintf("duplicate check failed: %v", err),
		})
		return
	}

	if err := uc.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, domain.ErrPersistenceConflict) {
			// A concurrent ingestion for the same tenant won the insert.
			ingestTransactions.WithLabelValues("duplicate").Inc()
			summary.Duplicates++
			return
		}
		ingestTransactions.WithLabelValues("error").Inc()
		summary.Errors = append(summary.Errors, domain.IngestError{
			ExternalID: payment.ExternalID,
			Reason:     fmt.Sprintf("persist failed: %v", err),
		})
		return
	}

	ingestTransactions.WithLabelValues("created").Inc()
	summary.Created++
}

// normalize turns one raw bank record into a candidate payment. The target
// flag is derived here, once, from the normalized sender account.
func (uc *IngestUsecase) normalize(company *domain.Company, tx bank.Transaction) (*domain.Payment, error) {
	if tx.ID == "" {
		return nil, fmt.Errorf("transaction id is missing")
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(tx.Amount), " ", ""))
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q", tx.Amount)
	}

	currency := tx.Currency
	if currency == "" {
		currency = defaultCurrency
	}

	paidAt, err := parseBankTimestamp(tx.DateTime, tx.Time)
	if err != nil {
		return nil, err
	}

	account := strings.TrimSpace(tx.SenderAccount)

	return &domain.Payment{
		CompanyID:      company.ID,
		ExternalID:     tx.ID,
		Amount:         amount,
		Currency:       currency,
		Description:    tx.Description,
		SenderAccount:  account,
		SenderName:     tx.SenderName,
		SenderTaxID:    tx.SenderTaxID,
		DocumentNumber: tx.DocumentNumber,
		PaidAt:         paidAt,
		IsTarget:       uc.classifier.IsTarget(account),
	}, nil
}

func parseBankTimestamp(date, clock string) (time.Time, error) {
	if date == "" {
		return time.Time{}, fmt.Errorf("transaction date is missing")
	}
	layout, value := "02-01-2006", date
	if clock != "" {
		layout, value = "02-01-2006 15:04", date+" "+clock
	}
	t, err := time.Parse(layout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid transaction date %q", value)
	}
	return t, nil
}
