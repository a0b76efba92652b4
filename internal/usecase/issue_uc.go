package usecase

import (
	"context"
	"fmt"
	"time"

	"fiscal-service/internal/domain"
	"fiscal-service/internal/events"
	"fiscal-service/internal/locker"
	"fiscal-service/internal/product"
	"fiscal-service/internal/provider/fiscal"
	"fiscal-service/internal/repository"
	"fiscal-service/pkg/generator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	receiptsIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "receipts_issued_total",
			Help: "Receipt issuance attempts by outcome",
		},
		[]string{"outcome"},
	)

	issueDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "issue_duration_seconds",
			Help:    "Duration of receipt issuance",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		},
	)
)

// FiscalClient submits one receipt to the fiscal registration API.
type FiscalClient interface {
	CreateReceipt(ctx context.Context, creds fiscal.Credentials, req *fiscal.CreateReceiptRequest) (*fiscal.CreateReceiptResponse, error)
}

// IssueUsecase turns a target, unissued payment into a fiscally issued
// receipt. Per payment the state machine is PENDING -> ISSUED (terminal)
// or PENDING -> FAILED (retry permitted); there is no transition out of
// ISSUED.
type IssueUsecase struct {
	companyRepo repository.CompanyRepository
	paymentRepo repository.PaymentRepository
	receiptRepo repository.ReceiptRepository
	fiscal      FiscalClient
	vault       CredentialDecrypter
	resolver    *product.Resolver
	locks       *locker.Locker
	publisher   *events.Publisher
	codes       *generator.Generator
	cashierName string
	logger      *zap.Logger
}

func NewIssueUsecase(
	companyRepo repository.CompanyRepository,
	paymentRepo repository.PaymentRepository,
	receiptRepo repository.ReceiptRepository,
	fiscalClient FiscalClient,
	vault CredentialDecrypter,
	resolver *product.Resolver,
	locks *locker.Locker,
	publisher *events.Publisher,
	cashierName string,
	logger *zap.Logger,
) *IssueUsecase {
	return &IssueUsecase{
		companyRepo: companyRepo,
		paymentRepo: paymentRepo,
		receiptRepo: receiptRepo,
		fiscal:      fiscalClient,
		vault:       vault,
		resolver:    resolver,
		locks:       locks,
		publisher:   publisher,
		codes:       generator.New(),
		cashierName: cashierName,
		logger:      logger,
	}
}

// Issue registers a fiscal receipt for the payment. No durable state is
// mutated until the fiscal API has accepted the submission; the receipt
// insert and the payment flag update then commit in one transaction.
func (uc *IssueUsecase) Issue(ctx context.Context, paymentID int64) (*domain.Receipt, error) {
	done := prometheus.NewTimer(issueDuration)
	defer done.ObserveDuration()

	payment, err := uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.ReceiptIssued {
		receiptsIssued.WithLabelValues("already_issued").Inc()
		return nil, fmt.Errorf("payment %d: %w", paymentID, domain.ErrAlreadyIssued)
	}
	if !payment.IsTarget {
		receiptsIssued.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("payment %d: %w", paymentID, domain.ErrNotTarget)
	}

	// The redis lock shortens the double-submit window before the fiscal
	// call; the unique index on receipts.payment_id is the backstop.
	ok, err := uc.locks.Acquire(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if !ok {
		receiptsIssued.WithLabelValues("locked").Inc()
		return nil, fmt.Errorf("issuance already in progress for payment %d: %w", paymentID, domain.ErrPersistenceConflict)
	}
	defer uc.locks.Release(ctx, paymentID)

	// Re-check under the lock: another caller may have finished between
	// our first read and the lock acquisition.
	payment, err = uc.paymentRepo.GetByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if payment.ReceiptIssued {
		receiptsIssued.WithLabelValues("already_issued").Inc()
		return nil, fmt.Errorf("payment %d: %w", paymentID, domain.ErrAlreadyIssued)
	}

	company, err := uc.companyRepo.GetByID(ctx, payment.CompanyID)
	if err != nil {
		return nil, err
	}
	if !company.HasFiscalCredentials() {
		receiptsIssued.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("company %d: fiscal license, login or pin: %w", company.ID, domain.ErrCredentialsMissing)
	}

	licenseKey, err := uc.vault.Decrypt(company.FiscalLicenseEnc)
	if err != nil {
		return nil, fmt.Errorf("company %d fiscal license: %w", company.ID, err)
	}
	pin, err := uc.vault.Decrypt(company.FiscalPINEnc)
	if err != nil {
		return nil, fmt.Errorf("company %d fiscal pin: %w", company.ID, err)
	}

	minor := domain.ToMinorUnits(payment.Amount)
	title := uc.resolver.Title(company, payment)
	code := uc.resolver.Code(payment)
	localCode := uc.codes.Generate()

	req := &fiscal.CreateReceiptRequest{
		CashierName: uc.cashierName,
		Goods: []fiscal.Good{{
			Good: fiscal.GoodItem{
				Code:  code,
				Name:  title,
				Price: minor,
			},
			Quantity: fiscal.QuantityOne,
		}},
		Payments: []fiscal.PaymentLeg{{
			Type:  fiscal.PaymentTypeCashless,
			Value: minor,
		}},
		Header: fmt.Sprintf("Платник: %s", payment.SenderName),
		Footer: fmt.Sprintf("Дякуємо! %s", localCode),
	}

	uc.logger.Info("submitting fiscal receipt",
		zap.Int64("payment_id", paymentID),
		zap.Int64("company_id", company.ID),
		zap.Int64("amount_minor", minor),
		zap.String("local_code", localCode))

	resp, err := uc.fiscal.CreateReceipt(ctx, fiscal.Credentials{
		LicenseKey: licenseKey,
		Login:      company.FiscalCashierLogin,
		PIN:        pin,
	}, req)
	if err != nil {
		receiptsIssued.WithLabelValues("failed").Inc()
		uc.logger.Error("fiscal submission failed",
			zap.Int64("payment_id", paymentID),
			zap.Int64("company_id", company.ID),
			zap.Error(err))
		return nil, err
	}

	status := resp.Status
	if status == "" {
		status = domain.ReceiptStatusDone
	}
	issuedAt := resp.CreatedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	receipt := &domain.Receipt{
		CompanyID:  company.ID,
		PaymentID:  payment.ID,
		ExternalID: resp.ID,
		LocalCode:  localCode,
		FiscalCode: resp.FiscalCode,
		Amount:     payment.Amount,
		Status:     status,
		ViewURL:    resp.ReceiptURL,
		PDFURL:     resp.PDFURL,
		IssuedAt:   issuedAt,
	}

	// The fiscal receipt now exists remotely; persist immediately, with no
	// intervening work, so the unsafe window stays minimal.
	if err := uc.receiptRepo.CreateIssued(ctx, receipt); err != nil {
		receiptsIssued.WithLabelValues("failed").Inc()
		uc.logger.Error("failed to persist issued receipt, reconciliation required",
			zap.Int64("payment_id", paymentID),
			zap.String("fiscal_receipt_id", resp.ID),
			zap.Error(err))
		return nil, err
	}

	receiptsIssued.WithLabelValues("issued").Inc()
	uc.logger.Info("receipt issued",
		zap.Int64("payment_id", paymentID),
		zap.Int64("receipt_id", receipt.ID),
		zap.String("fiscal_receipt_id", receipt.ExternalID),
		zap.String("fiscal_code", receipt.FiscalCode))

	uc.publisher.ReceiptIssued(ctx, receipt)

	return receipt, nil
}

// Reconcile repairs the crash window between the fiscal submission and the
// two-write commit: receipts that exist without their payment flagged get
// only the flag update re-applied. Returns how many were repaired.
func (uc *IssueUsecase) Reconcile(ctx context.Context) (int, error) {
	receipts, err := uc.receiptRepo.ListUnflagged(ctx)
	if err != nil {
		return 0, err
	}

	repaired := 0
	for _, rc := range receipts {
		if err := uc.receiptRepo.ReapplyFlag(ctx, rc); err != nil {
			uc.logger.Error("failed to reconcile receipt",
				zap.Int64("receipt_id", rc.ID),
				zap.Int64("payment_id", rc.PaymentID),
				zap.Error(err))
			continue
		}
		repaired++
		uc.logger.Info("reconciled orphaned receipt",
			zap.Int64("receipt_id", rc.ID),
			zap.Int64("payment_id", rc.PaymentID))
	}
	return repaired, nil
}

// Lookup returns the receipt for a payment, for callers that hit
// ErrAlreadyIssued and want the existing document.
func (uc *IssueUsecase) Lookup(ctx context.Context, paymentID int64) (*domain.Receipt, error) {
	return uc.receiptRepo.GetByPaymentID(ctx, paymentID)
}
