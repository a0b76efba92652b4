package domain

import "errors"

// Sentinel errors returned by the usecases. Handlers map these onto HTTP
// status codes; callers decide whether a retry makes sense.
var (
	// ErrCredentialsMissing means the company row lacks one of the fields
	// required for the requested operation (bank merchant id/token for
	// ingestion, fiscal license/login/PIN for issuance).
	ErrCredentialsMissing = errors.New("credentials missing")

	// ErrDecryption means a stored credential could not be decrypted with
	// the configured master key. A configuration failure, not data loss.
	ErrDecryption = errors.New("credential decryption failed")

	// ErrUpstreamUnavailable means the bank or fiscal API was unreachable
	// or answered 5xx.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrUpstreamRejected means the bank or fiscal API rejected the request
	// (4xx / business rule).
	ErrUpstreamRejected = errors.New("upstream rejected request")

	ErrPaymentNotFound = errors.New("payment not found")
	ErrCompanyNotFound = errors.New("company not found")

	// ErrAlreadyIssued means a receipt already exists for the payment.
	// Never retry: the receipt can be looked up instead.
	ErrAlreadyIssued = errors.New("receipt already issued")

	// ErrFiscalSubmission means the fiscal submission failed or timed out
	// with an ambiguous outcome. No durable state was mutated locally;
	// an ambiguous timeout needs manual reconciliation before any retry.
	ErrFiscalSubmission = errors.New("fiscal submission failed")

	// ErrNotTarget means the payment's sender account was classified as
	// not requiring a receipt; issuance is rejected outright.
	ErrNotTarget = errors.New("payment is not a receipt target")

	// ErrPersistenceConflict surfaces a uniqueness violation from the store.
	ErrPersistenceConflict = errors.New("persistence conflict")
)
