package ports

import "errors"

// Standard application-level errors.
// Adapters should wrap underlying infrastructure errors with these standard errors.
var (
	// General Errors
	ErrUnknown            = errors.New("unknown error occurred")
	ErrInvalidRequest     = errors.New("invalid request parameters or format")
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrContextCanceled    = errors.New("operation canceled via context")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Ledger Specific Errors
	ErrLedgerAppendFailed = errors.New("failed to append record to ledger")
	ErrLedgerRotateFailed = errors.New("failed to rotate ledger segment")

	// Reconciliation Specific Errors
	ErrReconcileUnavailable  = errors.New("reconciliation endpoint is unavailable")
	ErrReconcileInconclusive = errors.New("reconciliation returned no usable verdict")

	// Archive Specific Errors
	ErrDBConnection = errors.New("database connection error")
	ErrQueryFailed  = errors.New("database query failed")
	ErrUpdateFailed = errors.New("database update failed")
)
