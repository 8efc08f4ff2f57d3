package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Provider errors
	ErrUnknownProvider       = errors.New("unknown payment provider")
	ErrProviderNotConfigured = errors.New("payment provider is not configured")

	// Ledger errors
	ErrDuplicateTransaction = errors.New("transaction already exists for this payment")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrUserNotFound         = errors.New("user not found")
	ErrInsufficientCredits  = errors.New("insufficient credits")
	ErrStatusRegression     = errors.New("payment status cannot regress")
)

// ─── Error Codes ────────────────────────────────────────────────────────────
// Stable strings consumed by the presentation layer. Never rename.

// ErrorCode classifies a use-case failure for callers.
type ErrorCode string

const (
	CodeProviderNotConfigured ErrorCode = "PROVIDER_NOT_CONFIGURED"
	CodeCaptureFailed         ErrorCode = "CAPTURE_FAILED"
	CodeInvalidSignature      ErrorCode = "INVALID_SIGNATURE"
	CodeUnknownProvider       ErrorCode = "UNKNOWN_PROVIDER"
	CodeInternalError         ErrorCode = "INTERNAL_ERROR"
)
