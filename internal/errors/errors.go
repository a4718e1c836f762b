// Package errors defines the categorized error taxonomy of the token ledger.
// Every engine failure aborts the triggering call and is reported with a
// category, a stable code and the human-readable revert reason.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/rudolf-ledger/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryBalance represents insufficient funds or allowance
	CategoryBalance ErrorCategory = "balance"
	// CategoryPaused represents mutations attempted while paused
	CategoryPaused ErrorCategory = "paused"
	// CategoryAuthorization represents privileged calls by non-owners
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryValidation represents invalid arguments
	CategoryValidation ErrorCategory = "validation"
	// CategoryClaim represents claims with nothing to settle
	CategoryClaim ErrorCategory = "claim"
	// CategoryNotFound represents queries against unknown snapshots
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryArithmetic represents 256-bit overflow
	CategoryArithmetic ErrorCategory = "arithmetic"
	// CategoryRateLimit represents rate limit errors
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
)

// Error codes
const (
	CodeInsufficientBalance   = "INSUFFICIENT_BALANCE"
	CodeInsufficientAllowance = "INSUFFICIENT_ALLOWANCE"
	CodePaused                = "PAUSED"
	CodeNotPaused             = "NOT_PAUSED"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeInvalidOwner          = "INVALID_OWNER"
	CodeInvalidAddress        = "INVALID_ADDRESS"
	CodeInvalidParameter      = "INVALID_PARAMETER"
	CodeNothingToClaim        = "NOTHING_TO_CLAIM"
	CodeUnknownSnapshot       = "UNKNOWN_SNAPSHOT"
	CodeOverflow              = "OVERFLOW"
	CodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	CodeInternal              = "INTERNAL_ERROR"
	CodeDatabase              = "DATABASE_ERROR"
	CodeCache                 = "CACHE_ERROR"
)

// Sentinels for errors.Is comparisons. Matching is by code.
var (
	ErrInsufficientBalance   = &CategorizedError{Code: CodeInsufficientBalance}
	ErrInsufficientAllowance = &CategorizedError{Code: CodeInsufficientAllowance}
	ErrPaused                = &CategorizedError{Code: CodePaused}
	ErrNotPaused             = &CategorizedError{Code: CodeNotPaused}
	ErrUnauthorized          = &CategorizedError{Code: CodeUnauthorized}
	ErrInvalidOwner          = &CategorizedError{Code: CodeInvalidOwner}
	ErrInvalidAddress        = &CategorizedError{Code: CodeInvalidAddress}
	ErrInvalidParameter      = &CategorizedError{Code: CodeInvalidParameter}
	ErrNothingToClaim        = &CategorizedError{Code: CodeNothingToClaim}
	ErrUnknownSnapshot       = &CategorizedError{Code: CodeUnknownSnapshot}
	ErrOverflow              = &CategorizedError{Code: CodeOverflow}
	ErrRateLimitExceeded     = &CategorizedError{Code: CodeRateLimitExceeded}
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// Is reports whether target carries the same code
func (e *CategorizedError) Is(target error) bool {
	t, ok := target.(*CategorizedError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Ledger errors

// NewInsufficientBalanceError creates an insufficient balance error
func NewInsufficientBalanceError(account string, balance, amount string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBalance,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeInsufficientBalance,
		Message:    "ERC20: transfer amount exceeds balance",
		Details: map[string]interface{}{
			"account": account,
			"balance": balance,
			"amount":  amount,
		},
	}
}

// NewInsufficientAllowanceError creates an insufficient allowance error
func NewInsufficientAllowanceError(owner, spender string, allowance, amount string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryBalance,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeInsufficientAllowance,
		Message:    "ERC20: insufficient allowance",
		Details: map[string]interface{}{
			"owner":     owner,
			"spender":   spender,
			"allowance": allowance,
			"amount":    amount,
		},
	}
}

// NewPausedError creates a paused error. The reason differs between the
// transfer path and the claim path.
func NewPausedError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPaused,
		StatusCode: http.StatusLocked,
		Code:       CodePaused,
		Message:    reason,
	}
}

// NewNotPausedError creates an error for unpausing a running token
func NewNotPausedError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPaused,
		StatusCode: http.StatusConflict,
		Code:       CodeNotPaused,
		Message:    reason,
	}
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(caller string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       CodeUnauthorized,
		Message:    "Ownable: caller is not the owner",
		Details: map[string]interface{}{
			"caller": caller,
		},
	}
}

// NewInvalidOwnerError creates an invalid owner error
func NewInvalidOwnerError() *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidOwner,
		Message:    "Ownable: new owner is the zero address",
	}
}

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidAddress,
		Message:    reason,
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       CodeInvalidParameter,
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewNothingToClaimError creates a nothing to claim error
func NewNothingToClaimError(account string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryClaim,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeNothingToClaim,
		Message:    "RUDOLF: nothing to claim",
		Details: map[string]interface{}{
			"account": account,
		},
	}
}

// NewUnknownSnapshotError creates an unknown snapshot error
func NewUnknownSnapshotError(id, last uint64) *CategorizedError {
	msg := "ERC20Snapshot: nonexistent id"
	if id == 0 {
		msg = "ERC20Snapshot: id is 0"
	}
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       CodeUnknownSnapshot,
		Message:    msg,
		Details: map[string]interface{}{
			"snapshotId":     id,
			"lastSnapshotId": last,
		},
	}
}

// NewOverflowError creates an arithmetic overflow error
func NewOverflowError(operation string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryArithmetic,
		StatusCode: http.StatusUnprocessableEntity,
		Code:       CodeOverflow,
		Message:    fmt.Sprintf("arithmetic overflow in %s", operation),
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewRateLimitError creates a rate limit error
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       CodeRateLimitExceeded,
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// System errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeInternal,
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeDatabase,
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       CodeCache,
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return &CategorizedError{
			Category:   CategorySystem,
			StatusCode: http.StatusInternalServerError,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil && catErr.StatusCode != 0 {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsUserError determines if an error is caller-recoverable (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}
	return catErr.StatusCode >= 500
}
