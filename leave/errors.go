/*
errors.go - Centralized error types for the leave engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes via the classification
  helpers at the bottom.

ERROR CATEGORIES:
  1. InsufficientBalance - recoverable; the caller can reject or reduce
  2. InvalidBatch        - data corruption; a hard failure
  3. NotFound            - unknown employee or request id
  4. PolicyViolation     - illegal state transition (e.g. approving a
                           request that already reached a terminal state)

  Every balance-mutating failure leaves the store unchanged; partial
  application is never acceptable.
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInsufficientBalance is returned when a deduction exceeds the total
	// drawable across the applicable pools.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrInvalidBatch is returned when a request's batch marker is missing
	// or resolves to no rows. This indicates data corruption.
	ErrInvalidBatch = errors.New("invalid batch")

	// ErrNotFound is returned for unknown employee or request ids.
	ErrNotFound = errors.New("not found")

	// ErrPolicyViolation is returned for illegal lifecycle transitions.
	ErrPolicyViolation = errors.New("policy violation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientBalanceError provides details about a balance shortage.
type InsufficientBalanceError struct {
	EmployeeID EmployeeID
	Category   Category
	Available  decimal.Decimal
	Requested  decimal.Decimal
	Shortfall  decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %s, short by %s",
		e.Category, e.Available, e.Requested, e.Shortfall)
}

func (e *InsufficientBalanceError) Unwrap() error {
	return ErrInsufficientBalance
}

// UnknownCategoryError reports a leave-category label the engine does not
// recognize.
type UnknownCategoryError struct {
	Label string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown leave category %q", e.Label)
}

func (e *UnknownCategoryError) Unwrap() error {
	return ErrPolicyViolation
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input
// rather than an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrPolicyViolation)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
