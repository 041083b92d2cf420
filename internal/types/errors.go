// Package types provides common type definitions used across the backend
package types

import (
	"errors"
	"fmt"
)

// ErrorKind is the machine-readable reason attached to a rejected request.
type ErrorKind string

const (
	ErrMissingField ErrorKind = "MISSING_FIELD"
	ErrWrongType    ErrorKind = "WRONG_TYPE"
	ErrMalformed    ErrorKind = "MALFORMED_BODY"

	ErrWrongDecimal ErrorKind = "WRONG_DECIMAL"
	ErrZeroDecimal  ErrorKind = "ZERO_DECIMAL"
	ErrFloatDecimal ErrorKind = "FLOAT_DECIMAL"

	ErrShortAddress  ErrorKind = "SHORT_ADDRESS"
	ErrLongAddress   ErrorKind = "LONG_ADDRESS"
	ErrWrongAddress  ErrorKind = "WRONG_ADDRESS"
	ErrWrongChecksum ErrorKind = "WRONG_CHECKSUM"

	ErrShortSignature ErrorKind = "SHORT_SIGNATURE"
	ErrLongSignature  ErrorKind = "LONG_SIGNATURE"
	ErrWrongSignature ErrorKind = "WRONG_SIGNATURE"

	ErrShortHash ErrorKind = "SHORT_HASH"
	ErrLongHash  ErrorKind = "LONG_HASH"
	ErrWrongHash ErrorKind = "WRONG_HASH"

	ErrBadSignatureFormat ErrorKind = "BAD_SIGNATURE_FORMAT"
	ErrSignatureMismatch  ErrorKind = "SIGNATURE_MISMATCH"
	ErrHashMismatch       ErrorKind = "HASH_MISMATCH"

	ErrUserTimestamp  ErrorKind = "USER_TIMESTAMP"
	ErrWrongTimestamp ErrorKind = "WRONG_TIMESTAMP"
	ErrWrongChainID   ErrorKind = "WRONG_CHAIN_ID"

	ErrOrderExists             ErrorKind = "ORDER_EXISTS"
	ErrBotExistingOrder        ErrorKind = "BOT_EXISTING_ORDER"
	ErrBotGridTooLarge         ErrorKind = "BOT_GRID_TOO_LARGE"
	ErrSameBaseQuote           ErrorKind = "SAME_BASE_QUOTE"
	ErrPriceGtUpperBound       ErrorKind = "PRICE_GT_UPPER_BOUND"
	ErrLowerBoundGtPrice       ErrorKind = "LOWER_BOUND_GT_PRICE"
	ErrLowerBoundGteUpperBound ErrorKind = "LOWER_BOUND_GTE_UPPER_BOUND"

	ErrTradeFieldFormat       ErrorKind = "TRADE_FIELD_FORMAT"
	ErrTradeData              ErrorKind = "TRADE_DATA"
	ErrNoMakerFound           ErrorKind = "NO_MAKER_FOUND"
	ErrMakerAlreadyCancelled  ErrorKind = "MAKER_ALREADY_CANCELLED"
	ErrMakerAlreadyFilled     ErrorKind = "MAKER_ALREADY_FILLED"
	ErrOrderPositiveViolation ErrorKind = "ORDER_POSITIVE_VIOLATION"

	ErrWatchTowerAuthFail ErrorKind = "WATCH_TOWER_AUTH_FAIL"
	ErrSessionAuthFail    ErrorKind = "SESSION_AUTH_FAIL"
)

// FieldError is a validation or integrity failure. An empty Field marks a
// cross-field error rendered under the "error" key.
type FieldError struct {
	Field string
	Kind  ErrorKind
}

func (e *FieldError) Error() string {
	if e.Field == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Kind)
}

// NewFieldError creates a field-scoped error
func NewFieldError(field string, kind ErrorKind) *FieldError {
	return &FieldError{Field: field, Kind: kind}
}

// NewCrossFieldError creates an error that is not tied to one field
func NewCrossFieldError(kind ErrorKind) *FieldError {
	return &FieldError{Kind: kind}
}

// NotFound reports whether the error kind maps to a missing resource
func (e *FieldError) NotFound() bool {
	return e.Kind == ErrNoMakerFound
}

// AuthError is returned when the caller cannot be authenticated.
type AuthError struct {
	Kind   ErrorKind
	Detail string
}

func (e *AuthError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

// NewWatchTowerAuthError creates the error returned for a bad HMAC or timestamp
func NewWatchTowerAuthError(detail string) *AuthError {
	return &AuthError{Kind: ErrWatchTowerAuthFail, Detail: detail}
}

// NewSessionAuthError creates the error returned for a missing or foreign session
func NewSessionAuthError(detail string) *AuthError {
	return &AuthError{Kind: ErrSessionAuthFail, Detail: detail}
}

// KindOf extracts the ErrorKind of a FieldError or AuthError, or "" otherwise
func KindOf(err error) ErrorKind {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return KindOf(err) == kind
}
