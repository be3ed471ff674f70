package hierarchy

import (
	"errors"
	"fmt"
	"strings"
)

// DerivationError reports rows the deriver could not place.
type DerivationError struct {
	// Code identifies the error category.
	Code DerivationErrorCode

	// Message is a human-readable description.
	Message string

	// Rows lists every offending row ID, sorted.
	Rows []string
}

// DerivationErrorCode categorizes derivation errors.
type DerivationErrorCode string

const (
	// ErrCodeOrphanAlias indicates alias rows whose parent row is missing.
	ErrCodeOrphanAlias DerivationErrorCode = "ORPHAN_ALIAS"

	// ErrCodeUnknownPin indicates a pin naming a missing or alias row.
	ErrCodeUnknownPin DerivationErrorCode = "UNKNOWN_PIN"

	// ErrCodeDuplicateRow indicates two input rows with the same ID.
	ErrCodeDuplicateRow DerivationErrorCode = "DUPLICATE_ROW"

	// ErrCodeInvalidRow indicates a row with no ID.
	ErrCodeInvalidRow DerivationErrorCode = "INVALID_ROW"
)

// Error implements the error interface.
func (e *DerivationError) Error() string {
	if len(e.Rows) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s (rows=%s)", e.Code, e.Message, strings.Join(e.Rows, ","))
}

// IsOrphanAlias reports whether err is an ORPHAN_ALIAS derivation error.
func IsOrphanAlias(err error) bool {
	return hasCode(err, ErrCodeOrphanAlias)
}

// IsUnknownPin reports whether err is an UNKNOWN_PIN derivation error.
func IsUnknownPin(err error) bool {
	return hasCode(err, ErrCodeUnknownPin)
}

func hasCode(err error, code DerivationErrorCode) bool {
	var de *DerivationError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}
