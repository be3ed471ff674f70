package store

import (
	"errors"
	"fmt"

	"github.com/roach88/pinbase/internal/ir"
)

// LedgerError is a structured error for ledger operations that a caller is
// expected to handle (as opposed to I/O failures, which are wrapped plainly).
type LedgerError struct {
	Code    LedgerErrorCode
	Message string
	Entity  ir.EntityRef
	Source  string
}

// LedgerErrorCode categorizes ledger errors.
type LedgerErrorCode string

const (
	// ErrCodeUnknownEntity indicates a claim targets an entity that does not exist.
	ErrCodeUnknownEntity LedgerErrorCode = "UNKNOWN_ENTITY"

	// ErrCodeUnknownSource indicates a claim or lookup names an unregistered source.
	ErrCodeUnknownSource LedgerErrorCode = "UNKNOWN_SOURCE"

	// ErrCodeSourceInUse indicates a delete of a source that claims still reference.
	ErrCodeSourceInUse LedgerErrorCode = "SOURCE_IN_USE"

	// ErrCodeNotFound indicates a lookup matched nothing.
	ErrCodeNotFound LedgerErrorCode = "NOT_FOUND"
)

// Error implements the error interface.
func (e *LedgerError) Error() string {
	switch {
	case e.Entity.ID != "" && e.Source != "":
		return fmt.Sprintf("%s: %s (entity=%s, source=%s)", e.Code, e.Message, e.Entity, e.Source)
	case e.Entity.ID != "":
		return fmt.Sprintf("%s: %s (entity=%s)", e.Code, e.Message, e.Entity)
	case e.Source != "":
		return fmt.Sprintf("%s: %s (source=%s)", e.Code, e.Message, e.Source)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func hasCode(err error, code LedgerErrorCode) bool {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Code == code
	}
	return false
}

// IsUnknownEntity reports whether err is an UNKNOWN_ENTITY ledger error.
func IsUnknownEntity(err error) bool { return hasCode(err, ErrCodeUnknownEntity) }

// IsUnknownSource reports whether err is an UNKNOWN_SOURCE ledger error.
func IsUnknownSource(err error) bool { return hasCode(err, ErrCodeUnknownSource) }

// IsSourceInUse reports whether err is a SOURCE_IN_USE ledger error.
func IsSourceInUse(err error) bool { return hasCode(err, ErrCodeSourceInUse) }

// IsNotFound reports whether err is a NOT_FOUND ledger error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

func unknownEntity(ref ir.EntityRef) *LedgerError {
	return &LedgerError{Code: ErrCodeUnknownEntity, Message: "entity does not exist", Entity: ref}
}

func unknownSource(id string) *LedgerError {
	return &LedgerError{Code: ErrCodeUnknownSource, Message: "source is not registered", Source: id}
}
