package runtime

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/loomkit/loom/internal/factory"
)

// RegistryError represents a failed registry operation.
//
// All registry failures are local and synchronous: they are reported to
// the caller of the triggering operation and never retried internally.
type RegistryError struct {
	// Code identifies the error category.
	Code RegistryErrorCode

	// Op names the operation that failed.
	Op string

	// Type identifies the context type involved, when applicable.
	Type reflect.Type

	// Arg names the offending argument for null-argument errors.
	Arg string
}

// RegistryErrorCode categorizes registry errors.
type RegistryErrorCode string

const (
	// ErrCodeNotInitialized indicates a registry operation before Initialize.
	ErrCodeNotInitialized RegistryErrorCode = "NOT_INITIALIZED"

	// ErrCodeNotAContextType indicates contextualizing an instance of a
	// type never declared as a context.
	ErrCodeNotAContextType RegistryErrorCode = "NOT_A_CONTEXT_TYPE"

	// ErrCodeUnknownContextType indicates a lookup or removal on a type
	// the registry has never seen declared as a context.
	ErrCodeUnknownContextType RegistryErrorCode = "UNKNOWN_CONTEXT_TYPE"

	// ErrCodeNotRegistered indicates decontextualizing an instance that
	// is not currently a member of its type bucket.
	ErrCodeNotRegistered RegistryErrorCode = "NOT_REGISTERED"

	// ErrCodeNullArgument indicates a nil context or empty field name.
	ErrCodeNullArgument RegistryErrorCode = "NULL_ARGUMENT"

	// ErrCodeReentrantUpdate indicates Update was called from within a
	// running update pass, breaking the single-writer invariant.
	ErrCodeReentrantUpdate RegistryErrorCode = "REENTRANT_UPDATE"
)

// Error implements the error interface.
func (e *RegistryError) Error() string {
	switch {
	case e.Type != nil:
		return fmt.Sprintf("%s: %s (type=%s)", e.Code, e.Op, e.Type)
	case e.Arg != "":
		return fmt.Sprintf("%s: %s (arg=%s)", e.Code, e.Op, e.Arg)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Op)
	}
}

func notInitializedError(op string) *RegistryError {
	return &RegistryError{Code: ErrCodeNotInitialized, Op: op}
}

func notAContextTypeError(op string, t reflect.Type) *RegistryError {
	return &RegistryError{Code: ErrCodeNotAContextType, Op: op, Type: t}
}

func unknownContextTypeError(op string, t reflect.Type) *RegistryError {
	return &RegistryError{Code: ErrCodeUnknownContextType, Op: op, Type: t}
}

func notRegisteredError(op string, t reflect.Type) *RegistryError {
	return &RegistryError{Code: ErrCodeNotRegistered, Op: op, Type: t}
}

func nullArgumentError(op, arg string) *RegistryError {
	return &RegistryError{Code: ErrCodeNullArgument, Op: op, Arg: arg}
}

func reentrantUpdateError() *RegistryError {
	return &RegistryError{Code: ErrCodeReentrantUpdate, Op: "update"}
}

// IsNotInitialized reports whether err is a not-initialized error.
// Uses errors.As to handle wrapped errors.
func IsNotInitialized(err error) bool {
	return hasCode(err, ErrCodeNotInitialized)
}

// IsNotAContextType reports whether err rejects an undeclared context type.
func IsNotAContextType(err error) bool {
	return hasCode(err, ErrCodeNotAContextType) || hasCode(err, ErrCodeUnknownContextType)
}

// IsNotRegistered reports whether err is a not-registered error.
func IsNotRegistered(err error) bool {
	return hasCode(err, ErrCodeNotRegistered)
}

// IsConstructionInvariant reports whether err is a construction
// invariant violation surfaced from a factory drain.
func IsConstructionInvariant(err error) bool {
	var violation *factory.ConstructionInvariantError
	return errors.As(err, &violation)
}

func hasCode(err error, code RegistryErrorCode) bool {
	var re *RegistryError
	if errors.As(err, &re) {
		return re.Code == code
	}
	return false
}
