package ledgerErrors

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

var (
	Kind_Validation    Kind = "validation"
	Kind_NotFound      Kind = "not_found"
	Kind_Conflict      Kind = "conflict"
	Kind_Configuration Kind = "configuration"
	Kind_Internal      Kind = "internal"
)

var (
	ErrInvalidEpochId      = errors.New("invalid epoch id")
	ErrInvalidPagination   = errors.New("invalid pagination")
	ErrInvalidEvent        = errors.New("invalid activity event")
	ErrDuplicateEvent      = errors.New("duplicate activity event id")
	ErrInvalidPeriod       = errors.New("period start must be before period end")
	ErrInvalidWeightConfig = errors.New("invalid weight config")
	ErrNegativeAmount      = errors.New("amount credits must not be negative")

	ErrEpochNotFound      = errors.New("epoch not found")
	ErrCurationNotFound   = errors.New("curation not found")
	ErrStatementNotFound  = errors.New("payout statement not found")
	ErrAllocationNotFound = errors.New("allocation not found")

	ErrEpochNotOpen           = errors.New("epoch is not open")
	ErrPoolTotalMismatch      = errors.New("pool total does not match the sum of pool components")
	ErrDuplicatePoolComponent = errors.New("pool component already exists for epoch")
	ErrNothingToDistribute    = errors.New("epoch has credits to distribute but no allocation units")
	ErrStatementExists        = errors.New("payout statement already exists for epoch")

	ErrUnknownEventType = errors.New("event type missing from weight config")
	ErrUnitsOverflow    = errors.New("allocation units exceed the 64-bit range")

	ErrAllocationSetMismatch = errors.New("allocation set hash does not match the published statement")
)

// LedgerError carries the error class used to decide how a failure is surfaced.
type LedgerError struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

func New(kind Kind, err error, format string, args ...any) error {
	return &LedgerError{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Err:     err,
	}
}

func Validation(err error, format string, args ...any) error {
	return New(Kind_Validation, err, format, args...)
}

func NotFound(err error, format string, args ...any) error {
	return New(Kind_NotFound, err, format, args...)
}

func Conflict(err error, format string, args ...any) error {
	return New(Kind_Conflict, err, format, args...)
}

func Configuration(err error, format string, args ...any) error {
	return New(Kind_Configuration, err, format, args...)
}

// KindOf returns the kind of the first LedgerError in the chain, or Kind_Internal.
func KindOf(err error) Kind {
	var le *LedgerError
	if errors.As(err, &le) {
		return le.Kind
	}
	return Kind_Internal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case Kind_Validation:
		return http.StatusBadRequest
	case Kind_NotFound:
		return http.StatusNotFound
	case Kind_Conflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
