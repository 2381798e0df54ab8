package services

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a domain failure so callers can tell an actionable
// conflict apart from a system error.
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindNotFound          ErrorKind = "not_found"
	KindForbidden         ErrorKind = "forbidden"
	KindCapacityExceeded  ErrorKind = "capacity_exceeded"
	KindSlotConflict      ErrorKind = "slot_conflict"
	KindInsufficientStock ErrorKind = "insufficient_stock"
	KindInvalidTransition ErrorKind = "invalid_transition"
	KindAlreadyCancelled  ErrorKind = "already_cancelled"
	KindStockOverflow     ErrorKind = "stock_overflow"
	KindTableInUse        ErrorKind = "table_in_use"
	KindStaleVersion      ErrorKind = "stale_version"
)

type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]interface{}
}

func (e *Error) Error() string {
	return e.Message
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrSlotConflict)
// holds for every slot conflict regardless of its details.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "invalid request"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrForbidden         = &Error{Kind: KindForbidden, Message: "not allowed"}
	ErrCapacityExceeded  = &Error{Kind: KindCapacityExceeded, Message: "party size exceeds table capacity"}
	ErrSlotConflict      = &Error{Kind: KindSlotConflict, Message: "table already reserved for this time"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Message: "invalid status transition"}
	ErrAlreadyCancelled  = &Error{Kind: KindAlreadyCancelled, Message: "reservation already cancelled"}
	ErrStockOverflow     = &Error{Kind: KindStockOverflow, Message: "restock exceeds maximum stock level"}
	ErrTableInUse        = &Error{Kind: KindTableInUse, Message: "table has active reservations"}
	ErrStaleVersion      = &Error{Kind: KindStaleVersion, Message: "record was modified concurrently, retry"}
)

// KindOf returns the kind of a domain error, or "" for anything else.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

func validationError(format string, args ...interface{}) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func notFoundError(entity, id string) *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s %s not found", entity, id),
		Details: map[string]interface{}{"entity": entity, "id": id},
	}
}

func transitionError(entity, id string, from, to interface{}) *Error {
	return &Error{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("%s %s cannot move from %v to %v", entity, id, from, to),
		Details: map[string]interface{}{"entity": entity, "id": id, "current": from, "requested": to},
	}
}
