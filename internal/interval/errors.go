package interval

import (
	"errors"
	"fmt"
	"strings"

	"github.com/harrison/toolwindow/internal/models"
)

// Sentinel errors for input contract violations. Match with errors.Is.
var (
	ErrOrderingViolation = errors.New("events not ordered by (timestamp, close-before-open)")
	ErrMissingOpenType   = errors.New("opened event lacks a recognized open_type")
	ErrUserMismatch      = errors.New("event belongs to a different user")
)

// ViolationKind identifies which precondition an input stream broke.
type ViolationKind int

const (
	// ViolationOrdering means two adjacent events are out of order.
	ViolationOrdering ViolationKind = iota
	// ViolationMissingOpenType means an opened event carries no manual/auto open type.
	ViolationMissingOpenType
	// ViolationUserMismatch means the stream mixes events from several users.
	ViolationUserMismatch
)

// String returns the string representation of ViolationKind.
func (k ViolationKind) String() string {
	switch k {
	case ViolationOrdering:
		return "ordering"
	case ViolationMissingOpenType:
		return "missing_open_type"
	case ViolationUserMismatch:
		return "user_mismatch"
	default:
		return "unknown"
	}
}

func (k ViolationKind) sentinel() error {
	switch k {
	case ViolationOrdering:
		return ErrOrderingViolation
	case ViolationMissingOpenType:
		return ErrMissingOpenType
	case ViolationUserMismatch:
		return ErrUserMismatch
	default:
		return nil
	}
}

// ContractError reports an event stream that does not satisfy the reconstructor's
// preconditions. It carries the offending user and event position.
type ContractError struct {
	Kind   ViolationKind
	UserID string
	Index  int          // position of the offending event in the user's stream
	Event  models.Event // offending event
	Prev   *models.Event
}

func newContractError(kind ViolationKind, userID string, index int, ev models.Event, prev *models.Event) *ContractError {
	return &ContractError{
		Kind:   kind,
		UserID: userID,
		Index:  index,
		Event:  ev,
		Prev:   prev,
	}
}

// Error implements the error interface for ContractError.
func (e *ContractError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("user %s: event %d %s", e.UserID, e.Index, e.Event))
	if e.Prev != nil {
		sb.WriteString(fmt.Sprintf(" after %s", *e.Prev))
	}
	if s := e.Kind.sentinel(); s != nil {
		sb.WriteString(": ")
		sb.WriteString(s.Error())
	}
	return sb.String()
}

// Unwrap returns the sentinel error matching the violation kind.
func (e *ContractError) Unwrap() error {
	return e.Kind.sentinel()
}
