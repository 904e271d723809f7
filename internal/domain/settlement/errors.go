package settlement

import (
	"fmt"
	"strings"

	"github.com/erp/settlement/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Error codes shared with the HTTP layer
const (
	CodeValidation           = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodePeriodLocked         = "PERIOD_LOCKED"
	CodeInsufficientBalance  = "INSUFFICIENT_BALANCE"
	CodeDirectionMismatch    = "DIRECTION_MISMATCH"
	CodeDocumentNotOpen      = "DOCUMENT_NOT_OPEN"
	CodeInvalidTransition    = "INVALID_TRANSITION"
	CodeConcurrencyConflict  = "CONCURRENCY_CONFLICT"
	CodeHasActiveAllocations = "HAS_ACTIVE_ALLOCATIONS"
)

// Sentinels for errors.Is checks
var (
	ErrValidation           = shared.NewDomainError(CodeValidation, "validation failed")
	ErrNotFound             = shared.NewDomainError(CodeNotFound, "resource not found")
	ErrPeriodLocked         = shared.NewDomainError(CodePeriodLocked, "accounting period is locked")
	ErrInsufficientBalance  = shared.NewDomainError(CodeInsufficientBalance, "insufficient balance")
	ErrDirectionMismatch    = shared.NewDomainError(CodeDirectionMismatch, "payment and document directions are not compatible")
	ErrDocumentNotOpen      = shared.NewDomainError(CodeDocumentNotOpen, "document is not open for allocation")
	ErrInvalidTransition    = shared.NewDomainError(CodeInvalidTransition, "invalid status transition")
	ErrConcurrencyConflict  = shared.NewDomainError(CodeConcurrencyConflict, "concurrent update, retry the operation")
	ErrHasActiveAllocations = shared.NewDomainError(CodeHasActiveAllocations, "record has active allocations")
)

// FieldError describes one rejected input field
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports malformed input or a request that conflicts with
// the records it names (unknown party, foreign currency).
type ValidationError struct {
	Fields []FieldError
}

// NewValidationError creates a ValidationError for a single field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// Add appends a field failure
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if e == nil || len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return shared.NewDomainError(CodeValidation, e.Error())
}

// NotFoundError reports a missing record
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return shared.NewDomainError(CodeNotFound, e.Error())
}

// PeriodLockedError reports a write into a locked accounting period
type PeriodLockedError struct {
	CompanyID uuid.UUID
	Year      int
	Month     int
}

func (e *PeriodLockedError) Error() string {
	return fmt.Sprintf("accounting period %04d-%02d is locked", e.Year, e.Month)
}

func (e *PeriodLockedError) Unwrap() error {
	return shared.NewDomainError(CodePeriodLocked, e.Error())
}

// InsufficientBalanceError reports an allocation that exceeds what is left
// on the payment or on the document
type InsufficientBalanceError struct {
	Subject   string // "payment" or "document"
	ID        uuid.UUID
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance on %s: available %s, requested %s",
		e.Subject, e.ID, e.Available.String(), e.Requested.String())
}

func (e *InsufficientBalanceError) Unwrap() error {
	return shared.NewDomainError(CodeInsufficientBalance, e.Error())
}

// DirectionMismatchError reports a payment that cannot settle a document
type DirectionMismatchError struct {
	DocumentID        uuid.UUID
	DocumentDirection DocumentDirection
	PaymentDirection  PaymentDirection
}

func (e *DirectionMismatchError) Error() string {
	return fmt.Sprintf("%s payment cannot settle %s document %s",
		e.PaymentDirection, e.DocumentDirection, e.DocumentID)
}

func (e *DirectionMismatchError) Unwrap() error {
	return shared.NewDomainError(CodeDirectionMismatch, e.Error())
}

// DocumentNotOpenError reports an operation on a document outside pending/partial
type DocumentNotOpenError struct {
	DocumentID uuid.UUID
	Status     DocumentStatus
}

func (e *DocumentNotOpenError) Error() string {
	return fmt.Sprintf("document %s is %s", e.DocumentID, e.Status)
}

func (e *DocumentNotOpenError) Unwrap() error {
	return shared.NewDomainError(CodeDocumentNotOpen, e.Error())
}

// InvalidTransitionError reports a state machine move between non-adjacent states
type InvalidTransitionError struct {
	Entity string
	ID     uuid.UUID
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s %s cannot move from %s to %s", e.Entity, e.ID, e.From, e.To)
}

func (e *InvalidTransitionError) Unwrap() error {
	return shared.NewDomainError(CodeInvalidTransition, e.Error())
}

// ConcurrencyConflictError reports a lock wait timeout, deadlock or
// serialization failure. The whole operation may be retried.
type ConcurrencyConflictError struct {
	Cause error
}

func (e *ConcurrencyConflictError) Error() string {
	if e.Cause == nil {
		return ErrConcurrencyConflict.Message
	}
	return ErrConcurrencyConflict.Message + ": " + e.Cause.Error()
}

func (e *ConcurrencyConflictError) Unwrap() []error {
	errs := []error{shared.NewDomainError(CodeConcurrencyConflict, e.Error()), shared.ErrConcurrencyConflict}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

// Retryable is always true
func (e *ConcurrencyConflictError) Retryable() bool {
	return true
}

// HasActiveAllocationsError blocks cancelling a record that still has allocations
type HasActiveAllocationsError struct {
	Entity    string
	ID        uuid.UUID
	Allocated decimal.Decimal
}

func (e *HasActiveAllocationsError) Error() string {
	return fmt.Sprintf("%s %s has %s allocated; deallocate first", e.Entity, e.ID, e.Allocated.String())
}

func (e *HasActiveAllocationsError) Unwrap() error {
	return shared.NewDomainError(CodeHasActiveAllocations, e.Error())
}
