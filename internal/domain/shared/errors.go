package shared

// DomainError is the code and message every settlement error unwraps to.
// The HTTP layer maps Code to a status and an API error code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on Code alone, so a typed error carrying a detailed message
// still satisfies errors.Is against the sentinel with the same code.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	return ok && e.Code == t.Code
}

func NewDomainError(code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

// Sentinels shared by the outbox, the store and the HTTP layer. The
// settlement package declares its own business-rule codes next to them.
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Row was changed or locked by a concurrent transaction")
	ErrUnauthorized        = NewDomainError("UNAUTHORIZED", "Missing or invalid credentials")
	ErrForbidden           = NewDomainError("FORBIDDEN", "Record belongs to another company")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)
