package capability

import "fmt"

// Error codes.
const (
	CodeNoHandler         = "NO_HANDLER"
	CodeContractViolation = "CONTRACT_VIOLATION"
	CodeInvalidProvider   = "INVALID_PROVIDER"
)

// Sentinels for errors.Is. Any *Error with the same Code matches.
var (
	ErrNoHandler         = &Error{Code: CodeNoHandler, Message: "no handler supports this operation"}
	ErrContractViolation = &Error{Code: CodeContractViolation, Message: "component does not implement capability"}
	ErrInvalidProvider   = &Error{Code: CodeInvalidProvider, Message: "invalid capability provider"}
)

// Error is a structured capability failure.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// NoHandler reports that nothing in a facade's dispatch table handles op.
func NoHandler(op OperationIdentity) *Error {
	return &Error{
		Code:    CodeNoHandler,
		Message: fmt.Sprintf("no handler supports this operation: %s", op),
		Details: op.String(),
	}
}

// ContractViolation reports a provider matched to a component that does not
// implement its interface. It is a construction error, never retried.
func ContractViolation(capability string, component any) *Error {
	return &Error{
		Code:    CodeContractViolation,
		Message: fmt.Sprintf("%T does not implement capability %s", component, capability),
		Details: capability,
	}
}

// InvalidProvider reports a provider that cannot be registered.
func InvalidProvider(message string) *Error {
	return &Error{Code: CodeInvalidProvider, Message: message}
}
