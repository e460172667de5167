// Package dispatcher routes incoming COMMS control requests to a remote
// connection.
package dispatcher

import "encoding/json"

// Request is the JSON envelope for incoming COMMS control requests.
type Request struct {
	ID     string             `json:"id"`
	Method string             `json:"method"`
	Params json.RawMessage    `json:"params"`
	Ctx    *InvocationContext `json:"ctx,omitempty"`
}

// Response is the JSON envelope for COMMS control responses.
type Response struct {
	ID     string       `json:"id"`
	Ok     bool         `json:"ok"`
	Result any          `json:"result,omitempty"`
	Error  *ErrorDetail `json:"error,omitempty"`
}

// ErrorDetail holds structured error information.
type ErrorDetail struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
	Retryable bool   `json:"retryable"`
}

// InvocationContext holds context from the caller.
type InvocationContext struct {
	RequestID     string `json:"requestId,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	DeadlineMs    int    `json:"deadlineMs,omitempty"`
	TimeoutMs     int    `json:"timeoutMs,omitempty"`
}

// ComponentParams addresses one published component.
type ComponentParams struct {
	ID int64 `json:"id"`
}

// InvokeParams names an operation in its text form, e.g.
// "retrieveLogEvents(int64,int)".
type InvokeParams struct {
	ID   int64  `json:"id"`
	Op   string `json:"op"`
	Args []any  `json:"args,omitempty"`
}

// ListResult is the result of the list method.
type ListResult struct {
	IDs []int64 `json:"ids"`
}

// InvokeResult is the result of the invoke method.
type InvokeResult struct {
	Value any `json:"value"`
}
