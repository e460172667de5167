package dispatcher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/capability-facade/pkg/capability"
	"github.com/morezero/capability-facade/pkg/remote"
)

const logPrefix = "dispatcher:dispatch"

// Error codes.
const (
	CodeMethodNotFound    = "METHOD_NOT_FOUND"
	CodeInvalidArgument   = "INVALID_ARGUMENT"
	CodeInvalidRequest    = "INVALID_REQUEST"
	CodeUnknownID         = "UNKNOWN_ID"
	CodeInvocationFailed  = "INVOCATION_FAILED"
	CodeUnavailable       = "UNAVAILABLE"
	CodeTimeout           = "TIMEOUT"
	CodeInternal          = "INTERNAL_ERROR"
	CodeNoHandler         = capability.CodeNoHandler
	CodeContractViolation = capability.CodeContractViolation
)

// Lister enumerates the published component ids.
type Lister interface {
	IDs() []int64
}

// Dispatcher routes COMMS requests to a remote connection.
type Dispatcher struct {
	conn   remote.Connection
	lister Lister
}

// NewDispatcher creates a new Dispatcher. lister may be nil, in which case
// the list method reports no components.
func NewDispatcher(conn remote.Connection, lister Lister) *Dispatcher {
	return &Dispatcher{conn: conn, lister: lister}
}

// Dispatch routes a request to the appropriate connection method and returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *Request) *Response {
	slog.Debug(fmt.Sprintf("%s - method=%s id=%s", logPrefix, req.Method, req.ID))

	switch req.Method {
	case "list":
		return d.handleList(req)
	case "describe":
		return d.handleDescribe(ctx, req)
	case "clientCapabilities":
		return d.handleClientCapabilities(ctx, req)
	case "invoke":
		return d.handleInvoke(ctx, req)
	case "destroy":
		return d.handleDestroy(ctx, req)
	default:
		return errorResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("Unknown method: %s", req.Method), false)
	}
}

func (d *Dispatcher) handleList(req *Request) *Response {
	ids := []int64{}
	if d.lister != nil {
		ids = append(ids, d.lister.IDs()...)
	}
	return &Response{ID: req.ID, Ok: true, Result: &ListResult{IDs: ids}}
}

func (d *Dispatcher) handleDescribe(ctx context.Context, req *Request) *Response {
	var p ComponentParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse describe params", false)
	}
	desc, err := d.conn.Describe(ctx, p.ID)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: desc}
}

func (d *Dispatcher) handleClientCapabilities(ctx context.Context, req *Request) *Response {
	var p ComponentParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse clientCapabilities params", false)
	}
	caps, err := d.conn.ClientCapabilities(ctx, p.ID)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: caps}
}

func (d *Dispatcher) handleInvoke(ctx context.Context, req *Request) *Response {
	var p InvokeParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse invoke params", false)
	}
	op, err := capability.ParseOperation(p.Op)
	if err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, err.Error(), false)
	}
	if len(p.Args) != op.Arity() {
		return errorResponse(req.ID, CodeInvalidArgument,
			fmt.Sprintf("%s takes %d arguments, got %d", op, op.Arity(), len(p.Args)), false)
	}
	value, err := d.conn.Invoke(ctx, p.ID, op, p.Args...)
	if err != nil {
		return errorToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: &InvokeResult{Value: value}}
}

func (d *Dispatcher) handleDestroy(ctx context.Context, req *Request) *Response {
	var p ComponentParams
	if err := json.Unmarshal(req.Params, &p); err != nil {
		return errorResponse(req.ID, CodeInvalidArgument, "Failed to parse destroy params", false)
	}
	if err := d.conn.Destroy(ctx, p.ID); err != nil {
		return errorToResponse(req.ID, err)
	}
	return &Response{ID: req.ID, Ok: true, Result: map[string]int64{"destroyed": p.ID}}
}

// MsgHandler returns a COMMS handler that decodes each request, dispatches
// it under a timeout and responds. A shorter caller deadline wins.
func (d *Dispatcher) MsgHandler(ctx context.Context, timeout time.Duration) comms.MsgHandler {
	return func(msg *comms.Msg) {
		var req Request
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			slog.Error(fmt.Sprintf("%s - failed to decode request: %v", logPrefix, err))
			respond(msg, errorResponse("", CodeInvalidRequest, "Failed to decode request", false))
			return
		}

		wait := timeout
		if req.Ctx != nil {
			ms := req.Ctx.DeadlineMs
			if ms <= 0 {
				ms = req.Ctx.TimeoutMs
			}
			if ms > 0 && time.Duration(ms)*time.Millisecond < wait {
				wait = time.Duration(ms) * time.Millisecond
			}
		}
		reqCtx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()

		respond(msg, d.Dispatch(reqCtx, &req))
	}
}

func respond(msg *comms.Msg, resp *Response) {
	data, err := json.Marshal(resp)
	if err != nil {
		slog.Error(fmt.Sprintf("%s - failed to encode response: %v", logPrefix, err))
		data, _ = json.Marshal(errorResponse(resp.ID, CodeInternal, "Failed to encode result", false))
	}
	if err := msg.Respond(data); err != nil {
		slog.Warn(fmt.Sprintf("%s - respond: %v", logPrefix, err))
	}
}

// --- helpers ---

func errorResponse(id, code, message string, retryable bool) *Response {
	return &Response{
		ID: id,
		Ok: false,
		Error: &ErrorDetail{
			Code:      code,
			Message:   message,
			Retryable: retryable,
		},
	}
}

func errorToResponse(id string, err error) *Response {
	var capErr *capability.Error
	var invErr *remote.InvocationError
	switch {
	case remote.IsUnknownID(err):
		return errorResponse(id, CodeUnknownID, err.Error(), false)
	case errors.Is(err, remote.ErrClosed):
		return errorResponse(id, CodeUnavailable, err.Error(), true)
	case errors.Is(err, context.DeadlineExceeded):
		return errorResponse(id, CodeTimeout, err.Error(), true)
	case errors.As(err, &capErr):
		resp := errorResponse(id, capErr.Code, capErr.Message, false)
		resp.Error.Details = capErr.Details
		return resp
	case errors.As(err, &invErr):
		resp := errorResponse(id, CodeInvocationFailed, invErr.Err.Error(), false)
		resp.Error.Details = map[string]any{"op": invErr.Op.String(), "args": invErr.Args}
		return resp
	}
	return errorResponse(id, CodeInternal, err.Error(), true)
}
