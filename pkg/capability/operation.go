// Package capability defines capability providers, the registries that hold
// them, and the contracts between handlers and the per-component toolkit.
package capability

import (
	"fmt"
	"strings"
)

const signatureSeparator = ","

// OperationIdentity is the dispatch key of an operation: its name and the
// ordered names of its parameter types. The return type is not part of it.
// OperationIdentity is comparable and may be used as a map key.
type OperationIdentity struct {
	name      string
	signature string
}

// NewOperation builds an identity from a name and parameter type names.
func NewOperation(name string, paramTypes ...string) OperationIdentity {
	trimmed := make([]string, len(paramTypes))
	for i, p := range paramTypes {
		trimmed[i] = strings.TrimSpace(p)
	}
	return OperationIdentity{
		name:      strings.TrimSpace(name),
		signature: strings.Join(trimmed, signatureSeparator),
	}
}

// ParseOperation parses the text form produced by String, e.g. "describe()"
// or "retrieveLogEvents(int64,int)".
func ParseOperation(s string) (OperationIdentity, error) {
	s = strings.TrimSpace(s)
	open := strings.Index(s, "(")
	if open <= 0 || !strings.HasSuffix(s, ")") {
		return OperationIdentity{}, fmt.Errorf("invalid operation %q: want name(type,...)", s)
	}
	name := s[:open]
	inner := strings.TrimSpace(s[open+1 : len(s)-1])
	if inner == "" {
		return NewOperation(name), nil
	}
	return NewOperation(name, strings.Split(inner, signatureSeparator)...), nil
}

// Name returns the operation name.
func (o OperationIdentity) Name() string {
	return o.name
}

// ParamTypes returns the parameter type names in order.
func (o OperationIdentity) ParamTypes() []string {
	if o.signature == "" {
		return nil
	}
	return strings.Split(o.signature, signatureSeparator)
}

// Arity returns the number of parameters.
func (o OperationIdentity) Arity() int {
	if o.signature == "" {
		return 0
	}
	return strings.Count(o.signature, signatureSeparator) + 1
}

func (o OperationIdentity) String() string {
	return o.name + "(" + o.signature + ")"
}
