package capabilities

import (
	"context"

	"github.com/morezero/capability-facade/pkg/capability"
)

// Describable components report a set of named properties.
type Describable interface {
	Describe() map[string]string
}

var opDescribe = capability.NewOperation("describe")

// DescribableProvider serves describe().
func DescribableProvider() *capability.Provider {
	return capability.NewProvider[Describable](capability.Spec{
		Name:        NameDescribable,
		Version:     Version,
		Description: "Named properties of a component",
		Operations: []capability.OperationDescriptor{
			{Name: "describe", Returns: "map[string]string", Impact: capability.ImpactInfo},
		},
	}, func(target Describable, _ capability.Toolkit) (capability.Handler, error) {
		return &describableHandler{target: target}, nil
	})
}

type describableHandler struct {
	target Describable
}

func (h *describableHandler) Invoke(_ context.Context, op capability.OperationIdentity, _ []any) (any, error) {
	if op != opDescribe {
		return nil, noOperation(op)
	}
	props := h.target.Describe()
	out := make(map[string]string, len(props))
	for k, v := range props {
		out[k] = v
	}
	return out, nil
}

func (h *describableHandler) Destroy() error { return nil }
