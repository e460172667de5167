package capability

// Impact classifies what invoking an operation does.
type Impact string

const (
	ImpactInfo       Impact = "INFO"
	ImpactAction     Impact = "ACTION"
	ImpactActionInfo Impact = "ACTION_INFO"
)

// AttributeDescriptor describes a readable or writable attribute.
type AttributeDescriptor struct {
	Name        string `json:"name" yaml:"name"`
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Readable    bool   `json:"readable" yaml:"readable"`
	Writable    bool   `json:"writable" yaml:"writable"`
}

// OperationDescriptor describes one invocable operation.
type OperationDescriptor struct {
	Name        string   `json:"name" yaml:"name"`
	Params      []string `json:"params" yaml:"params"`
	Returns     string   `json:"returns,omitempty" yaml:"returns,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Impact      Impact   `json:"impact" yaml:"impact"`
}

// Identity returns the dispatch key of the operation.
func (d OperationDescriptor) Identity() OperationIdentity {
	return NewOperation(d.Name, d.Params...)
}

// NotificationDescriptor describes a notification type a capability emits.
// Snapshot marks types for which a new listener receives the current payload
// when it subscribes.
type NotificationDescriptor struct {
	Type        string `json:"type" yaml:"type"`
	PayloadType string `json:"payloadType,omitempty" yaml:"payloadType,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Snapshot    bool   `json:"snapshot,omitempty" yaml:"snapshot,omitempty"`
}

// ClientDescriptor is what a remote caller needs to build a local proxy for
// one capability without knowing the component's concrete type.
type ClientDescriptor struct {
	Capability    string   `json:"capability" yaml:"capability"`
	Version       string   `json:"version,omitempty" yaml:"version,omitempty"`
	Attributes    []string `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	Operations    []string `json:"operations" yaml:"operations"`
	Notifications []string `json:"notifications,omitempty" yaml:"notifications,omitempty"`
}

// Description is the merged metadata of every capability a component exposes.
type Description struct {
	Capabilities  []string                 `json:"capabilities"`
	Attributes    []AttributeDescriptor    `json:"attributes"`
	Operations    []OperationDescriptor    `json:"operations"`
	Notifications []NotificationDescriptor `json:"notifications"`
}

// Supports reports whether the description lists the given capability.
func (d Description) Supports(capability string) bool {
	for _, c := range d.Capabilities {
		if c == capability {
			return true
		}
	}
	return false
}
