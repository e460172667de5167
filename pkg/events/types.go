// Package events defines the exported form of component notifications and the
// publishers that mirror them outside the process.
package events

// NotificationEvent is emitted for every notification a published component
// sends.
type NotificationEvent struct {
	Server      string `json:"server"`
	Address     string `json:"address,omitempty"`
	ComponentID int64  `json:"componentId"`
	Type        string `json:"type"`
	Sequence    int64  `json:"sequence"`
	Payload     any    `json:"payload,omitempty"`
	Timestamp   string `json:"timestamp"`
}
