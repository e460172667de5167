package commsutil

import (
	"fmt"
	"strings"
)

// Default COMMS subjects.
const (
	SubjectNotifyPrefix = "facade.notify"
	SubjectProviders    = "facade.providers"
	SubjectControl      = "facade.control"
)

// BuildNotificationSubject builds the subject a component notification is
// mirrored to: <prefix>.<componentId>.<type>.
func BuildNotificationSubject(prefix string, componentID int64, notificationType string) string {
	if prefix == "" {
		prefix = SubjectNotifyPrefix
	}
	return fmt.Sprintf("%s.%d.%s", prefix, componentID, SafeToken(notificationType))
}

// BuildNotificationWildcard subscribes to every notification of one component.
func BuildNotificationWildcard(prefix string, componentID int64) string {
	if prefix == "" {
		prefix = SubjectNotifyPrefix
	}
	return fmt.Sprintf("%s.%d.>", prefix, componentID)
}

// SafeToken replaces characters that have a meaning in NATS subjects.
func SafeToken(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer(".", "_", " ", "_", "*", "_", ">", "_").Replace(s)
}
