package events

import (
	"context"
	"fmt"
	"log/slog"

	comms "github.com/nats-io/nats.go"

	"github.com/morezero/capability-facade/pkg/commsutil"
)

const commsPublisherLogPrefix = "events:comms_publisher"

// CommsPublisherOpts configures CommsPublisher. Nil or zero values use defaults.
type CommsPublisherOpts struct {
	// SubjectPrefix overrides the notification subject prefix (NOTIFY_SUBJECT_PREFIX).
	SubjectPrefix string
}

// CommsPublisher mirrors notifications to COMMS subjects.
type CommsPublisher struct {
	nc            *comms.Conn
	subjectPrefix string
}

// NewCommsPublisher creates a new CommsPublisher. Pass nil for opts to use defaults.
func NewCommsPublisher(nc *comms.Conn, opts *CommsPublisherOpts) *CommsPublisher {
	prefix := commsutil.SubjectNotifyPrefix
	if opts != nil && opts.SubjectPrefix != "" {
		prefix = opts.SubjectPrefix
	}
	return &CommsPublisher{nc: nc, subjectPrefix: prefix}
}

// PublishNotification publishes the event on <prefix>.<componentId>.<type>.
func (p *CommsPublisher) PublishNotification(_ context.Context, event *NotificationEvent) error {
	data, err := commsutil.EncodePayload(event)
	if err != nil {
		return fmt.Errorf("%s - failed to encode event: %w", commsPublisherLogPrefix, err)
	}

	subject := commsutil.BuildNotificationSubject(p.subjectPrefix, event.ComponentID, event.Type)
	if err := p.nc.Publish(subject, data); err != nil {
		slog.Error(fmt.Sprintf("%s - failed to publish to %s: %v", commsPublisherLogPrefix, subject, err))
		return err
	}

	slog.Debug(fmt.Sprintf("%s - Published %s #%d for component %d", commsPublisherLogPrefix, event.Type, event.Sequence, event.ComponentID))
	return nil
}
